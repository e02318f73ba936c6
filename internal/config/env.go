package config

import (
	"io/fs"
	"time"

	"emperror.dev/errors"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds settings taken from the process environment.
type Env struct {
	ConfigPath    string `env:"DUEL_CONFIG" envDefault:"./duel_config.json"`
	DBDriver      string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN         string `env:"DB_DSN" envDefault:"./data/duels.db"`
	SessionSecret string `env:"SESSION_SECRET"`
	AdminToken    string `env:"ADMIN_TOKEN"`
	SecureCookie  bool   `env:"SESSION_SECURE_COOKIE" envDefault:"false"`

	OpenAIAPIKey     string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string  `env:"OPENAI_BASE_URL"`
	OpenAIChatModel  string  `env:"OPENAI_CHAT_MODEL" envDefault:"gpt-5-nano"`
	OpenAIImageModel string  `env:"OPENAI_IMAGE_MODEL" envDefault:"gpt-image-1"`
	OpenAIRateLimit  float64 `env:"OPENAI_REQUESTS_PER_SECOND" envDefault:"2"`

	IllustrationsEnabled bool   `env:"ILLUSTRATIONS_ENABLED" envDefault:"false"`
	IllustrationBucket   string `env:"ILLUSTRATION_BUCKET"`
	S3Endpoint           string `env:"S3_ENDPOINT"`
	S3Region             string `env:"S3_REGION" envDefault:"auto"`
	S3AccessKeyID        string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey    string `env:"S3_SECRET_ACCESS_KEY"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"5s"`
}

// LoadEnv reads an optional .env file and parses the environment.
func LoadEnv(dotenvPaths ...string) (*Env, error) {
	if err := godotenv.Load(dotenvPaths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.WrapIf(err, "load .env")
	}
	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, errors.WrapIf(err, "parse env")
	}
	return &e, nil
}
