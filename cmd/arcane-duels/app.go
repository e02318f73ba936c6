package main

import (
	"context"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/api"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/config"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/events"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/illustration"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/openaiclient"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/service"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/storage"
)

type app struct {
	db     *gorm.DB
	engine *service.Engine
	router *gin.Engine
}

func newApp(ctx context.Context, env *config.Env, cfg *config.LoadedConfig) (*app, error) {
	db, err := storage.OpenAndMigrate(env.DBDriver, env.DBDSN, cfg.Campaign)
	if err != nil {
		return nil, errors.WrapIf(err, "open database")
	}
	store := storage.New(db)

	if env.OpenAIAPIKey == "" {
		logging.Warn("OpenAI key not set, rounds use the fallback narrator", nil, logging.Fields{"var": constants.EnvOpenAIAPIKey})
	}
	ai := openaiclient.New(openaiclient.Options{
		APIKey:            env.OpenAIAPIKey,
		BaseURL:           env.OpenAIBaseURL,
		ChatModel:         env.OpenAIChatModel,
		ImageModel:        env.OpenAIImageModel,
		RequestsPerSecond: env.OpenAIRateLimit,
		Templates: openaiclient.Templates{
			Round:        cfg.RoundPromptTemplate,
			Introduction: cfg.IntroductionPromptTemplate,
			Conclusion:   cfg.ConclusionPromptTemplate,
		},
	})

	hub := events.NewHub()
	opts := service.Options{Config: cfg, Generator: ai, Events: hub}
	if env.IllustrationsEnabled {
		images, err := illustrationStore(ctx, env, store)
		if err != nil {
			return nil, err
		}
		opts.Illustrator = ai
		opts.Images = images
	}
	engine := service.New(store, opts)

	sessions, err := api.NewSessions(env.SessionSecret, env.SecureCookie)
	if err != nil {
		return nil, err
	}
	if env.AdminToken == "" {
		logging.Warn("ADMIN_TOKEN not set, admin routes are disabled", nil, nil)
	}
	router := api.NewRouter(api.NewHandler(engine, hub), sessions, env.AdminToken)
	return &app{db: db, engine: engine, router: router}, nil
}

// illustrationStore uses the bucket when one is configured and the
// database otherwise.
func illustrationStore(ctx context.Context, env *config.Env, store *storage.Store) (illustration.Store, error) {
	if env.IllustrationBucket == "" {
		logging.Info("Storing illustrations in the database", nil)
		return store.Illustrations(), nil
	}
	s3, err := illustration.NewS3Store(ctx, illustration.S3Options{
		Bucket:          env.IllustrationBucket,
		Endpoint:        env.S3Endpoint,
		Region:          env.S3Region,
		AccessKeyID:     env.S3AccessKeyID,
		SecretAccessKey: env.S3SecretAccessKey,
	})
	if err != nil {
		return nil, errors.WrapIf(err, "configure illustration bucket")
	}
	logging.Info("Storing illustrations in bucket", logging.Fields{"bucket": env.IllustrationBucket})
	return s3, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
