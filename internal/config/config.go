package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
)

const (
	defaultServerAddress   = ":8080"
	defaultRosterSize      = 10
	defaultCampaignBudget  = duel.RoundBudget(3)
	defaultRelicLuckBonus  = 3
	defaultActionTimeout   = 10 * time.Minute
	defaultStaleProcessing = 2 * time.Minute
	defaultSeasonID        = "season-1"
)

type opponentEntry struct {
	Number         int    `json:"number"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	SignatureSpell string `json:"signature_spell"`
}

type rawConfig struct {
	Server *struct {
		Address string `json:"address"`
	} `json:"server"`
	// Prompt templates. Tokens: {{wizards}}, {{actions}}, {{history}},
	// {{round}} and {{result}} (conclusion only).
	Prompts struct {
		Round        string `json:"round"`
		Introduction string `json:"introduction"`
		Conclusion   string `json:"conclusion"`
	} `json:"prompts"`
	Campaign struct {
		SeasonID       string            `json:"season_id"`
		RosterSize     int               `json:"roster_size"`
		RoundBudget    *duel.RoundBudget `json:"round_budget"`
		RelicLuckBonus *int              `json:"relic_luck_bonus"`
		Opponents      []opponentEntry   `json:"opponents"`
	} `json:"campaign"`
	Timings struct {
		ActionTimeoutSeconds   int `json:"action_timeout_seconds"`
		StaleProcessingSeconds int `json:"stale_processing_seconds"`
	} `json:"timings"`
}

// Opponent is a scripted campaign wizard seeded into the directory.
type Opponent struct {
	Number         int
	Name           string
	Description    string
	SignatureSpell string
}

type Campaign struct {
	SeasonID       string
	RosterSize     int
	RoundBudget    duel.RoundBudget
	RelicLuckBonus int
	Opponents      []Opponent
}

// LoadedConfig contains the campaign roster, prompt templates, timings and
// the server address to bind to.
type LoadedConfig struct {
	ServerAddress string

	RoundPromptTemplate        string
	IntroductionPromptTemplate string
	ConclusionPromptTemplate   string

	Campaign Campaign

	ActionTimeout        time.Duration
	StaleProcessingAfter time.Duration
}

// Default returns the configuration used when no file overrides a value.
func Default() *LoadedConfig {
	return &LoadedConfig{
		ServerAddress: defaultServerAddress,
		Campaign: Campaign{
			SeasonID:       defaultSeasonID,
			RosterSize:     defaultRosterSize,
			RoundBudget:    defaultCampaignBudget,
			RelicLuckBonus: defaultRelicLuckBonus,
		},
		ActionTimeout:        defaultActionTimeout,
		StaleProcessingAfter: defaultStaleProcessing,
	}
}

// LoadConfig reads the configuration file at path. Opponent numbers must be
// unique and fall within the roster.
func LoadConfig(path string) (*LoadedConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var rc rawConfig
	if err := json.Unmarshal(b, &rc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := Default()
	if rc.Server != nil && rc.Server.Address != "" {
		cfg.ServerAddress = rc.Server.Address
	}
	cfg.RoundPromptTemplate = strings.TrimSpace(rc.Prompts.Round)
	cfg.IntroductionPromptTemplate = strings.TrimSpace(rc.Prompts.Introduction)
	cfg.ConclusionPromptTemplate = strings.TrimSpace(rc.Prompts.Conclusion)

	if s := strings.TrimSpace(rc.Campaign.SeasonID); s != "" {
		cfg.Campaign.SeasonID = s
	}
	if rc.Campaign.RosterSize < 0 {
		return nil, fmt.Errorf("config file %s: campaign.roster_size must be positive", path)
	}
	if rc.Campaign.RosterSize > 0 {
		cfg.Campaign.RosterSize = rc.Campaign.RosterSize
	}
	if rc.Campaign.RoundBudget != nil {
		cfg.Campaign.RoundBudget = *rc.Campaign.RoundBudget
	}
	if rc.Campaign.RelicLuckBonus != nil {
		if *rc.Campaign.RelicLuckBonus < 0 {
			return nil, fmt.Errorf("config file %s: campaign.relic_luck_bonus must not be negative", path)
		}
		cfg.Campaign.RelicLuckBonus = *rc.Campaign.RelicLuckBonus
	}

	seen := make(map[int]struct{}, len(rc.Campaign.Opponents))
	for _, o := range rc.Campaign.Opponents {
		if strings.TrimSpace(o.Name) == "" {
			return nil, fmt.Errorf("config file %s: campaign opponent %d missing 'name'", path, o.Number)
		}
		if o.Number < 1 || o.Number > cfg.Campaign.RosterSize {
			return nil, fmt.Errorf("config file %s: campaign opponent '%s' number %d outside roster 1..%d", path, o.Name, o.Number, cfg.Campaign.RosterSize)
		}
		if _, dup := seen[o.Number]; dup {
			return nil, fmt.Errorf("config file %s: duplicate campaign opponent number %d", path, o.Number)
		}
		seen[o.Number] = struct{}{}
		cfg.Campaign.Opponents = append(cfg.Campaign.Opponents, Opponent{
			Number:         o.Number,
			Name:           strings.TrimSpace(o.Name),
			Description:    strings.TrimSpace(o.Description),
			SignatureSpell: strings.TrimSpace(o.SignatureSpell),
		})
	}

	if rc.Timings.ActionTimeoutSeconds > 0 {
		cfg.ActionTimeout = time.Duration(rc.Timings.ActionTimeoutSeconds) * time.Second
	}
	if rc.Timings.StaleProcessingSeconds > 0 {
		cfg.StaleProcessingAfter = time.Duration(rc.Timings.StaleProcessingSeconds) * time.Second
	}
	return cfg, nil
}
