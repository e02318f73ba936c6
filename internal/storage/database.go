package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/config"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenDB opens the configured dialect. SQLite is limited to a single
// connection so writers serialize instead of failing with SQLITE_BUSY.
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, errors.WrapIf(err, "create database directory")
				}
			}
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.WrapIf(err, "open database")
	}
	if dialector.Name() == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.WrapIf(err, "access sql handle")
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// OpenInMemory opens a private in-memory SQLite database. name must be
// unique per test so parallel tests do not share state.
func OpenInMemory(name string) (*gorm.DB, error) {
	db, err := OpenDB(DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&duel.Duel{},
		&duel.Round{},
		&duel.LobbyEntry{},
		&duel.LobbyMatch{},
		&duel.CampaignProgress{},
		&duel.CampaignBattle{},
		&duel.Wizard{},
		&duel.CreditAccount{},
		&duel.IllustrationBlob{},
	)
	return errors.WrapIf(err, "migrate schema")
}

func OpenAndMigrate(driver, dsn string, campaign config.Campaign) (*gorm.DB, error) {
	db, err := OpenDB(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := seedCampaignOpponents(context.Background(), db, campaign); err != nil {
		return nil, err
	}
	return db, nil
}

// seedCampaignOpponents inserts configured opponents that are missing for
// the season and refreshes the text of existing ones. The config file is
// the source of truth for opponent content.
func seedCampaignOpponents(ctx context.Context, db *gorm.DB, campaign config.Campaign) error {
	for _, o := range campaign.Opponents {
		var existing duel.Wizard
		err := db.WithContext(ctx).
			Where("is_campaign_opponent = ? AND season_id = ? AND opponent_number = ?", true, campaign.SeasonID, o.Number).
			First(&existing).Error
		switch {
		case err == nil:
			existing.Name = o.Name
			existing.Description = o.Description
			existing.SignatureSpell = o.SignatureSpell
			if err := db.WithContext(ctx).Save(&existing).Error; err != nil {
				return errors.WrapIf(err, "refresh campaign opponent")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			w := duel.Wizard{
				ID:                 uuid.NewString(),
				Name:               o.Name,
				Description:        o.Description,
				OwnerUserID:        constants.CampaignOwner,
				IsCampaignOpponent: true,
				OpponentNumber:     o.Number,
				SeasonID:           campaign.SeasonID,
				SignatureSpell:     o.SignatureSpell,
			}
			if err := db.WithContext(ctx).Create(&w).Error; err != nil {
				return errors.WrapIf(err, "seed campaign opponent")
			}
			logging.Info("campaign opponent seeded", logging.Fields{constants.LogFieldOpponent: o.Number, "name": o.Name})
		default:
			return errors.WrapIf(err, "look up campaign opponent")
		}
	}
	return nil
}
