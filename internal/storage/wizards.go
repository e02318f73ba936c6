package storage

import (
	"context"

	"emperror.dev/errors"
	"gorm.io/gorm"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
)

func (s *Store) CreateWizard(ctx context.Context, w *duel.Wizard) error {
	err := s.conn(ctx).Create(w).Error
	return errors.WrapIf(err, "create wizard")
}

// GetWizard serves reads outside transactions from the in-process cache.
// Entries are evicted whenever the wizard's counters change. Reads inside
// a transaction always go to the database.
func (s *Store) GetWizard(ctx context.Context, id string) (*duel.Wizard, error) {
	tx := inTransaction(ctx)
	if !tx {
		if v, ok := s.wizards.Get(id); ok {
			w := v.(duel.Wizard)
			return &w, nil
		}
	}
	var w duel.Wizard
	if err := s.conn(ctx).Where("id = ?", id).First(&w).Error; err != nil {
		return nil, notFound(err, "wizard", id)
	}
	if !tx {
		s.wizards.SetDefault(id, w)
	}
	return &w, nil
}

func (s *Store) ListWizardsByOwner(ctx context.Context, ownerID string) ([]duel.Wizard, error) {
	var out []duel.Wizard
	err := s.conn(ctx).Where("owner_user_id = ?", ownerID).Order("created_at asc").Find(&out).Error
	return out, errors.WrapIf(err, "list wizards")
}

// RecordResult increments one win/loss counter. Campaign results use the
// separate campaign counters.
func (s *Store) RecordResult(ctx context.Context, wizardID string, won, campaign bool) error {
	column := "losses"
	switch {
	case won && campaign:
		column = "campaign_wins"
	case won:
		column = "wins"
	case campaign:
		column = "campaign_losses"
	}
	err := s.conn(ctx).Model(&duel.Wizard{}).Where("id = ?", wizardID).
		Update(column, gorm.Expr(column+" + 1")).Error
	s.wizards.Delete(wizardID)
	return errors.WrapIf(err, "record wizard result")
}
