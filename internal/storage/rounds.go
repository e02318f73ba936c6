package storage

import (
	"context"
	"strconv"
	"time"

	"emperror.dev/errors"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
)

func (s *Store) CreateRound(ctx context.Context, r *duel.Round) error {
	err := s.conn(ctx).Create(r).Error
	if isDuplicate(err) {
		return duel.InvalidState("round %d already exists for duel %s", r.RoundNumber, r.DuelID)
	}
	return errors.WrapIf(err, "create round")
}

func (s *Store) GetRound(ctx context.Context, id string) (*duel.Round, error) {
	var r duel.Round
	if err := s.conn(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, notFound(err, "round", id)
	}
	return &r, nil
}

func (s *Store) GetRoundByNumber(ctx context.Context, duelID string, number int) (*duel.Round, error) {
	var r duel.Round
	if err := s.conn(ctx).Where("duel_id = ? AND round_number = ?", duelID, number).First(&r).Error; err != nil {
		return nil, notFound(err, "round", duelID+"#"+strconv.Itoa(number))
	}
	return &r, nil
}

func (s *Store) ListRounds(ctx context.Context, duelID string) ([]duel.Round, error) {
	var out []duel.Round
	err := s.conn(ctx).Where("duel_id = ?", duelID).Order("round_number asc").Find(&out).Error
	return out, errors.WrapIf(err, "list rounds")
}

// SaveRound writes the full round if it still has the status it was read
// with. A round moved by someone else in between returns duel.ErrConflict.
func (s *Store) SaveRound(ctx context.Context, r *duel.Round, from duel.RoundStatus) error {
	res := s.conn(ctx).Model(r).Where("status = ?", from).Select("*").Omit("created_at").Updates(r)
	if res.Error != nil {
		return errors.WrapIf(res.Error, "save round")
	}
	if res.RowsAffected == 0 {
		return duel.ErrConflict
	}
	return nil
}

// ClaimRound moves a round from WAITING_FOR_SPELLS to PROCESSING. It
// reports false when another caller already moved it. A successful claim
// bumps the owning duel's version so writers holding the duel retry.
func (s *Store) ClaimRound(ctx context.Context, duelID, roundID string, now time.Time) (bool, error) {
	claimed := false
	err := s.Transaction(ctx, func(ctx context.Context) error {
		res := s.conn(ctx).Model(&duel.Round{}).
			Where("id = ? AND duel_id = ? AND status = ?", roundID, duelID, duel.RoundWaitingForSpells).
			Updates(map[string]interface{}{"status": duel.RoundProcessing, "claimed_at": now})
		if res.Error != nil {
			return errors.WrapIf(res.Error, "claim round")
		}
		if res.RowsAffected != 1 {
			return nil
		}
		claimed = true
		err := s.conn(ctx).Model(&duel.Duel{}).Where("id = ?", duelID).
			Update("version", gormExpr("version + 1")).Error
		return errors.WrapIf(err, "bump duel version on claim")
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// TouchClaim refreshes claimed_at on a PROCESSING round so the stale sweep
// leaves it alone while a resolver is working on it.
func (s *Store) TouchClaim(ctx context.Context, roundID string, now time.Time) error {
	err := s.conn(ctx).Model(&duel.Round{}).
		Where("id = ? AND status = ?", roundID, duel.RoundProcessing).
		Update("claimed_at", now).Error
	return errors.WrapIf(err, "touch round claim")
}

// ListStalledRounds returns rounds whose action deadline passed while still
// waiting for spells, and PROCESSING rounds claimed before staleBefore.
func (s *Store) ListStalledRounds(ctx context.Context, now, staleBefore time.Time, limit int) ([]duel.Round, error) {
	var out []duel.Round
	err := s.conn(ctx).
		Where("(status = ? AND deadline IS NOT NULL AND deadline <= ?) OR (status = ? AND (claimed_at IS NULL OR claimed_at <= ?))",
			duel.RoundWaitingForSpells, now, duel.RoundProcessing, staleBefore).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, errors.WrapIf(err, "list stalled rounds")
}
