package storage

import (
	"context"

	"emperror.dev/errors"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
)

// ErrShortCodeTaken is returned by CreateDuel when the unique index on the
// shortcode rejects the insert.
var ErrShortCodeTaken = errors.New("short code already in use")

func (s *Store) CreateDuel(ctx context.Context, d *duel.Duel) error {
	err := s.conn(ctx).Create(d).Error
	if isDuplicate(err) {
		return ErrShortCodeTaken
	}
	return errors.WrapIf(err, "create duel")
}

func (s *Store) GetDuel(ctx context.Context, id string) (*duel.Duel, error) {
	var d duel.Duel
	if err := s.conn(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, notFound(err, "duel", id)
	}
	return &d, nil
}

func (s *Store) GetDuelByShortCode(ctx context.Context, code string) (*duel.Duel, error) {
	var d duel.Duel
	if err := s.conn(ctx).Where("short_code = ?", code).First(&d).Error; err != nil {
		return nil, notFound(err, "duel", code)
	}
	return &d, nil
}

func (s *Store) ShortCodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&duel.Duel{}).Where("short_code = ?", code).Count(&n).Error
	return n > 0, errors.WrapIf(err, "check short code")
}

// UpdateDuel writes every column of d if nobody else wrote the row since it
// was loaded. On success d.Version is advanced; on a lost race it returns
// duel.ErrConflict and leaves d.Version unchanged.
func (s *Store) UpdateDuel(ctx context.Context, d *duel.Duel) error {
	prev := d.Version
	d.Version = prev + 1
	res := s.conn(ctx).Model(d).Where("version = ?", prev).Select("*").Omit("created_at").Updates(d)
	if res.Error != nil {
		d.Version = prev
		return errors.WrapIf(res.Error, "update duel")
	}
	if res.RowsAffected == 0 {
		d.Version = prev
		return duel.ErrConflict
	}
	return nil
}

// ClaimCreditFlag flips credit_charged from false to true. It reports
// false when the flag was already set. The version bump makes any writer
// holding a stale copy of the duel retry instead of clearing the flag.
func (s *Store) ClaimCreditFlag(ctx context.Context, duelID, userID string) (bool, error) {
	res := s.conn(ctx).Model(&duel.Duel{}).
		Where("id = ? AND credit_charged = ?", duelID, false).
		Updates(map[string]interface{}{
			"credit_charged":    true,
			"credit_charged_by": userID,
			"version":           gormExpr("version + 1"),
		})
	if res.Error != nil {
		return false, errors.WrapIf(res.Error, "claim credit flag")
	}
	return res.RowsAffected == 1, nil
}

// ListDuelsByUser returns duels the user participates in, newest first.
func (s *Store) ListDuelsByUser(ctx context.Context, userID string) ([]duel.Duel, error) {
	var out []duel.Duel
	pattern := "%" + jsonQuoted(userID) + "%"
	err := s.conn(ctx).Where("participant_users LIKE ?", pattern).Order("created_at desc").Find(&out).Error
	if err != nil {
		return nil, errors.WrapIf(err, "list duels by user")
	}
	// LIKE can over-match when one id contains another; filter exactly.
	filtered := out[:0]
	for _, d := range out {
		if d.HasUser(userID) {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

func (s *Store) ListDuelsByStatus(ctx context.Context, statuses ...duel.DuelStatus) ([]duel.Duel, error) {
	var out []duel.Duel
	err := s.conn(ctx).Where("status IN ?", statuses).Order("created_at asc").Find(&out).Error
	return out, errors.WrapIf(err, "list duels by status")
}
