package storage

import (
	"context"
	"time"

	"emperror.dev/errors"
	"gorm.io/gorm"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
)

func (s *Store) CreateLobbyEntry(ctx context.Context, e *duel.LobbyEntry) error {
	err := s.conn(ctx).Create(e).Error
	if isDuplicate(err) {
		return duel.ErrAlreadyQueued
	}
	return errors.WrapIf(err, "create lobby entry")
}

func (s *Store) GetLobbyEntry(ctx context.Context, id string) (*duel.LobbyEntry, error) {
	var e duel.LobbyEntry
	if err := s.conn(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, notFound(err, "lobby entry", id)
	}
	return &e, nil
}

// GetLobbyEntryByUser returns the user's entry or nil when there is none.
func (s *Store) GetLobbyEntryByUser(ctx context.Context, userID string) (*duel.LobbyEntry, error) {
	var e duel.LobbyEntry
	err := s.conn(ctx).Where("user_id = ?", userID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIf(err, "load lobby entry by user")
	}
	return &e, nil
}

func (s *Store) DeleteWaitingEntry(ctx context.Context, userID string) (int64, error) {
	res := s.conn(ctx).Where("user_id = ? AND status = ?", userID, duel.LobbyWaiting).Delete(&duel.LobbyEntry{})
	return res.RowsAffected, errors.WrapIf(res.Error, "delete lobby entry")
}

// FindMatchCandidate returns the earliest waiting entry with the same
// preference from a different user, or nil.
func (s *Store) FindMatchCandidate(ctx context.Context, e *duel.LobbyEntry) (*duel.LobbyEntry, error) {
	var c duel.LobbyEntry
	err := s.conn(ctx).
		Where("status = ? AND duel_type_preference = ? AND user_id <> ? AND id <> ?",
			duel.LobbyWaiting, e.DuelTypePreference, e.UserID, e.ID).
		Order("joined_at asc, id asc").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIf(err, "find match candidate")
	}
	return &c, nil
}

// MarkMatched moves a WAITING entry to MATCHED. It reports false when the
// entry was no longer waiting.
func (s *Store) MarkMatched(ctx context.Context, entryID, partnerID string) (bool, error) {
	res := s.conn(ctx).Model(&duel.LobbyEntry{}).
		Where("id = ? AND status = ?", entryID, duel.LobbyWaiting).
		Updates(map[string]interface{}{"status": duel.LobbyMatched, "matched_with_entry_id": partnerID})
	if res.Error != nil {
		return false, errors.WrapIf(res.Error, "mark lobby entry matched")
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) DeleteLobbyEntries(ctx context.Context, ids ...string) error {
	err := s.conn(ctx).Where("id IN ?", ids).Delete(&duel.LobbyEntry{}).Error
	return errors.WrapIf(err, "delete lobby entries")
}

func (s *Store) ListWaitingEntries(ctx context.Context, limit int) ([]duel.LobbyEntry, error) {
	var out []duel.LobbyEntry
	err := s.conn(ctx).Where("status = ?", duel.LobbyWaiting).Order("joined_at asc, id asc").Limit(limit).Find(&out).Error
	return out, errors.WrapIf(err, "list waiting entries")
}

// ListMatchedEntries returns MATCHED entries whose duel has not been
// materialized yet.
func (s *Store) ListMatchedEntries(ctx context.Context, limit int) ([]duel.LobbyEntry, error) {
	var out []duel.LobbyEntry
	err := s.conn(ctx).Where("status = ?", duel.LobbyMatched).Order("joined_at asc, id asc").Limit(limit).Find(&out).Error
	return out, errors.WrapIf(err, "list matched entries")
}

func (s *Store) CreateLobbyMatch(ctx context.Context, m *duel.LobbyMatch) error {
	err := s.conn(ctx).Create(m).Error
	if isDuplicate(err) {
		return duel.ErrAlreadyProcessed
	}
	return errors.WrapIf(err, "record lobby match")
}

// GetLobbyMatch returns the match for pairKey or nil.
func (s *Store) GetLobbyMatch(ctx context.Context, pairKey string) (*duel.LobbyMatch, error) {
	var m duel.LobbyMatch
	err := s.conn(ctx).Where("pair_key = ?", pairKey).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIf(err, "load lobby match")
	}
	return &m, nil
}

// LatestMatchForUser returns the most recent materialized match involving
// userID or nil.
func (s *Store) LatestMatchForUser(ctx context.Context, userID string) (*duel.LobbyMatch, error) {
	var m duel.LobbyMatch
	err := s.conn(ctx).Where("user_a = ? OR user_b = ?", userID, userID).Order("created_at desc").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIf(err, "load latest lobby match")
	}
	return &m, nil
}

func (s *Store) LobbyStats(ctx context.Context, now time.Time) (duel.LobbyStats, error) {
	var stats duel.LobbyStats
	db := s.conn(ctx)
	if err := db.Model(&duel.LobbyEntry{}).Where("status = ?", duel.LobbyMatched).Count(&stats.Matched).Error; err != nil {
		return stats, errors.WrapIf(err, "count matched entries")
	}
	var waiting []duel.LobbyEntry
	if err := db.Select("joined_at").Where("status = ?", duel.LobbyWaiting).Find(&waiting).Error; err != nil {
		return stats, errors.WrapIf(err, "load waiting entries")
	}
	stats.Waiting = int64(len(waiting))
	if len(waiting) == 0 {
		return stats, nil
	}
	var total time.Duration
	for _, e := range waiting {
		total += now.Sub(e.JoinedAt)
	}
	stats.AverageWaitSeconds = total.Seconds() / float64(len(waiting))
	return stats, nil
}
