package storage

import (
	"context"
	"strconv"

	"emperror.dev/errors"
	"gorm.io/gorm"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
)

func (s *Store) GetProgress(ctx context.Context, wizardID, seasonID string) (*duel.CampaignProgress, error) {
	var p duel.CampaignProgress
	err := s.conn(ctx).Where("wizard_id = ? AND season_id = ?", wizardID, seasonID).First(&p).Error
	if err != nil {
		return nil, notFound(err, "campaign progress", wizardID)
	}
	return &p, nil
}

// CreateProgress inserts p. A concurrent insert for the same wizard and
// season surfaces as duel.ErrAlreadyProcessed so the caller can reload.
func (s *Store) CreateProgress(ctx context.Context, p *duel.CampaignProgress) error {
	err := s.conn(ctx).Create(p).Error
	if isDuplicate(err) {
		return duel.ErrAlreadyProcessed
	}
	return errors.WrapIf(err, "create campaign progress")
}

// AdvanceProgress saves p only if the stored opponent index still equals
// expectedIndex.
func (s *Store) AdvanceProgress(ctx context.Context, p *duel.CampaignProgress, expectedIndex int) error {
	res := s.conn(ctx).Model(p).
		Where("current_opponent_index = ?", expectedIndex).
		Select("current_opponent_index", "defeated_opponents", "has_completion_relic", "updated_at").
		Updates(p)
	if res.Error != nil {
		return errors.WrapIf(res.Error, "advance campaign progress")
	}
	if res.RowsAffected == 0 {
		return duel.ErrConflict
	}
	return nil
}

// HasCompletionRelic reports whether the wizard earned the relic in any
// season.
func (s *Store) HasCompletionRelic(ctx context.Context, wizardID string) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&duel.CampaignProgress{}).
		Where("wizard_id = ? AND has_completion_relic = ?", wizardID, true).
		Count(&n).Error
	return n > 0, errors.WrapIf(err, "check completion relic")
}

func (s *Store) CreateBattle(ctx context.Context, b *duel.CampaignBattle) error {
	err := s.conn(ctx).Create(b).Error
	if isDuplicate(err) {
		return duel.ErrDuplicateBattle
	}
	return errors.WrapIf(err, "create campaign battle")
}

// GetBattleByDuel returns the battle fought in duelID or nil.
func (s *Store) GetBattleByDuel(ctx context.Context, duelID string) (*duel.CampaignBattle, error) {
	var b duel.CampaignBattle
	err := s.conn(ctx).Where("duel_id = ?", duelID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIf(err, "load campaign battle")
	}
	return &b, nil
}

// FindLiveBattle returns an ACTIVE or WON battle for the pair, or nil.
func (s *Store) FindLiveBattle(ctx context.Context, wizardID, seasonID string, opponentNumber int) (*duel.CampaignBattle, error) {
	var b duel.CampaignBattle
	err := s.conn(ctx).
		Where("wizard_id = ? AND season_id = ? AND opponent_number = ? AND status IN ?",
			wizardID, seasonID, opponentNumber, []duel.BattleStatus{duel.BattleActive, duel.BattleWon}).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIf(err, "find live campaign battle")
	}
	return &b, nil
}

// FinishBattle moves an ACTIVE battle to status. It reports false when the
// battle was already finished.
func (s *Store) FinishBattle(ctx context.Context, battleID string, status duel.BattleStatus) (bool, error) {
	updates := map[string]interface{}{"status": status}
	if status == duel.BattleLost {
		updates["active_key"] = nil
	}
	res := s.conn(ctx).Model(&duel.CampaignBattle{}).
		Where("id = ? AND status = ?", battleID, duel.BattleActive).
		Updates(updates)
	if res.Error != nil {
		return false, errors.WrapIf(res.Error, "finish campaign battle")
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) GetOpponent(ctx context.Context, seasonID string, number int) (*duel.Wizard, error) {
	var w duel.Wizard
	err := s.conn(ctx).
		Where("is_campaign_opponent = ? AND season_id = ? AND opponent_number = ?", true, seasonID, number).
		First(&w).Error
	if err != nil {
		return nil, notFound(err, "campaign opponent", seasonID+"#"+strconv.Itoa(number))
	}
	return &w, nil
}

// BattleKey identifies a live battle for a wizard and opponent.
func BattleKey(wizardID, seasonID string, opponentNumber int) string {
	return wizardID + ":" + seasonID + ":" + strconv.Itoa(opponentNumber)
}
