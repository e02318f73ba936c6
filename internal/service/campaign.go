package service

import (
	"context"

	"emperror.dev/errors"
	"github.com/google/uuid"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/storage"
)

// InitializeProgress creates the wizard's progress for the current season
// at opponent 1. Existing progress is returned as is.
func (e *Engine) InitializeProgress(ctx context.Context, wizardID, userID string) (*duel.CampaignProgress, error) {
	var p *duel.CampaignProgress
	err := e.store.Transaction(ctx, func(ctx context.Context) error {
		if err := e.requireOwnership(ctx, []string{wizardID}, userID); err != nil {
			return err
		}
		var err error
		p, err = e.ensureProgress(ctx, wizardID, userID)
		return err
	})
	if errors.Is(err, duel.ErrAlreadyProcessed) {
		return e.GetProgress(ctx, wizardID)
	}
	return p, err
}

func (e *Engine) ensureProgress(ctx context.Context, wizardID, userID string) (*duel.CampaignProgress, error) {
	season := e.cfg.Campaign.SeasonID
	p, err := e.store.GetProgress(ctx, wizardID, season)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, duel.ErrNotFound) {
		return nil, err
	}
	p = &duel.CampaignProgress{
		ID:                   uuid.NewString(),
		WizardID:             wizardID,
		SeasonID:             season,
		UserID:               userID,
		CurrentOpponentIndex: 1,
		DefeatedOpponents:    []int{},
	}
	if err := e.store.CreateProgress(ctx, p); err != nil {
		return nil, err
	}
	logging.Info("campaign progress initialized", logging.Fields{constants.LogFieldWizardID: wizardID, "season_id": season})
	return p, nil
}

func (e *Engine) GetProgress(ctx context.Context, wizardID string) (*duel.CampaignProgress, error) {
	return e.store.GetProgress(ctx, wizardID, e.cfg.Campaign.SeasonID)
}

// DefeatOpponent records a victory over opponentNumber, which must be the
// wizard's current opponent. Beating the whole roster grants the relic.
func (e *Engine) DefeatOpponent(ctx context.Context, wizardID string, opponentNumber int) (*duel.CampaignProgress, error) {
	var p *duel.CampaignProgress
	err := e.atomically(ctx, func(ctx context.Context) error {
		var err error
		p, err = e.advanceCampaign(ctx, wizardID, opponentNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Engine) advanceCampaign(ctx context.Context, wizardID string, opponentNumber int) (*duel.CampaignProgress, error) {
	roster := e.cfg.Campaign.RosterSize
	p, err := e.store.GetProgress(ctx, wizardID, e.cfg.Campaign.SeasonID)
	if err != nil {
		return nil, err
	}
	if opponentNumber < 1 || opponentNumber > roster {
		return nil, duel.InvalidArgument("opponent number must be between 1 and %d", roster)
	}
	if p.HasDefeated(opponentNumber) {
		return nil, duel.ErrAlreadyDefeated
	}
	if opponentNumber != p.CurrentOpponentIndex {
		return nil, duel.ErrOutOfOrder
	}
	expected := p.CurrentOpponentIndex
	p.DefeatedOpponents = append(p.DefeatedOpponents, opponentNumber)
	p.CurrentOpponentIndex = opponentNumber + 1
	if len(p.DefeatedOpponents) >= roster {
		p.HasCompletionRelic = true
	}
	if err := e.store.AdvanceProgress(ctx, p, expected); err != nil {
		return nil, err
	}
	logging.Info("campaign opponent defeated", logging.Fields{
		constants.LogFieldWizardID: wizardID,
		constants.LogFieldOpponent: opponentNumber,
		"relic":                    p.HasCompletionRelic,
	})
	return p, nil
}

// CreateCampaignBattle opens a campaign duel against the wizard's current
// opponent. The scheduler introduces it like any two-player duel.
func (e *Engine) CreateCampaignBattle(ctx context.Context, wizardID, userID string, opponentNumber int) (*duel.Duel, *duel.CampaignBattle, error) {
	var d *duel.Duel
	var b *duel.CampaignBattle
	season := e.cfg.Campaign.SeasonID
	err := e.store.Transaction(ctx, func(ctx context.Context) error {
		w, err := e.wizards.GetWizard(ctx, wizardID)
		if err != nil {
			return err
		}
		if w.OwnerUserID != userID {
			return duel.Unauthorized("wizard %s is not owned by the requesting user", wizardID)
		}
		if w.IsCampaignOpponent {
			return duel.InvalidArgument("campaign opponents cannot enter the campaign")
		}
		p, err := e.ensureProgress(ctx, wizardID, userID)
		if err != nil {
			return err
		}
		live, err := e.store.FindLiveBattle(ctx, wizardID, season, opponentNumber)
		if err != nil {
			return err
		}
		if live != nil {
			return duel.ErrDuplicateBattle
		}
		if opponentNumber != p.CurrentOpponentIndex {
			return duel.ErrOutOfOrder
		}
		opp, err := e.store.GetOpponent(ctx, season, opponentNumber)
		if err != nil {
			return err
		}
		d, err = e.insertDuel(ctx, duelParams{
			budget:    e.cfg.Campaign.RoundBudget,
			wizards:   []string{wizardID, opp.ID},
			users:     []string{userID, constants.CampaignOwner},
			createdBy: userID,
			campaign:  true,
			origin:    "campaign",
		})
		if err != nil {
			return err
		}
		key := storage.BattleKey(wizardID, season, opponentNumber)
		b = &duel.CampaignBattle{
			ID:               uuid.NewString(),
			WizardID:         wizardID,
			UserID:           userID,
			SeasonID:         season,
			OpponentNumber:   opponentNumber,
			OpponentWizardID: opp.ID,
			DuelID:           d.ID,
			Status:           duel.BattleActive,
			ActiveKey:        &key,
		}
		return e.store.CreateBattle(ctx, b)
	})
	if err != nil {
		return nil, nil, err
	}
	logging.Info("campaign battle created", logging.Fields{
		constants.LogFieldDuelID:   d.ID,
		constants.LogFieldWizardID: wizardID,
		constants.LogFieldOpponent: opponentNumber,
	})
	return d, b, nil
}

// CompleteCampaignBattle settles the battle of a completed campaign duel.
// It is idempotent; round resolution normally settles it already.
func (e *Engine) CompleteCampaignBattle(ctx context.Context, duelID string) (*duel.CampaignBattle, error) {
	var b *duel.CampaignBattle
	err := e.atomically(ctx, func(ctx context.Context) error {
		d, err := e.store.GetDuel(ctx, duelID)
		if err != nil {
			return err
		}
		if !d.IsCampaignBattle {
			return duel.InvalidArgument("duel %s is not a campaign battle", duelID)
		}
		if d.Status != duel.StatusCompleted {
			return duel.InvalidState("campaign duel %s has not completed", duelID)
		}
		b, err = e.settleBattle(ctx, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// settleBattle marks the battle WON when the player's wizard is the sole
// winner, LOST otherwise, and advances progress on a win.
func (e *Engine) settleBattle(ctx context.Context, d *duel.Duel) (*duel.CampaignBattle, error) {
	b, err := e.store.GetBattleByDuel(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, duel.NotFound("campaign battle for duel %s not found", d.ID)
	}
	if b.Status != duel.BattleActive {
		return b, nil
	}
	won := len(d.Winners) == 1 && d.Winners[0] == b.WizardID && !d.IsDraw()
	status := duel.BattleLost
	if won {
		status = duel.BattleWon
	}
	finished, err := e.store.FinishBattle(ctx, b.ID, status)
	if err != nil {
		return nil, err
	}
	if !finished {
		return e.store.GetBattleByDuel(ctx, d.ID)
	}
	b.Status = status
	if status == duel.BattleLost {
		b.ActiveKey = nil
	}
	if won {
		if _, err := e.advanceCampaign(ctx, b.WizardID, b.OpponentNumber); err != nil && !errors.Is(err, duel.ErrAlreadyDefeated) {
			return nil, err
		}
	}
	return b, nil
}
