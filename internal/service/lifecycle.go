package service

import (
	"context"
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/google/uuid"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/events"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/metrics"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/storage"
)

var ErrShortCodeExhausted = errors.New("could not allocate a unique short code")

// duelParams describes a duel about to be inserted.
type duelParams struct {
	budget    duel.RoundBudget
	wizards   []string
	users     []string
	createdBy string
	campaign  bool
	origin    string
}

// CreateDuel opens a duel in WAITING_FOR_PLAYERS with the requesting
// user's wizards.
func (e *Engine) CreateDuel(ctx context.Context, budget duel.RoundBudget, wizardIDs []string, userID string) (*duel.Duel, error) {
	if len(wizardIDs) == 0 {
		return nil, duel.InvalidArgument("at least one wizard is required")
	}
	if err := budget.Validate(); err != nil {
		return nil, err
	}
	if err := uniqueIDs(wizardIDs); err != nil {
		return nil, err
	}
	var out *duel.Duel
	err := e.store.Transaction(ctx, func(ctx context.Context) error {
		if err := e.requireOwnership(ctx, wizardIDs, userID); err != nil {
			return err
		}
		d, err := e.insertDuel(ctx, duelParams{
			budget:    budget,
			wizards:   wizardIDs,
			users:     []string{userID},
			createdBy: userID,
			origin:    "direct",
		})
		out = d
		return err
	})
	if err != nil {
		return nil, err
	}
	logging.Info("duel created", logging.Fields{constants.LogFieldDuelID: out.ID, constants.LogFieldUserID: userID, "short_code": out.ShortCode})
	return out, nil
}

// JoinDuel adds a second player's wizards. Starting the duel is left to
// the scheduler. Once the introduction has begun the roster is closed.
func (e *Engine) JoinDuel(ctx context.Context, duelID string, wizardIDs []string, userID string) (*duel.Duel, error) {
	if len(wizardIDs) == 0 {
		return nil, duel.InvalidArgument("at least one wizard is required")
	}
	if err := uniqueIDs(wizardIDs); err != nil {
		return nil, err
	}
	d, err := e.mutateDuel(ctx, duelID, func(ctx context.Context, d *duel.Duel) error {
		if d.Status != duel.StatusWaitingForPlayers || d.IntroducedAt != nil {
			return duel.InvalidState("Duel is not accepting new players")
		}
		if d.HasUser(userID) {
			return duel.ErrDuplicatePlayer
		}
		for _, w := range wizardIDs {
			if d.HasWizard(w) {
				return duel.InvalidArgument("wizard %s is already in this duel", w)
			}
		}
		if err := e.requireOwnership(ctx, wizardIDs, userID); err != nil {
			return err
		}
		d.ParticipantUsers = append(d.ParticipantUsers, userID)
		for _, w := range wizardIDs {
			d.ParticipantWizards = append(d.ParticipantWizards, w)
			d.Score[w] = 0
			d.Vitality[w] = duel.InitialVitality
			d.PendingActionsFrom = append(d.PendingActionsFrom, w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(events.TypeDuelUpdated, d, 0)
	return d, nil
}

// CancelDuel ends a duel that has not finished. Resolved rounds stay as
// they are. A cancelled campaign battle counts as lost.
func (e *Engine) CancelDuel(ctx context.Context, duelID string) (*duel.Duel, error) {
	d, err := e.mutateDuel(ctx, duelID, func(ctx context.Context, d *duel.Duel) error {
		if d.Status.IsTerminal() {
			return duel.InvalidState("cannot cancel a completed duel")
		}
		if err := d.TransitionTo(duel.StatusCancelled); err != nil {
			return err
		}
		d.PendingActionsFrom = []string{}
		if d.IsCampaignBattle {
			b, err := e.store.GetBattleByDuel(ctx, d.ID)
			if err != nil {
				return err
			}
			if b != nil {
				if _, err := e.store.FinishBattle(ctx, b.ID, duel.BattleLost); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.DuelsFinished.WithLabelValues(string(duel.StatusCancelled)).Inc()
	logging.Info("duel cancelled", logging.Fields{constants.LogFieldDuelID: d.ID})
	e.publish(events.TypeDuelFinished, d, d.CurrentRoundNumber)
	return d, nil
}

// StartDuelAfterIntroduction moves a waiting duel to IN_PROGRESS and opens
// round 1.
func (e *Engine) StartDuelAfterIntroduction(ctx context.Context, duelID string) (*duel.Duel, error) {
	d, err := e.mutateDuel(ctx, duelID, func(ctx context.Context, d *duel.Duel) error {
		_, err := e.startDuel(ctx, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.publish(events.TypeDuelUpdated, d, d.CurrentRoundNumber)
	return d, nil
}

func (e *Engine) startDuel(ctx context.Context, d *duel.Duel) (*duel.Round, error) {
	if err := d.TransitionTo(duel.StatusInProgress); err != nil {
		return nil, err
	}
	d.CurrentRoundNumber = 1
	return e.openRound(ctx, d, 1)
}

// BeginIntroduction starts a duel that has exactly two players: it opens
// round 0, narrates it and then starts round 1. A duel that was already
// introduced is returned unchanged.
func (e *Engine) BeginIntroduction(ctx context.Context, duelID string) (*duel.Duel, error) {
	var intro *duel.Round
	d, err := e.mutateDuel(ctx, duelID, func(ctx context.Context, d *duel.Duel) error {
		intro = nil
		if d.Status != duel.StatusWaitingForPlayers {
			return duel.InvalidState("duel %s is not waiting for players", d.ID)
		}
		if d.IntroducedAt != nil {
			return nil
		}
		if d.DistinctUsers() != 2 {
			return duel.InvalidState("duel needs exactly two players to start")
		}
		now := e.now()
		d.IntroducedAt = &now
		intro = &duel.Round{
			ID:          uuid.NewString(),
			DuelID:      d.ID,
			RoundNumber: duel.IntroductionRound,
			Kind:        duel.KindSpellCasting,
			Status:      duel.RoundProcessing,
			Actions:     map[string]duel.Action{},
			ClaimedAt:   &now,
		}
		return e.store.CreateRound(ctx, intro)
	})
	if err != nil {
		return nil, err
	}
	if intro == nil {
		return d, nil
	}
	if _, err := e.ResolveRound(ctx, d.ID, intro.ID); err != nil {
		return nil, err
	}
	return e.store.GetDuel(ctx, d.ID)
}

// openRound creates the next spell-casting round and resets the pending
// set to the living wizards. Scripted campaign opponents act immediately.
func (e *Engine) openRound(ctx context.Context, d *duel.Duel, number int) (*duel.Round, error) {
	deadline := e.now().Add(e.cfg.ActionTimeout)
	r := &duel.Round{
		ID:          uuid.NewString(),
		DuelID:      d.ID,
		RoundNumber: number,
		Kind:        duel.KindSpellCasting,
		Status:      duel.RoundWaitingForSpells,
		Actions:     map[string]duel.Action{},
		Deadline:    &deadline,
	}
	d.PendingActionsFrom = d.LivingWizards()
	if d.IsCampaignBattle {
		if err := e.castScriptedActions(ctx, d, r); err != nil {
			return nil, err
		}
	}
	if err := e.store.CreateRound(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (e *Engine) castScriptedActions(ctx context.Context, d *duel.Duel, r *duel.Round) error {
	for _, id := range d.LivingWizards() {
		w, err := e.wizards.GetWizard(ctx, id)
		if err != nil {
			return err
		}
		if !w.IsCampaignOpponent {
			continue
		}
		spell := strings.TrimSpace(w.SignatureSpell)
		if spell == "" {
			spell = fmt.Sprintf(defaultScriptedAction, w.Name)
		}
		r.Actions[id] = duel.Action{WizardID: id, Description: spell, SubmittedAt: e.now()}
		d.RemovePending(id)
	}
	return nil
}

// insertDuel allocates a short code and inserts the duel. The unique index
// backs up the existence check.
func (e *Engine) insertDuel(ctx context.Context, params duelParams) (*duel.Duel, error) {
	d := &duel.Duel{
		ID:                 uuid.NewString(),
		RoundBudget:        params.budget,
		ParticipantWizards: append([]string(nil), params.wizards...),
		ParticipantUsers:   append([]string(nil), params.users...),
		Status:             duel.StatusWaitingForPlayers,
		CurrentRoundNumber: 1,
		Score:              make(map[string]int, len(params.wizards)),
		Vitality:           make(map[string]int, len(params.wizards)),
		PendingActionsFrom: append([]string(nil), params.wizards...),
		IsCampaignBattle:   params.campaign,
		CreatedBy:          params.createdBy,
	}
	for _, w := range params.wizards {
		d.Score[w] = 0
		d.Vitality[w] = duel.InitialVitality
	}
	for attempt := 0; attempt < maxShortCodeAttempts; attempt++ {
		code, err := e.shortCodes()
		if err != nil {
			return nil, errors.WrapIf(err, "generate short code")
		}
		taken, err := e.store.ShortCodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}
		d.ShortCode = code
		err = e.store.CreateDuel(ctx, d)
		if errors.Is(err, storage.ErrShortCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		metrics.DuelsCreated.WithLabelValues(params.origin).Inc()
		return d, nil
	}
	return nil, ErrShortCodeExhausted
}

// requireOwnership fails with Unauthorized unless userID owns every
// wizard. Missing wizards are NotFound.
func (e *Engine) requireOwnership(ctx context.Context, wizardIDs []string, userID string) error {
	for _, id := range wizardIDs {
		w, err := e.wizards.GetWizard(ctx, id)
		if err != nil {
			return err
		}
		if w.OwnerUserID != userID {
			return duel.Unauthorized("wizard %s is not owned by the requesting user", id)
		}
	}
	return nil
}

func uniqueIDs(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return duel.InvalidArgument("wizard id must not be empty")
		}
		if _, dup := seen[id]; dup {
			return duel.InvalidArgument("wizard %s listed twice", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (e *Engine) GetDuel(ctx context.Context, id string) (*duel.Duel, error) {
	return e.store.GetDuel(ctx, id)
}

func (e *Engine) GetDuelByShortCode(ctx context.Context, code string) (*duel.Duel, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != duel.ShortCodeLength {
		return nil, duel.InvalidArgument("short code must be %d characters", duel.ShortCodeLength)
	}
	return e.store.GetDuelByShortCode(ctx, code)
}

func (e *Engine) ListDuelsByPlayer(ctx context.Context, userID string) ([]duel.Duel, error) {
	return e.store.ListDuelsByUser(ctx, userID)
}

// ListActiveDuels returns duels that are waiting or in progress.
func (e *Engine) ListActiveDuels(ctx context.Context) ([]duel.Duel, error) {
	return e.store.ListDuelsByStatus(ctx, duel.StatusWaitingForPlayers, duel.StatusInProgress)
}

// GetRounds returns the duel's rounds in order.
func (e *Engine) GetRounds(ctx context.Context, duelID string) ([]duel.Round, error) {
	if _, err := e.store.GetDuel(ctx, duelID); err != nil {
		return nil, err
	}
	return e.store.ListRounds(ctx, duelID)
}

// CreateWizard registers a wizard owned by userID.
func (e *Engine) CreateWizard(ctx context.Context, userID, name, description string) (*duel.Wizard, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, duel.InvalidArgument("wizard name is required")
	}
	w := &duel.Wizard{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		OwnerUserID: userID,
	}
	if err := e.store.CreateWizard(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (e *Engine) GetWizard(ctx context.Context, id string) (*duel.Wizard, error) {
	return e.wizards.GetWizard(ctx, id)
}

func (e *Engine) ListWizards(ctx context.Context, userID string) ([]duel.Wizard, error) {
	return e.store.ListWizardsByOwner(ctx, userID)
}
