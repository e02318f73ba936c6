package service

import (
	"context"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/dedupe"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/events"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/illustration"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/metrics"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/outcome"
)

const abandonedNarrative = "The duel ended before this round could be resolved."

// SubmitAction records a wizard's spell for the active round. ready is
// true when this was the last pending action; the round is then already
// PROCESSING and the caller should resolve it.
func (e *Engine) SubmitAction(ctx context.Context, duelID, wizardID, description, userID string) (round *duel.Round, ready bool, err error) {
	description = strings.TrimSpace(description)
	d, err := e.mutateDuel(ctx, duelID, func(ctx context.Context, d *duel.Duel) error {
		round, ready = nil, false
		if d.Status != duel.StatusInProgress {
			return duel.InvalidState("duel is not in progress")
		}
		r, err := e.store.GetRoundByNumber(ctx, d.ID, d.CurrentRoundNumber)
		if err != nil {
			return err
		}
		if r.Status != duel.RoundWaitingForSpells {
			return duel.InvalidState("round not accepting actions")
		}
		if !d.HasWizard(wizardID) {
			return duel.Unauthorized("wizard %s is not part of this duel", wizardID)
		}
		w, err := e.wizards.GetWizard(ctx, wizardID)
		if err != nil {
			return err
		}
		if w.OwnerUserID != userID {
			return duel.Unauthorized("wizard %s is not owned by the requesting user", wizardID)
		}
		if _, acted := r.Actions[wizardID]; acted {
			return duel.ErrDuplicateAction
		}
		if description == "" {
			return duel.InvalidArgument("spell description is required")
		}
		now := e.now()
		if r.Actions == nil {
			r.Actions = map[string]duel.Action{}
		}
		r.Actions[wizardID] = duel.Action{WizardID: wizardID, Description: description, SubmittedAt: now}
		d.RemovePending(wizardID)
		if len(d.PendingActionsFrom) == 0 {
			if err := r.TransitionTo(duel.RoundProcessing); err != nil {
				return err
			}
			r.ClaimedAt = &now
			ready = true
		}
		if err := e.store.SaveRound(ctx, r, duel.RoundWaitingForSpells); err != nil {
			return err
		}
		round = r
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	e.publish(events.TypeActionTaken, d, round.RoundNumber)
	return round, ready, nil
}

// ResolveAsync resolves a round in the background. Failures are logged;
// the stalled-round sweep retries them.
func (e *Engine) ResolveAsync(duelID, roundID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncResolveTimeout)
		defer cancel()
		if _, err := e.ResolveRound(ctx, duelID, roundID); err != nil {
			logging.Error("background round resolution failed", err, logging.Fields{
				constants.LogFieldDuelID:  duelID,
				constants.LogFieldRoundID: roundID,
			})
		}
	}()
}

// ResolveRound drives a round to COMPLETED. Calls for a round that is
// already completed return it unchanged, and concurrent calls in this
// process share one resolution.
func (e *Engine) ResolveRound(ctx context.Context, duelID, roundID string) (*duel.Round, error) {
	v, err, _ := dedupe.RoundGroup.Do(roundID, func() (interface{}, error) {
		return e.resolveRound(ctx, duelID, roundID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*duel.Round), nil
}

func (e *Engine) resolveRound(ctx context.Context, duelID, roundID string) (r *duel.Round, err error) {
	ctx, span := startSpan(ctx, "service.ResolveRound")
	span.SetAttributes(attribute.String(constants.LogFieldDuelID, duelID), attribute.String(constants.LogFieldRoundID, roundID))
	defer func() { endSpan(span, err) }()
	started := time.Now()

	r, err = e.claimRound(ctx, duelID, roundID)
	if err != nil || r.Status == duel.RoundCompleted {
		return r, err
	}
	d, err := e.store.GetDuel(ctx, duelID)
	if err != nil {
		return nil, err
	}

	phase := phaseOf(r)
	var out duel.Outcome
	if phase == outcome.PhaseRound && d.Status.IsTerminal() {
		out = duel.Outcome{Narrative: abandonedNarrative, Source: outcome.SourceFallback, FallbackReason: "duel " + strings.ToLower(string(d.Status))}
	} else {
		oc, err := e.buildContext(ctx, d, r, phase)
		if err != nil {
			return nil, err
		}
		out = outcome.Produce(ctx, e.generator, oc)
		out.IllustrationKey = e.illustrate(ctx, d, r, oc, out.IllustrationPrompt)
	}

	var conclusion *duel.Round
	var finished bool
	err = e.atomically(ctx, func(ctx context.Context) error {
		conclusion, finished = nil, false
		cur, err := e.store.GetRound(ctx, roundID)
		if err != nil {
			return err
		}
		if cur.Status == duel.RoundCompleted {
			r = cur
			return nil
		}
		d, err := e.store.GetDuel(ctx, duelID)
		if err != nil {
			return err
		}
		from := cur.Status
		if cur.Status == duel.RoundWaitingForSpells {
			if err := cur.TransitionTo(duel.RoundProcessing); err != nil {
				return err
			}
		}
		if err := cur.TransitionTo(duel.RoundCompleted); err != nil {
			return err
		}
		applied := out
		now := e.now()
		cur.Outcome = &applied
		cur.CompletedAt = &now
		if err := e.store.SaveRound(ctx, cur, from); err != nil {
			return err
		}

		switch phase {
		case outcome.PhaseIntroduction:
			if d.Status == duel.StatusWaitingForPlayers {
				if _, err := e.startDuel(ctx, d); err != nil {
					return err
				}
			}
		case outcome.PhaseRound:
			if d.Status == duel.StatusInProgress {
				conclusion, finished, err = e.applyRound(ctx, d, cur)
				if err != nil {
					return err
				}
			}
		}
		// The version bump serializes concurrent writers of this duel's
		// rounds even when nothing else changed.
		if err := e.store.UpdateDuel(ctx, d); err != nil {
			return err
		}
		r = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RoundsResolved.WithLabelValues(out.Source).Inc()
	metrics.ResolveDuration.Observe(time.Since(started).Seconds())
	logging.Info("round resolved", logging.Fields{
		constants.LogFieldDuelID:  duelID,
		constants.LogFieldRound:   r.RoundNumber,
		constants.LogFieldSource:  out.Source,
		"kind":                    string(r.Kind),
		"illustrated":             out.IllustrationKey != "",
	})

	d, err = e.store.GetDuel(ctx, duelID)
	if err != nil {
		return r, nil
	}
	e.publish(events.TypeRoundResolved, d, r.RoundNumber)
	if finished {
		metrics.DuelsFinished.WithLabelValues(string(duel.StatusCompleted)).Inc()
		e.publish(events.TypeDuelFinished, d, r.RoundNumber)
	}
	if conclusion != nil {
		if _, err := e.ResolveRound(ctx, duelID, conclusion.ID); err != nil {
			logging.Warn("conclusion narration failed; the stalled-round sweep will retry", err, logging.Fields{
				constants.LogFieldDuelID:  duelID,
				constants.LogFieldRoundID: conclusion.ID,
			})
		}
	}
	return r, nil
}

// claimRound moves a waiting round to PROCESSING, or refreshes the claim
// of one that is already processing.
func (e *Engine) claimRound(ctx context.Context, duelID, roundID string) (*duel.Round, error) {
	r, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if r.DuelID != duelID {
		return nil, duel.NotFound("round %s not found in duel %s", roundID, duelID)
	}
	now := e.now()
	switch r.Status {
	case duel.RoundCompleted:
		return r, nil
	case duel.RoundWaitingForSpells:
		if _, err := e.store.ClaimRound(ctx, duelID, roundID, now); err != nil {
			return nil, err
		}
	default:
		if err := e.store.TouchClaim(ctx, roundID, now); err != nil {
			return nil, err
		}
	}
	return e.store.GetRound(ctx, roundID)
}

// applyRound adds the outcome to the duel and either ends it or opens the
// next round.
func (e *Engine) applyRound(ctx context.Context, d *duel.Duel, r *duel.Round) (conclusion *duel.Round, finished bool, err error) {
	for _, w := range d.ParticipantWizards {
		d.Score[w] += r.Outcome.PointsAwarded[w]
		d.Vitality[w] = outcome.ApplyHealth(d.Vitality[w], r.Outcome.HealthChange[w])
	}
	if !shouldEnd(d) {
		d.CurrentRoundNumber++
		_, err := e.openRound(ctx, d, d.CurrentRoundNumber)
		return nil, false, err
	}
	conclusion, err = e.finishDuel(ctx, d)
	return conclusion, true, err
}

// shouldEnd reports whether a wizard fell, the round budget is spent or
// fewer than two wizards can still fight.
func shouldEnd(d *duel.Duel) bool {
	for _, w := range d.ParticipantWizards {
		if d.Vitality[w] <= 0 {
			return true
		}
	}
	if d.RoundBudget.IsFixed() && d.CurrentRoundNumber >= int(d.RoundBudget) {
		return true
	}
	return len(d.LivingWizards()) < 2
}

// finishDuel completes the duel, applies wizard records once, settles a
// campaign battle and opens the conclusion round.
func (e *Engine) finishDuel(ctx context.Context, d *duel.Duel) (*duel.Round, error) {
	if err := d.TransitionTo(duel.StatusCompleted); err != nil {
		return nil, err
	}
	d.Winners, d.Losers = duel.DecideResult(d)
	d.PendingActionsFrom = []string{}

	if !d.StatsRecorded {
		draw := d.IsDraw()
		for _, w := range d.ParticipantWizards {
			won, lost := containsID(d.Winners, w), containsID(d.Losers, w)
			if draw && won && lost {
				continue
			}
			if !won && !lost {
				continue
			}
			if err := e.wizards.RecordResult(ctx, w, won && !lost, d.IsCampaignBattle); err != nil {
				return nil, err
			}
		}
		d.StatsRecorded = true
	}

	if d.IsCampaignBattle {
		if _, err := e.settleBattle(ctx, d); err != nil {
			return nil, err
		}
	}

	now := e.now()
	conclusion := &duel.Round{
		ID:          uuid.NewString(),
		DuelID:      d.ID,
		RoundNumber: d.CurrentRoundNumber + 1,
		Kind:        duel.KindConclusion,
		Status:      duel.RoundProcessing,
		Actions:     map[string]duel.Action{},
		ClaimedAt:   &now,
	}
	if err := e.store.CreateRound(ctx, conclusion); err != nil {
		return nil, err
	}
	logging.Info("duel completed", logging.Fields{
		constants.LogFieldDuelID: d.ID,
		"winners":                d.Winners,
		"losers":                 d.Losers,
	})
	return conclusion, nil
}

func phaseOf(r *duel.Round) outcome.Phase {
	switch {
	case r.Kind == duel.KindConclusion:
		return outcome.PhaseConclusion
	case r.IsIntroduction():
		return outcome.PhaseIntroduction
	default:
		return outcome.PhaseRound
	}
}

// buildContext gathers wizard snapshots, luck, actions and history. Every
// participant must load and at least two distinct wizards must remain.
func (e *Engine) buildContext(ctx context.Context, d *duel.Duel, r *duel.Round, phase outcome.Phase) (outcome.Context, error) {
	oc := outcome.Context{DuelID: d.ID, Phase: phase, RoundNumber: r.RoundNumber}
	names := make(map[string]string, len(d.ParticipantWizards))
	for _, id := range d.ParticipantWizards {
		w, err := e.wizards.GetWizard(ctx, id)
		if err != nil {
			if errors.Is(err, duel.ErrNotFound) {
				return oc, duel.ErrDataIntegrity
			}
			return oc, err
		}
		snap := outcome.WizardSnapshot{
			ID:          w.ID,
			Name:        w.Name,
			Description: w.Description,
			Wins:        w.Wins,
			Losses:      w.Losses,
			Vitality:    d.Vitality[id],
			Score:       d.Score[id],
		}
		if phase == outcome.PhaseRound {
			luck, err := e.luckFor(ctx, id)
			if err != nil {
				return oc, err
			}
			snap.Luck = luck
		}
		names[id] = w.Name
		oc.Wizards = append(oc.Wizards, snap)
	}
	if len(names) < 2 {
		return oc, duel.ErrDataIntegrity
	}

	for _, id := range d.ParticipantWizards {
		if a, ok := r.Actions[id]; ok {
			oc.Actions = append(oc.Actions, outcome.ActionSnapshot{WizardID: id, WizardName: names[id], Description: a.Description})
		}
	}

	rounds, err := e.store.ListRounds(ctx, d.ID)
	if err != nil {
		return oc, err
	}
	for _, prev := range rounds {
		if prev.RoundNumber >= r.RoundNumber || prev.Outcome == nil || prev.Outcome.Narrative == "" {
			continue
		}
		oc.History = append(oc.History, prev.Outcome.Narrative)
	}

	if phase == outcome.PhaseConclusion {
		for _, w := range d.Winners {
			oc.Winners = append(oc.Winners, names[w])
		}
		for _, w := range d.Losers {
			oc.Losers = append(oc.Losers, names[w])
		}
	}
	return oc, nil
}

// luckFor rolls 1..20; holders of the campaign completion relic get the
// configured bonus.
func (e *Engine) luckFor(ctx context.Context, wizardID string) (int, error) {
	luck := e.rollLuck()
	relic, err := e.store.HasCompletionRelic(ctx, wizardID)
	if err != nil {
		return 0, err
	}
	if relic {
		luck += e.cfg.Campaign.RelicLuckBonus
	}
	return outcome.ClampLuck(luck), nil
}

// illustrate renders the round when a pipeline is configured. Failures
// leave the round text-only.
func (e *Engine) illustrate(ctx context.Context, d *duel.Duel, r *duel.Round, oc outcome.Context, prompt string) string {
	if e.pipeline == nil || strings.TrimSpace(prompt) == "" {
		return ""
	}
	names := make([]string, 0, len(oc.Wizards))
	for _, w := range oc.Wizards {
		names = append(names, w.Name)
	}
	key, err := e.pipeline.Illustrate(ctx, illustration.Request{
		DuelID:       d.ID,
		RoundNumber:  r.RoundNumber,
		WizardNames:  names,
		ChargeUserID: d.CreatedBy,
		Prompt:       prompt,
	})
	if err != nil {
		logging.Warn("illustration failed; round stays text-only", err, logging.Fields{
			constants.LogFieldDuelID: d.ID,
			constants.LogFieldRound:  r.RoundNumber,
		})
		return ""
	}
	return key
}

// Illustration returns the stored image for a round.
func (e *Engine) Illustration(ctx context.Context, duelID string, roundNumber int) ([]byte, error) {
	r, err := e.store.GetRoundByNumber(ctx, duelID, roundNumber)
	if err != nil {
		return nil, err
	}
	if r.Outcome == nil || r.Outcome.IllustrationKey == "" || e.pipeline == nil {
		return nil, duel.NotFound("round %d has no illustration", roundNumber)
	}
	return e.pipeline.Store().Get(ctx, r.Outcome.IllustrationKey)
}

func containsID(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
