package service

import (
	"context"

	"emperror.dev/errors"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
)

// StartReadyDuels introduces every waiting duel that has exactly two
// players and no introduction yet. It returns how many were started.
func (e *Engine) StartReadyDuels(ctx context.Context) (int, error) {
	waiting, err := e.store.ListDuelsByStatus(ctx, duel.StatusWaitingForPlayers)
	if err != nil {
		return 0, err
	}
	started := 0
	for i := range waiting {
		d := &waiting[i]
		if d.IntroducedAt != nil || d.DistinctUsers() != 2 {
			continue
		}
		if _, err := e.BeginIntroduction(ctx, d.ID); err != nil {
			if !errors.Is(err, duel.ErrInvalidState) {
				logging.Warn("failed to start duel", err, logging.Fields{constants.LogFieldDuelID: d.ID})
			}
			continue
		}
		started++
	}
	return started, nil
}

// ResolveStalledRounds resolves rounds whose action deadline passed and
// rounds whose PROCESSING claim went stale, with whatever actions exist.
func (e *Engine) ResolveStalledRounds(ctx context.Context) (int, error) {
	now := e.now()
	stalled, err := e.store.ListStalledRounds(ctx, now, now.Add(-e.cfg.StaleProcessingAfter), sweepBatchSize)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, r := range stalled {
		if _, err := e.ResolveRound(ctx, r.DuelID, r.ID); err != nil {
			logging.Warn("stalled round resolution failed", err, logging.Fields{
				constants.LogFieldDuelID:  r.DuelID,
				constants.LogFieldRoundID: r.ID,
				constants.LogFieldRound:   r.RoundNumber,
			})
			continue
		}
		resolved++
	}
	return resolved, nil
}
