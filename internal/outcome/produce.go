package outcome

import (
	"context"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/metrics"
)

// Produce always yields a sanitized outcome: the generator's when it
// succeeds, the deterministic fallback otherwise. Generator failures are
// logged and counted, never returned.
func Produce(ctx context.Context, g Generator, c Context) duel.Outcome {
	r := Attempt(ctx, g, c)
	if r.OK() {
		out := Sanitize(c, r.Proposal)
		out.Source = SourceGenerator
		return out
	}
	metrics.GeneratorFailures.Inc()
	logging.Warn("outcome generator failed; using fallback", r.Failure, logging.Fields{
		constants.LogFieldDuelID: c.DuelID,
		constants.LogFieldRound:  c.RoundNumber,
		"phase":                  string(c.Phase),
	})
	out := Sanitize(c, Fallback(c))
	out.Source = SourceFallback
	out.FallbackReason = r.Failure.Error()
	return out
}
