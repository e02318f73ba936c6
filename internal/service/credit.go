package service

import (
	"context"

	"emperror.dev/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/metrics"
)

// ChargeResult reports whether the duel's credit had already been spent.
// A repeat charge is a success, not an error.
type ChargeResult struct {
	AlreadyConsumed bool `json:"alreadyConsumed"`
}

// errFlagTaken rolls back a debit when another caller set the flag first.
var errFlagTaken = errors.New("credit flag already set")

// ChargeOnce consumes at most one credit per duel. The flag and the debit
// commit together; unlimited accounts only set the flag.
func (e *Engine) ChargeOnce(ctx context.Context, duelID, userID string) (res ChargeResult, err error) {
	ctx, span := startSpan(ctx, "service.ChargeOnce")
	span.SetAttributes(attribute.String(constants.LogFieldDuelID, duelID))
	defer func() { endSpan(span, err) }()

	err = e.store.Transaction(ctx, func(ctx context.Context) error {
		d, err := e.store.GetDuel(ctx, duelID)
		if err != nil {
			return err
		}
		if d.CreditCharged {
			return errFlagTaken
		}
		unlimited, err := e.ledger.IsUnlimited(ctx, userID)
		if err != nil {
			return err
		}
		if !unlimited {
			ok, err := e.ledger.HasBalance(ctx, userID)
			if err != nil {
				return err
			}
			if ok {
				ok, err = e.ledger.Debit(ctx, userID)
				if err != nil {
					return err
				}
			}
			if !ok {
				return duel.ErrInsufficientResource
			}
		}
		claimed, err := e.store.ClaimCreditFlag(ctx, duelID, userID)
		if err != nil {
			return err
		}
		if !claimed {
			return errFlagTaken
		}
		return nil
	})
	switch {
	case errors.Is(err, errFlagTaken):
		metrics.CreditCharges.WithLabelValues("already_consumed").Inc()
		return ChargeResult{AlreadyConsumed: true}, nil
	case errors.Is(err, duel.ErrInsufficientResource):
		metrics.CreditCharges.WithLabelValues("denied").Inc()
		return ChargeResult{}, err
	case err != nil:
		return ChargeResult{}, err
	}
	metrics.CreditCharges.WithLabelValues("charged").Inc()
	logging.Info("duel credit charged", logging.Fields{constants.LogFieldDuelID: duelID, constants.LogFieldUserID: userID})
	return ChargeResult{}, nil
}

// chargeForIllustration lets the illustration pipeline render once the
// duel's credit is settled, whether by this call or an earlier one.
func (e *Engine) chargeForIllustration(ctx context.Context, duelID, userID string) error {
	_, err := e.ChargeOnce(ctx, duelID, userID)
	return err
}

// GrantCredits tops up the built-in ledger.
func (e *Engine) GrantCredits(ctx context.Context, userID string, amount int, unlimited bool) (*duel.CreditAccount, error) {
	return e.store.Credits().Grant(ctx, userID, amount, unlimited)
}
