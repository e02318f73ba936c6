// Package service implements the duel engine: duel lifecycle, round
// resolution, matchmaking, campaign battles and the credit gate. Every
// operation is one storage transaction; generator and illustrator calls
// happen between transactions.
package service

import (
	"context"
	"math/rand/v2"
	"time"

	"emperror.dev/errors"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/config"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/events"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/illustration"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/outcome"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/storage"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/telemetry"
)

const (
	shortCodeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxShortCodeAttempts  = 10
	maxConflictRetries    = 5
	sweepBatchSize        = 50
	asyncResolveTimeout   = 3 * time.Minute
	defaultScriptedAction = "%s unleashes a signature spell"
)

// CreditLedger is the external account the credit gate debits. Calls made
// with a transaction-carrying context must join that transaction.
type CreditLedger interface {
	HasBalance(ctx context.Context, userID string) (bool, error)
	IsUnlimited(ctx context.Context, userID string) (bool, error)
	Debit(ctx context.Context, userID string) (bool, error)
}

// WizardDirectory gives read access to wizards and the win/loss write
// applied when a duel concludes.
type WizardDirectory interface {
	GetWizard(ctx context.Context, id string) (*duel.Wizard, error)
	RecordResult(ctx context.Context, wizardID string, won, campaign bool) error
}

type Options struct {
	Config    *config.LoadedConfig
	Generator outcome.Generator
	// Illustrator and Images are optional; without both rounds are
	// text-only.
	Illustrator illustration.Illustrator
	Images      illustration.Store
	Ledger      CreditLedger
	Wizards     WizardDirectory
	Events      events.Publisher

	Now        func() time.Time
	RollLuck   func() int
	ShortCodes func() (string, error)
}

type Engine struct {
	store     *storage.Store
	cfg       *config.LoadedConfig
	generator outcome.Generator
	pipeline  *illustration.Pipeline
	ledger    CreditLedger
	wizards   WizardDirectory
	events    events.Publisher

	clock      func() time.Time
	rollLuck   func() int
	shortCodes func() (string, error)
}

func New(store *storage.Store, opts Options) *Engine {
	e := &Engine{
		store:      store,
		cfg:        opts.Config,
		generator:  opts.Generator,
		ledger:     opts.Ledger,
		wizards:    opts.Wizards,
		events:     opts.Events,
		clock:      opts.Now,
		rollLuck:   opts.RollLuck,
		shortCodes: opts.ShortCodes,
	}
	if e.cfg == nil {
		e.cfg = config.Default()
	}
	if e.ledger == nil {
		e.ledger = store.Credits()
	}
	if e.wizards == nil {
		e.wizards = store
	}
	if e.events == nil {
		e.events = events.Nop{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.rollLuck == nil {
		e.rollLuck = func() int { return rand.IntN(outcome.MaxLuck) + outcome.MinLuck }
	}
	if e.shortCodes == nil {
		e.shortCodes = func() (string, error) {
			return gonanoid.Generate(shortCodeAlphabet, duel.ShortCodeLength)
		}
	}
	if opts.Illustrator != nil && opts.Images != nil {
		e.pipeline = illustration.NewPipeline(opts.Illustrator, opts.Images, e.chargeForIllustration)
	}
	return e
}

// Store exposes the repository for read-only handlers.
func (e *Engine) Store() *storage.Store { return e.store }

// Config returns the loaded configuration.
func (e *Engine) Config() *config.LoadedConfig { return e.cfg }

func (e *Engine) now() time.Time { return e.clock().UTC() }

// atomically runs fn in a transaction and reruns it when an optimistic
// write lost a race. It must not be called with a transaction-carrying
// context.
func (e *Engine) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		err = e.store.Transaction(ctx, fn)
		if !errors.Is(err, duel.ErrConflict) {
			return err
		}
	}
	return err
}

// mutateDuel loads the duel, applies fn and writes it back with a version
// check, all in one transaction.
func (e *Engine) mutateDuel(ctx context.Context, duelID string, fn func(ctx context.Context, d *duel.Duel) error) (*duel.Duel, error) {
	var out *duel.Duel
	err := e.atomically(ctx, func(ctx context.Context) error {
		d, err := e.store.GetDuel(ctx, duelID)
		if err != nil {
			return err
		}
		if err := fn(ctx, d); err != nil {
			return err
		}
		if err := e.store.UpdateDuel(ctx, d); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) publish(eventType string, d *duel.Duel, roundNumber int) {
	e.events.Publish(events.Event{
		Type:        eventType,
		DuelID:      d.ID,
		RoundNumber: roundNumber,
		Status:      string(d.Status),
	})
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
