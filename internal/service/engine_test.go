package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/config"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/outcome"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/storage"
)

// scriptedGenerator answers with fn; intro and conclusion phases get a
// plain narrative unless fn handles them.
type scriptedGenerator struct {
	mu       sync.Mutex
	contexts []outcome.Context
	fn       func(c outcome.Context) (*outcome.Proposal, error)
}

func (g *scriptedGenerator) Generate(_ context.Context, c outcome.Context) (*outcome.Proposal, error) {
	g.mu.Lock()
	g.contexts = append(g.contexts, c)
	g.mu.Unlock()
	if c.Phase != outcome.PhaseRound {
		return &outcome.Proposal{Narrative: "The arena hums as " + string(c.Phase) + " begins."}, nil
	}
	return g.fn(c)
}

func (g *scriptedGenerator) roundContexts() []outcome.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []outcome.Context
	for _, c := range g.contexts {
		if c.Phase == outcome.PhaseRound {
			out = append(out, c)
		}
	}
	return out
}

// fixed scores every round the same way, keyed by wizard id.
func fixed(points, health map[string]float64) *scriptedGenerator {
	return &scriptedGenerator{fn: func(outcome.Context) (*outcome.Proposal, error) {
		return &outcome.Proposal{Narrative: "Spells collide.", PointsAwarded: points, HealthChange: health}, nil
	}}
}

func failing() *scriptedGenerator {
	return &scriptedGenerator{fn: func(outcome.Context) (*outcome.Proposal, error) {
		return nil, errors.New("upstream unavailable")
	}}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	engine *Engine
	store  *storage.Store
	clock  *testClock
}

func newHarness(t *testing.T, gen outcome.Generator, opts ...func(*Options)) *harness {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	db, err := storage.OpenInMemory(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	store := storage.New(db)
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := config.Default()
	o := Options{Config: cfg, Generator: gen, Now: clock.Now, RollLuck: func() int { return 10 }}
	for _, fn := range opts {
		fn(&o)
	}
	return &harness{t: t, ctx: context.Background(), engine: New(store, o), store: store, clock: clock}
}

func (h *harness) wizard(owner, name string) *duel.Wizard {
	h.t.Helper()
	w, err := h.engine.CreateWizard(h.ctx, owner, name, name+" of the northern towers")
	require.NoError(h.t, err)
	return w
}

func (h *harness) opponent(number int, spell string) *duel.Wizard {
	h.t.Helper()
	w := &duel.Wizard{
		ID:                 uuid.NewString(),
		Name:               "Warden " + string(rune('A'+number-1)),
		Description:        "a scripted guardian",
		OwnerUserID:        constants.CampaignOwner,
		IsCampaignOpponent: true,
		OpponentNumber:     number,
		SeasonID:           h.engine.Config().Campaign.SeasonID,
		SignatureSpell:     spell,
	}
	require.NoError(h.t, h.store.CreateWizard(h.ctx, w))
	return w
}

// startedDuel creates a two-player duel and runs the introduction.
func (h *harness) startedDuel(budget duel.RoundBudget) (*duel.Duel, *duel.Wizard, *duel.Wizard) {
	h.t.Helper()
	w1 := h.wizard("u1", "Morgana")
	w2 := h.wizard("u2", "Vexa")
	d, err := h.engine.CreateDuel(h.ctx, budget, []string{w1.ID}, "u1")
	require.NoError(h.t, err)
	_, err = h.engine.JoinDuel(h.ctx, d.ID, []string{w2.ID}, "u2")
	require.NoError(h.t, err)
	d, err = h.engine.BeginIntroduction(h.ctx, d.ID)
	require.NoError(h.t, err)
	require.Equal(h.t, duel.StatusInProgress, d.Status)
	return d, w1, w2
}

// playRound submits both actions and resolves the round.
func (h *harness) playRound(d *duel.Duel, w1, w2 *duel.Wizard) *duel.Round {
	h.t.Helper()
	_, ready, err := h.engine.SubmitAction(h.ctx, d.ID, w1.ID, "hurls a fireball", w1.OwnerUserID)
	require.NoError(h.t, err)
	require.False(h.t, ready)
	r, ready, err := h.engine.SubmitAction(h.ctx, d.ID, w2.ID, "raises an ice wall", w2.OwnerUserID)
	require.NoError(h.t, err)
	require.True(h.t, ready)
	require.Equal(h.t, duel.RoundProcessing, r.Status)
	resolved, err := h.engine.ResolveRound(h.ctx, d.ID, r.ID)
	require.NoError(h.t, err)
	require.Equal(h.t, duel.RoundCompleted, resolved.Status)
	return resolved
}

func (h *harness) duel(id string) *duel.Duel {
	h.t.Helper()
	d, err := h.engine.GetDuel(h.ctx, id)
	require.NoError(h.t, err)
	return d
}
