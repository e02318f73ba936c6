package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/outcome"
)

// introHookGenerator runs onIntro while the introduction narrative is
// being generated.
type introHookGenerator struct {
	*scriptedGenerator
	onIntro func()
}

func (g *introHookGenerator) Generate(ctx context.Context, c outcome.Context) (*outcome.Proposal, error) {
	if c.Phase == outcome.PhaseIntroduction && g.onIntro != nil {
		g.onIntro()
	}
	return g.scriptedGenerator.Generate(ctx, c)
}

func TestCreateDuelInitializesState(t *testing.T) {
	h := newHarness(t, failing())
	w := h.wizard("u1", "Morgana")

	d, err := h.engine.CreateDuel(h.ctx, 3, []string{w.ID}, "u1")
	require.NoError(t, err)
	assert.Equal(t, duel.StatusWaitingForPlayers, d.Status)
	assert.Equal(t, 1, d.CurrentRoundNumber)
	assert.Equal(t, 0, d.Score[w.ID])
	assert.Equal(t, 100, d.Vitality[w.ID])
	assert.Equal(t, []string{w.ID}, d.PendingActionsFrom)
	assert.Equal(t, []string{"u1"}, d.ParticipantUsers)

	byCode, err := h.engine.GetDuelByShortCode(h.ctx, d.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, d.ID, byCode.ID)
}

func TestCreateDuelValidation(t *testing.T) {
	h := newHarness(t, failing())
	w := h.wizard("u1", "Morgana")

	_, err := h.engine.CreateDuel(h.ctx, 3, nil, "u1")
	assert.ErrorIs(t, err, duel.ErrInvalidArgument)

	_, err = h.engine.CreateDuel(h.ctx, 3, []string{w.ID}, "intruder")
	assert.ErrorIs(t, err, duel.ErrUnauthorized)

	_, err = h.engine.CreateDuel(h.ctx, 3, []string{"missing"}, "u1")
	assert.ErrorIs(t, err, duel.ErrNotFound)

	_, err = h.engine.CreateDuel(h.ctx, -1, []string{w.ID}, "u1")
	assert.ErrorIs(t, err, duel.ErrInvalidArgument)
}

func TestShortCodesAreUniqueAndWellFormed(t *testing.T) {
	h := newHarness(t, failing())
	w := h.wizard("u1", "Morgana")
	pattern := regexp.MustCompile(`^[A-Z0-9]{6}$`)

	seen := map[string]bool{}
	for i := 0; i < 40; i++ {
		d, err := h.engine.CreateDuel(h.ctx, duel.FightToIncapacitation, []string{w.ID}, "u1")
		require.NoError(t, err)
		assert.Regexp(t, pattern, d.ShortCode)
		assert.False(t, seen[d.ShortCode], "duplicate short code %s", d.ShortCode)
		seen[d.ShortCode] = true
	}
}

func TestShortCodeCollisionRetries(t *testing.T) {
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	h := newHarness(t, failing(), func(o *Options) {
		o.ShortCodes = func() (string, error) {
			c := codes[0]
			if len(codes) > 1 {
				codes = codes[1:]
			}
			return c, nil
		}
	})
	w := h.wizard("u1", "Morgana")

	first, err := h.engine.CreateDuel(h.ctx, 3, []string{w.ID}, "u1")
	require.NoError(t, err)
	second, err := h.engine.CreateDuel(h.ctx, 3, []string{w.ID}, "u1")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.ShortCode)
	assert.Equal(t, "BBBBBB", second.ShortCode)

	_, err = h.engine.CreateDuel(h.ctx, 3, []string{w.ID}, "u1")
	assert.ErrorIs(t, err, ErrShortCodeExhausted)
}

func TestJoinDuelRules(t *testing.T) {
	h := newHarness(t, failing())
	w1 := h.wizard("u1", "Morgana")
	w2 := h.wizard("u2", "Vexa")
	d, err := h.engine.CreateDuel(h.ctx, 3, []string{w1.ID}, "u1")
	require.NoError(t, err)

	extra := h.wizard("u1", "Morgana's apprentice")
	_, err = h.engine.JoinDuel(h.ctx, d.ID, []string{extra.ID}, "u1")
	assert.ErrorIs(t, err, duel.ErrDuplicatePlayer)

	_, err = h.engine.JoinDuel(h.ctx, d.ID, []string{w2.ID}, "u1")
	assert.ErrorIs(t, err, duel.ErrDuplicatePlayer)

	_, err = h.engine.JoinDuel(h.ctx, d.ID, []string{w2.ID}, "u3")
	assert.ErrorIs(t, err, duel.ErrUnauthorized)

	joined, err := h.engine.JoinDuel(h.ctx, d.ID, []string{w2.ID}, "u2")
	require.NoError(t, err)
	assert.Equal(t, duel.StatusWaitingForPlayers, joined.Status)
	assert.Equal(t, []string{w1.ID, w2.ID}, joined.ParticipantWizards)
	assert.Equal(t, 100, joined.Vitality[w2.ID])
	assert.ElementsMatch(t, []string{w1.ID, w2.ID}, joined.PendingActionsFrom)
}

func TestJoinInProgressDuelFails(t *testing.T) {
	h := newHarness(t, failing())
	d, _, _ := h.startedDuel(3)
	w3 := h.wizard("u3", "Ashen")

	_, err := h.engine.JoinDuel(h.ctx, d.ID, []string{w3.ID}, "u3")
	require.ErrorIs(t, err, duel.ErrInvalidState)
	assert.Equal(t, "Duel is not accepting new players", err.Error())
}

func TestJoinDuringIntroductionFails(t *testing.T) {
	gen := &introHookGenerator{scriptedGenerator: failing()}
	h := newHarness(t, gen)
	w1 := h.wizard("u1", "Morgana")
	w2 := h.wizard("u2", "Vexa")
	w3 := h.wizard("u3", "Ashen")
	d, err := h.engine.CreateDuel(h.ctx, 3, []string{w1.ID}, "u1")
	require.NoError(t, err)
	_, err = h.engine.JoinDuel(h.ctx, d.ID, []string{w2.ID}, "u2")
	require.NoError(t, err)

	var joinErr error
	calls := 0
	gen.onIntro = func() {
		calls++
		_, joinErr = h.engine.JoinDuel(h.ctx, d.ID, []string{w3.ID}, "u3")
	}

	started, err := h.engine.BeginIntroduction(h.ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.ErrorIs(t, joinErr, duel.ErrInvalidState)
	assert.Equal(t, "Duel is not accepting new players", joinErr.Error())

	assert.Equal(t, duel.StatusInProgress, started.Status)
	final := h.duel(d.ID)
	assert.Equal(t, []string{"u1", "u2"}, final.ParticipantUsers)
	assert.Equal(t, []string{w1.ID, w2.ID}, final.ParticipantWizards)
}

func TestBeginIntroductionOpensRoundOne(t *testing.T) {
	h := newHarness(t, failing())
	d, w1, w2 := h.startedDuel(3)

	assert.NotNil(t, d.IntroducedAt)
	rounds, err := h.engine.GetRounds(h.ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)

	intro := rounds[0]
	assert.Equal(t, duel.IntroductionRound, intro.RoundNumber)
	assert.Equal(t, duel.RoundCompleted, intro.Status)
	require.NotNil(t, intro.Outcome)
	assert.NotEmpty(t, intro.Outcome.Narrative)
	assert.Equal(t, 0, intro.Outcome.PointsAwarded[w1.ID])

	first := rounds[1]
	assert.Equal(t, 1, first.RoundNumber)
	assert.Equal(t, duel.RoundWaitingForSpells, first.Status)
	require.NotNil(t, first.Deadline)
	assert.ElementsMatch(t, []string{w1.ID, w2.ID}, d.PendingActionsFrom)

	again, err := h.engine.BeginIntroduction(h.ctx, d.ID)
	assert.ErrorIs(t, err, duel.ErrInvalidState)
	assert.Nil(t, again)
}

func TestBeginIntroductionNeedsTwoPlayers(t *testing.T) {
	h := newHarness(t, failing())
	w := h.wizard("u1", "Morgana")
	d, err := h.engine.CreateDuel(h.ctx, 3, []string{w.ID}, "u1")
	require.NoError(t, err)

	_, err = h.engine.BeginIntroduction(h.ctx, d.ID)
	assert.ErrorIs(t, err, duel.ErrInvalidState)

	started, err := h.engine.StartReadyDuels(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, started)
}

func TestStartReadyDuels(t *testing.T) {
	h := newHarness(t, failing())
	w1 := h.wizard("u1", "Morgana")
	w2 := h.wizard("u2", "Vexa")
	d, err := h.engine.CreateDuel(h.ctx, 3, []string{w1.ID}, "u1")
	require.NoError(t, err)
	_, err = h.engine.JoinDuel(h.ctx, d.ID, []string{w2.ID}, "u2")
	require.NoError(t, err)

	started, err := h.engine.StartReadyDuels(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	assert.Equal(t, duel.StatusInProgress, h.duel(d.ID).Status)

	started, err = h.engine.StartReadyDuels(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, started)
}

func TestCancelDuel(t *testing.T) {
	h := newHarness(t, failing())
	d, w1, _ := h.startedDuel(3)

	cancelled, err := h.engine.CancelDuel(h.ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, duel.StatusCancelled, cancelled.Status)

	_, err = h.engine.CancelDuel(h.ctx, d.ID)
	require.ErrorIs(t, err, duel.ErrInvalidState)
	assert.Equal(t, "cannot cancel a completed duel", err.Error())

	_, _, err = h.engine.SubmitAction(h.ctx, d.ID, w1.ID, "too late", "u1")
	assert.ErrorIs(t, err, duel.ErrInvalidState)

	_, err = h.engine.StartDuelAfterIntroduction(h.ctx, d.ID)
	assert.ErrorIs(t, err, duel.ErrInvalidState)
}

func TestListDuels(t *testing.T) {
	h := newHarness(t, failing())
	d, _, _ := h.startedDuel(3)
	w := h.wizard("u3", "Ashen")
	waiting, err := h.engine.CreateDuel(h.ctx, 2, []string{w.ID}, "u3")
	require.NoError(t, err)

	mine, err := h.engine.ListDuelsByPlayer(h.ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, d.ID, mine[0].ID)

	active, err := h.engine.ListActiveDuels(h.ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = h.engine.CancelDuel(h.ctx, waiting.ID)
	require.NoError(t, err)
	active, err = h.engine.ListActiveDuels(h.ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
