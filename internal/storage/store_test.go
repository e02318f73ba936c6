package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/config"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	db, err := OpenInMemory(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return New(db)
}

func sampleDuel(code string) *duel.Duel {
	return &duel.Duel{
		ID:                 uuid.NewString(),
		ShortCode:          code,
		RoundBudget:        3,
		ParticipantWizards: []string{"w1"},
		ParticipantUsers:   []string{"u1"},
		Status:             duel.StatusWaitingForPlayers,
		CurrentRoundNumber: 1,
		Score:              map[string]int{"w1": 0},
		Vitality:           map[string]int{"w1": 100},
		PendingActionsFrom: []string{"w1"},
	}
}

func TestUpdateDuelDetectsStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := sampleDuel("ABC123")
	require.NoError(t, s.CreateDuel(ctx, d))

	first, err := s.GetDuel(ctx, d.ID)
	require.NoError(t, err)
	second, err := s.GetDuel(ctx, d.ID)
	require.NoError(t, err)

	first.Score["w1"] = 5
	require.NoError(t, s.UpdateDuel(ctx, first))

	second.Score["w1"] = 9
	err = s.UpdateDuel(ctx, second)
	assert.True(t, errors.Is(err, duel.ErrConflict), "expected conflict, got %v", err)

	got, err := s.GetDuel(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Score["w1"])
	assert.Equal(t, 1, got.Version)
}

func TestCreateDuelRejectsDuplicateShortCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDuel(ctx, sampleDuel("ZZZ999")))
	err := s.CreateDuel(ctx, sampleDuel("ZZZ999"))
	assert.ErrorIs(t, err, ErrShortCodeTaken)
}

func TestClaimCreditFlagOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := sampleDuel("CRD001")
	require.NoError(t, s.CreateDuel(ctx, d))

	ok, err := s.ClaimCreditFlag(ctx, d.ID, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ClaimCreditFlag(ctx, d.ID, "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetDuel(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.CreditCharged)
	assert.Equal(t, "u1", got.CreditChargedBy)
}

func TestTransactionRollsBackTogether(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := sampleDuel("TXN001")
	require.NoError(t, s.CreateDuel(ctx, d))
	_, err := s.Credits().Grant(ctx, "u1", 1, false)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.ClaimCreditFlag(ctx, d.ID, "u1"); err != nil {
			return err
		}
		if _, err := s.Credits().Debit(ctx, "u1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetDuel(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, got.CreditCharged)
	acct, err := s.Credits().Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, acct.Balance)
}

func TestDebitStopsAtZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	l := s.Credits()
	_, err := l.Grant(ctx, "u1", 1, false)
	require.NoError(t, err)

	ok, err := l.Debit(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.Debit(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	acct, err := l.Grant(ctx, "u1", 2, false)
	require.NoError(t, err)
	assert.Equal(t, 2, acct.Balance)
	assert.Equal(t, 1, acct.Debited)
}

func TestMarkMatchedIsExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := &duel.LobbyEntry{ID: uuid.NewString(), UserID: "u1", WizardID: "w1", Status: duel.LobbyWaiting, JoinedAt: time.Now().UTC()}
	require.NoError(t, s.CreateLobbyEntry(ctx, e))

	ok, err := s.MarkMatched(ctx, e.ID, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.MarkMatched(ctx, e.ID, "p2")
	require.NoError(t, err)
	assert.False(t, ok)

	dup := &duel.LobbyEntry{ID: uuid.NewString(), UserID: "u1", WizardID: "w2", Status: duel.LobbyWaiting, JoinedAt: time.Now().UTC()}
	assert.ErrorIs(t, s.CreateLobbyEntry(ctx, dup), duel.ErrAlreadyQueued)
}

func TestSeedCampaignOpponents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	campaign := config.Campaign{SeasonID: "s1", RosterSize: 2, Opponents: []config.Opponent{
		{Number: 1, Name: "Grimble", Description: "bog hermit"},
		{Number: 2, Name: "Vexa", Description: "storm witch"},
	}}
	require.NoError(t, seedCampaignOpponents(ctx, s.DB(), campaign))
	campaign.Opponents[0].Description = "reformed bog hermit"
	require.NoError(t, seedCampaignOpponents(ctx, s.DB(), campaign))

	w, err := s.GetOpponent(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, "reformed bog hermit", w.Description)

	_, err = s.GetOpponent(ctx, "s1", 3)
	assert.ErrorIs(t, err, duel.ErrNotFound)
}

func TestRecordResultInvalidatesCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := &duel.Wizard{ID: uuid.NewString(), Name: "Morgana", OwnerUserID: "u1"}
	require.NoError(t, s.CreateWizard(ctx, w))

	_, err := s.GetWizard(ctx, w.ID)
	require.NoError(t, err)
	require.NoError(t, s.RecordResult(ctx, w.ID, true, false))
	require.NoError(t, s.RecordResult(ctx, w.ID, false, true))

	got, err := s.GetWizard(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Wins)
	assert.Equal(t, 1, got.CampaignLosses)
}

func TestClaimRoundFencesStaleWriters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := sampleDuel("CLM001")
	require.NoError(t, s.CreateDuel(ctx, d))
	r := &duel.Round{ID: uuid.NewString(), DuelID: d.ID, RoundNumber: 1, Kind: duel.KindSpellCasting, Status: duel.RoundWaitingForSpells, Actions: map[string]duel.Action{}}
	require.NoError(t, s.CreateRound(ctx, r))

	staleDuel, err := s.GetDuel(ctx, d.ID)
	require.NoError(t, err)
	staleRound, err := s.GetRound(ctx, r.ID)
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	claimed, err := s.ClaimRound(ctx, d.ID, r.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)

	staleRound.Actions["w1"] = duel.Action{WizardID: "w1", Description: "late fireball", SubmittedAt: now}
	err = s.SaveRound(ctx, staleRound, duel.RoundWaitingForSpells)
	assert.ErrorIs(t, err, duel.ErrConflict)

	staleDuel.RemovePending("w1")
	err = s.UpdateDuel(ctx, staleDuel)
	assert.ErrorIs(t, err, duel.ErrConflict)

	got, err := s.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, duel.RoundProcessing, got.Status)
	require.NotNil(t, got.ClaimedAt)
	assert.Empty(t, got.Actions)

	gotDuel, err := s.GetDuel(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotDuel.Version)
	assert.Equal(t, []string{"w1"}, gotDuel.PendingActionsFrom)

	again, err := s.ClaimRound(ctx, d.ID, r.ID, now)
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, 1, mustDuel(t, s, d.ID).Version)

	require.NoError(t, got.TransitionTo(duel.RoundCompleted))
	require.NoError(t, s.SaveRound(ctx, got, duel.RoundProcessing))
}

func TestGetWizardBypassesCacheInTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := &duel.Wizard{ID: uuid.NewString(), Name: "Morgana", OwnerUserID: "u1"}
	require.NoError(t, s.CreateWizard(ctx, w))

	_, err := s.GetWizard(ctx, w.ID)
	require.NoError(t, err)
	require.NoError(t, s.DB().Model(&duel.Wizard{}).Where("id = ?", w.ID).Update("name", "Morgana the Grey").Error)

	cached, err := s.GetWizard(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Morgana", cached.Name)

	err = s.Transaction(ctx, func(ctx context.Context) error {
		got, err := s.GetWizard(ctx, w.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, "Morgana the Grey", got.Name)
		return nil
	})
	require.NoError(t, err)
}

func mustDuel(t *testing.T, s *Store, id string) *duel.Duel {
	t.Helper()
	d, err := s.GetDuel(context.Background(), id)
	require.NoError(t, err)
	return d
}
