package service

import (
	"context"

	"emperror.dev/errors"
	"github.com/google/uuid"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/keys"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/metrics"
)

// MatchResult is the outcome of a pairing attempt.
type MatchResult struct {
	Entry   *duel.LobbyEntry `json:"entry"`
	Partner *duel.LobbyEntry `json:"partner,omitempty"`
	Matched bool             `json:"matched"`
}

// LobbyStatus is what a user sees while queued: the entry, or the match
// that consumed it.
type LobbyStatus struct {
	Entry *duel.LobbyEntry `json:"entry,omitempty"`
	Match *duel.LobbyMatch `json:"match,omitempty"`
}

var errPairLost = errors.New("lobby entry was matched concurrently")

func (e *Engine) JoinLobby(ctx context.Context, userID, wizardID string, preference duel.RoundBudget) (*duel.LobbyEntry, error) {
	if err := preference.Validate(); err != nil {
		return nil, err
	}
	var entry *duel.LobbyEntry
	err := e.store.Transaction(ctx, func(ctx context.Context) error {
		if err := e.requireOwnership(ctx, []string{wizardID}, userID); err != nil {
			return err
		}
		existing, err := e.store.GetLobbyEntryByUser(ctx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return duel.ErrAlreadyQueued
		}
		entry = &duel.LobbyEntry{
			ID:                 uuid.NewString(),
			UserID:             userID,
			WizardID:           wizardID,
			DuelTypePreference: preference,
			Status:             duel.LobbyWaiting,
			JoinedAt:           e.now(),
		}
		return e.store.CreateLobbyEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	logging.Info("joined lobby", logging.Fields{constants.LogFieldUserID: userID, constants.LogFieldEntryID: entry.ID, "preference": preference.String()})
	return entry, nil
}

// LeaveLobby removes the user's waiting entry. Leaving without one is a
// no-op.
func (e *Engine) LeaveLobby(ctx context.Context, userID string) error {
	_, err := e.store.DeleteWaitingEntry(ctx, userID)
	return err
}

// TryMatchmaking pairs entryID with the earliest waiting entry of the same
// preference from another user. Both rows move to MATCHED in one
// transaction or neither does. An entry that is already matched is
// reported as is.
func (e *Engine) TryMatchmaking(ctx context.Context, entryID string) (MatchResult, error) {
	var res MatchResult
	err := e.store.Transaction(ctx, func(ctx context.Context) error {
		entry, err := e.store.GetLobbyEntry(ctx, entryID)
		if err != nil {
			return err
		}
		res = MatchResult{Entry: entry}
		if entry.Status == duel.LobbyMatched {
			partner, err := e.store.GetLobbyEntry(ctx, entry.MatchedWithEntryID)
			if err != nil && !errors.Is(err, duel.ErrNotFound) {
				return err
			}
			res.Partner, res.Matched = partner, true
			return nil
		}
		candidate, err := e.store.FindMatchCandidate(ctx, entry)
		if err != nil || candidate == nil {
			return err
		}
		ok, err := e.store.MarkMatched(ctx, entry.ID, candidate.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errPairLost
		}
		ok, err = e.store.MarkMatched(ctx, candidate.ID, entry.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errPairLost
		}
		entry.Status, entry.MatchedWithEntryID = duel.LobbyMatched, candidate.ID
		candidate.Status, candidate.MatchedWithEntryID = duel.LobbyMatched, entry.ID
		res.Partner, res.Matched = candidate, true
		return nil
	})
	if errors.Is(err, errPairLost) {
		return MatchResult{}, nil
	}
	if err != nil {
		return MatchResult{}, err
	}
	if res.Matched && res.Partner != nil {
		metrics.LobbyMatches.Inc()
		logging.Info("lobby entries paired", logging.Fields{constants.LogFieldEntryID: entryID, "partner_entry_id": res.Partner.ID})
	}
	return res, nil
}

// CreateMatchedDuel materializes the duel for a paired couple of entries
// and deletes them. A second call for the same pair fails with
// AlreadyProcessed.
func (e *Engine) CreateMatchedDuel(ctx context.Context, entryID1, entryID2 string) (d *duel.Duel, err error) {
	ctx, span := startSpan(ctx, "service.CreateMatchedDuel")
	defer func() { endSpan(span, err) }()

	pairKey := keys.PairKey(entryID1, entryID2)
	err = e.store.Transaction(ctx, func(ctx context.Context) error {
		prior, err := e.store.GetLobbyMatch(ctx, pairKey)
		if err != nil {
			return err
		}
		if prior != nil {
			return duel.ErrAlreadyProcessed
		}
		a, err := e.store.GetLobbyEntry(ctx, entryID1)
		if err != nil {
			return err
		}
		b, err := e.store.GetLobbyEntry(ctx, entryID2)
		if err != nil {
			return err
		}
		if a.Status != duel.LobbyMatched || b.Status != duel.LobbyMatched ||
			a.MatchedWithEntryID != b.ID || b.MatchedWithEntryID != a.ID {
			return duel.InvalidState("lobby entries %s and %s are not paired", a.ID, b.ID)
		}
		d, err = e.insertDuel(ctx, duelParams{
			budget:    a.DuelTypePreference,
			wizards:   []string{a.WizardID, b.WizardID},
			users:     []string{a.UserID, b.UserID},
			createdBy: a.UserID,
			origin:    "lobby",
		})
		if err != nil {
			return err
		}
		if err := e.store.CreateLobbyMatch(ctx, &duel.LobbyMatch{
			PairKey:   pairKey,
			EntryA:    a.ID,
			EntryB:    b.ID,
			UserA:     a.UserID,
			UserB:     b.UserID,
			DuelID:    d.ID,
			CreatedAt: e.now(),
		}); err != nil {
			return err
		}
		return e.store.DeleteLobbyEntries(ctx, a.ID, b.ID)
	})
	if err != nil {
		return nil, err
	}
	logging.Info("matched duel created", logging.Fields{constants.LogFieldDuelID: d.ID, "pair": pairKey})
	return d, nil
}

func (e *Engine) GetLobbyStats(ctx context.Context) (duel.LobbyStats, error) {
	return e.store.LobbyStats(ctx, e.now())
}

func (e *Engine) GetLobbyStatus(ctx context.Context, userID string) (LobbyStatus, error) {
	entry, err := e.store.GetLobbyEntryByUser(ctx, userID)
	if err != nil {
		return LobbyStatus{}, err
	}
	if entry != nil {
		return LobbyStatus{Entry: entry}, nil
	}
	m, err := e.store.LatestMatchForUser(ctx, userID)
	if err != nil {
		return LobbyStatus{}, err
	}
	return LobbyStatus{Match: m}, nil
}

// SweepLobby pairs waiting entries in join order and materializes every
// paired couple, including pairs left behind by an earlier failure. It
// returns the number of duels created.
func (e *Engine) SweepLobby(ctx context.Context) (int, error) {
	created := 0
	materialize := func(a, b string) {
		_, err := e.CreateMatchedDuel(ctx, a, b)
		switch {
		case err == nil:
			created++
		case errors.Is(err, duel.ErrAlreadyProcessed), errors.Is(err, duel.ErrNotFound):
		default:
			logging.Warn("lobby duel creation failed", err, logging.Fields{constants.LogFieldEntryID: a})
		}
	}

	waiting, err := e.store.ListWaitingEntries(ctx, sweepBatchSize)
	if err != nil {
		return created, err
	}
	for _, entry := range waiting {
		res, err := e.TryMatchmaking(ctx, entry.ID)
		if err != nil {
			if !errors.Is(err, duel.ErrNotFound) {
				logging.Warn("lobby matchmaking failed", err, logging.Fields{constants.LogFieldEntryID: entry.ID})
			}
			continue
		}
		if res.Matched && res.Partner != nil {
			materialize(res.Entry.ID, res.Partner.ID)
		}
	}

	matched, err := e.store.ListMatchedEntries(ctx, sweepBatchSize)
	if err != nil {
		return created, err
	}
	for _, entry := range matched {
		materialize(entry.ID, entry.MatchedWithEntryID)
	}
	return created, nil
}
