package duel

type DuelStatus string

const (
	StatusWaitingForPlayers DuelStatus = "WAITING_FOR_PLAYERS"
	StatusInProgress        DuelStatus = "IN_PROGRESS"
	StatusCompleted         DuelStatus = "COMPLETED"
	StatusCancelled         DuelStatus = "CANCELLED"
)

var duelTransitions = map[DuelStatus][]DuelStatus{
	StatusWaitingForPlayers: {StatusInProgress, StatusCancelled},
	StatusInProgress:        {StatusCompleted, StatusCancelled},
}

// CanTransitionTo reports whether next is reachable in one step. Terminal
// statuses have no outgoing edges.
func (s DuelStatus) CanTransitionTo(next DuelStatus) bool {
	for _, allowed := range duelTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s DuelStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type RoundStatus string

const (
	RoundWaitingForSpells RoundStatus = "WAITING_FOR_SPELLS"
	RoundProcessing       RoundStatus = "PROCESSING"
	RoundCompleted        RoundStatus = "COMPLETED"
)

var roundTransitions = map[RoundStatus][]RoundStatus{
	RoundWaitingForSpells: {RoundProcessing},
	RoundProcessing:       {RoundCompleted},
}

func (s RoundStatus) CanTransitionTo(next RoundStatus) bool {
	for _, allowed := range roundTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type RoundKind string

const (
	KindSpellCasting RoundKind = "SPELL_CASTING"
	KindConclusion   RoundKind = "CONCLUSION"
)

type LobbyStatus string

const (
	LobbyWaiting LobbyStatus = "WAITING"
	LobbyMatched LobbyStatus = "MATCHED"
)

func (s LobbyStatus) CanTransitionTo(next LobbyStatus) bool {
	return s == LobbyWaiting && next == LobbyMatched
}

type BattleStatus string

const (
	BattleActive BattleStatus = "ACTIVE"
	BattleWon    BattleStatus = "WON"
	BattleLost   BattleStatus = "LOST"
)
