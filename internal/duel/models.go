package duel

import (
	"time"
)

const (
	MaxVitality     = 100
	InitialVitality = 100
	// IntroductionRound is reserved for the narrative opening.
	IntroductionRound = 0
	ShortCodeLength   = 6
)

// Duel is the aggregate root of a match. Collections are stored as JSON
// columns; Version guards every write with a compare-and-set.
type Duel struct {
	ID                 string         `json:"id" gorm:"primaryKey;size:36"`
	ShortCode          string         `json:"short_code" gorm:"size:6;uniqueIndex"`
	RoundBudget        RoundBudget    `json:"round_budget"`
	ParticipantWizards []string       `json:"participant_wizards" gorm:"serializer:json"`
	ParticipantUsers   []string       `json:"participant_users" gorm:"serializer:json"`
	Status             DuelStatus     `json:"status" gorm:"size:24;index"`
	CurrentRoundNumber int            `json:"current_round_number"`
	Score              map[string]int `json:"score" gorm:"serializer:json"`
	Vitality           map[string]int `json:"vitality" gorm:"serializer:json"`
	PendingActionsFrom []string       `json:"pending_actions_from" gorm:"serializer:json"`
	Winners            []string       `json:"winners,omitempty" gorm:"serializer:json"`
	Losers             []string       `json:"losers,omitempty" gorm:"serializer:json"`
	CreditCharged      bool           `json:"credit_charged"`
	CreditChargedBy    string         `json:"credit_charged_by,omitempty"`
	IsCampaignBattle   bool           `json:"is_campaign_battle"`
	CreatedBy          string         `json:"created_by"`
	// StatsRecorded is set in the same write that applies wizard win/loss
	// counters so they are applied once per duel.
	StatsRecorded bool       `json:"-"`
	IntroducedAt  *time.Time `json:"introduced_at,omitempty"`
	Version       int        `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TransitionTo moves the duel along the status table or fails with
// InvalidState.
func (d *Duel) TransitionTo(next DuelStatus) error {
	if !d.Status.CanTransitionTo(next) {
		return InvalidState("duel cannot move from %s to %s", d.Status, next)
	}
	d.Status = next
	return nil
}

func (d *Duel) HasUser(userID string) bool { return contains(d.ParticipantUsers, userID) }

func (d *Duel) HasWizard(wizardID string) bool { return contains(d.ParticipantWizards, wizardID) }

func (d *Duel) IsPending(wizardID string) bool { return contains(d.PendingActionsFrom, wizardID) }

// LivingWizards returns participants with vitality above zero, in
// participant order.
func (d *Duel) LivingWizards() []string {
	out := make([]string, 0, len(d.ParticipantWizards))
	for _, w := range d.ParticipantWizards {
		if d.Vitality[w] > 0 {
			out = append(out, w)
		}
	}
	return out
}

// DistinctUsers counts participating users.
func (d *Duel) DistinctUsers() int {
	seen := make(map[string]struct{}, len(d.ParticipantUsers))
	for _, u := range d.ParticipantUsers {
		seen[u] = struct{}{}
	}
	return len(seen)
}

// IsDraw reports a finished duel where a wizard sits in both result sets.
func (d *Duel) IsDraw() bool {
	for _, w := range d.Winners {
		if contains(d.Losers, w) {
			return true
		}
	}
	return false
}

// RemovePending drops wizardID from the set of wizards the round waits on.
func (d *Duel) RemovePending(wizardID string) {
	out := d.PendingActionsFrom[:0]
	for _, w := range d.PendingActionsFrom {
		if w != wizardID {
			out = append(out, w)
		}
	}
	d.PendingActionsFrom = out
}

// Action is a single wizard's spell for a round.
type Action struct {
	WizardID    string    `json:"wizard_id"`
	Description string    `json:"description"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Outcome is the sanitized result attached to a completed round.
type Outcome struct {
	Narrative          string         `json:"narrative"`
	PointsAwarded      map[string]int `json:"points_awarded"`
	HealthChange       map[string]int `json:"health_change"`
	LuckRolls          map[string]int `json:"luck_rolls,omitempty"`
	IllustrationPrompt string         `json:"illustration_prompt,omitempty"`
	IllustrationKey    string         `json:"illustration_key,omitempty"`
	Source             string         `json:"source"`
	FallbackReason     string         `json:"fallback_reason,omitempty"`
}

type Round struct {
	ID          string            `json:"id" gorm:"primaryKey;size:36"`
	DuelID      string            `json:"duel_id" gorm:"size:36;uniqueIndex:idx_rounds_duel_number"`
	RoundNumber int               `json:"round_number" gorm:"uniqueIndex:idx_rounds_duel_number"`
	Kind        RoundKind         `json:"kind" gorm:"size:16"`
	Status      RoundStatus       `json:"status" gorm:"size:24;index"`
	Actions     map[string]Action `json:"actions" gorm:"serializer:json"`
	Outcome     *Outcome          `json:"outcome,omitempty" gorm:"serializer:json"`
	Deadline    *time.Time        `json:"deadline,omitempty" gorm:"index"`
	ClaimedAt   *time.Time        `json:"claimed_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (r *Round) TransitionTo(next RoundStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return InvalidState("round cannot move from %s to %s", r.Status, next)
	}
	r.Status = next
	return nil
}

func (r *Round) IsIntroduction() bool {
	return r.RoundNumber == IntroductionRound && r.Kind == KindSpellCasting
}

// LobbyEntry is a user's matchmaking request. A user holds at most one.
type LobbyEntry struct {
	ID                 string      `json:"id" gorm:"primaryKey;size:36"`
	UserID             string      `json:"user_id" gorm:"size:128;uniqueIndex"`
	WizardID           string      `json:"wizard_id" gorm:"size:36"`
	DuelTypePreference RoundBudget `json:"duel_type_preference" gorm:"index"`
	Status             LobbyStatus `json:"status" gorm:"size:16;index"`
	MatchedWithEntryID string      `json:"matched_with_entry_id,omitempty" gorm:"size:36"`
	JoinedAt           time.Time   `json:"joined_at" gorm:"index"`
}

// LobbyMatch records a materialized pair. Its key makes duel creation for
// a pair happen once.
type LobbyMatch struct {
	PairKey   string    `json:"pair_key" gorm:"primaryKey;size:80"`
	EntryA    string    `json:"entry_a" gorm:"size:36"`
	EntryB    string    `json:"entry_b" gorm:"size:36"`
	UserA     string    `json:"user_a" gorm:"size:128;index"`
	UserB     string    `json:"user_b" gorm:"size:128;index"`
	DuelID    string    `json:"duel_id" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
}

// LobbyStats is an observability snapshot of the lobby.
type LobbyStats struct {
	Waiting            int64   `json:"waiting"`
	Matched            int64   `json:"matched"`
	AverageWaitSeconds float64 `json:"average_wait_seconds"`
}

type CampaignProgress struct {
	ID                   string    `json:"id" gorm:"primaryKey;size:36"`
	WizardID             string    `json:"wizard_id" gorm:"size:36;uniqueIndex:idx_campaign_wizard_season"`
	SeasonID             string    `json:"season_id" gorm:"size:64;uniqueIndex:idx_campaign_wizard_season"`
	UserID               string    `json:"user_id" gorm:"size:128"`
	CurrentOpponentIndex int       `json:"current_opponent_index"`
	DefeatedOpponents    []int     `json:"defeated_opponents" gorm:"serializer:json"`
	HasCompletionRelic   bool      `json:"has_completion_relic"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (p *CampaignProgress) HasDefeated(opponentNumber int) bool {
	for _, n := range p.DefeatedOpponents {
		if n == opponentNumber {
			return true
		}
	}
	return false
}

// CampaignBattle links a campaign duel to the opponent it was fought
// against. ActiveKey is set while the battle is ACTIVE or WON and cleared
// on a loss; its unique index rejects a second live battle for the pair.
type CampaignBattle struct {
	ID               string       `json:"id" gorm:"primaryKey;size:36"`
	WizardID         string       `json:"wizard_id" gorm:"size:36;index"`
	UserID           string       `json:"user_id" gorm:"size:128"`
	SeasonID         string       `json:"season_id" gorm:"size:64"`
	OpponentNumber   int          `json:"opponent_number"`
	OpponentWizardID string       `json:"opponent_wizard_id" gorm:"size:36"`
	DuelID           string       `json:"duel_id" gorm:"size:36;uniqueIndex"`
	Status           BattleStatus `json:"status" gorm:"size:16"`
	ActiveKey        *string      `json:"-" gorm:"size:160;uniqueIndex"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Wizard is the directory record for a combatant.
type Wizard struct {
	ID                 string    `json:"id" gorm:"primaryKey;size:36"`
	Name               string    `json:"name" gorm:"size:64"`
	Description        string    `json:"description" gorm:"size:512"`
	OwnerUserID        string    `json:"owner_user_id" gorm:"size:128;index"`
	Wins               int       `json:"wins"`
	Losses             int       `json:"losses"`
	CampaignWins       int       `json:"campaign_wins"`
	CampaignLosses     int       `json:"campaign_losses"`
	IsCampaignOpponent bool      `json:"is_campaign_opponent"`
	OpponentNumber     int       `json:"opponent_number,omitempty"`
	SeasonID           string    `json:"season_id,omitempty" gorm:"size:64"`
	SignatureSpell     string    `json:"signature_spell,omitempty" gorm:"size:512"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CreditAccount backs the built-in credit ledger.
type CreditAccount struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;size:128"`
	Balance   int       `json:"balance"`
	Unlimited bool      `json:"unlimited"`
	Debited   int       `json:"debited"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IllustrationBlob stores rendered round illustrations when no object
// store is configured.
type IllustrationBlob struct {
	Key       string    `gorm:"column:storage_key;primaryKey;size:255"`
	ImagePNG  []byte    `gorm:"column:image_png"`
	CreatedAt time.Time
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
