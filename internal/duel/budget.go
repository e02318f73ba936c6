package duel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RoundBudget is either a fixed positive number of rounds or
// FightToIncapacitation. Lobby preferences use the same type, so equal
// budgets are the matching criterion.
type RoundBudget int

// FightToIncapacitation means the duel only ends when a wizard falls.
const FightToIncapacitation RoundBudget = 0

const incapacitationLabel = "incapacitation"

func (b RoundBudget) IsFixed() bool { return b > 0 }

func (b RoundBudget) String() string {
	if !b.IsFixed() {
		return incapacitationLabel
	}
	return strconv.Itoa(int(b))
}

// Validate rejects negative budgets.
func (b RoundBudget) Validate() error {
	if b < 0 {
		return InvalidArgument("round budget must be positive or %q", incapacitationLabel)
	}
	return nil
}

// ParseRoundBudget accepts a positive integer or "incapacitation".
func ParseRoundBudget(s string) (RoundBudget, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == incapacitationLabel {
		return FightToIncapacitation, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, InvalidArgument("invalid round budget %q", s)
	}
	return RoundBudget(n), nil
}

func (b RoundBudget) MarshalJSON() ([]byte, error) {
	if !b.IsFixed() {
		return json.Marshal(incapacitationLabel)
	}
	return json.Marshal(int(b))
}

func (b *RoundBudget) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n <= 0 {
			return fmt.Errorf("round budget must be positive, got %d", n)
		}
		*b = RoundBudget(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("round budget must be a number or %q", incapacitationLabel)
	}
	parsed, err := ParseRoundBudget(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
