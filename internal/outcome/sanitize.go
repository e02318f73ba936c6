package outcome

import (
	"math"
	"strings"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/duel"
)

const (
	MinPoints = 0
	MaxPoints = 20
	MinHealth = -50
	MaxHealth = 50
	MinLuck   = 1
	MaxLuck   = 20
)

// Sanitize turns a proposal into a safe outcome. Every wizard in the
// context gets an entry; missing, NaN and infinite values become 0.
// Non-round phases keep the narrative and drop all numbers.
func Sanitize(c Context, p *Proposal) duel.Outcome {
	out := duel.Outcome{
		PointsAwarded: make(map[string]int, len(c.Wizards)),
		HealthChange:  make(map[string]int, len(c.Wizards)),
	}
	if p == nil {
		p = &Proposal{}
	}
	out.Narrative = strings.TrimSpace(p.Narrative)
	out.IllustrationPrompt = strings.TrimSpace(p.IllustrationPrompt)

	for _, w := range c.Wizards {
		if c.Phase == PhaseRound {
			out.PointsAwarded[w.ID] = clamp(lookup(p.PointsAwarded, w), MinPoints, MaxPoints)
			out.HealthChange[w.ID] = clamp(lookup(p.HealthChange, w), MinHealth, MaxHealth)
		} else {
			out.PointsAwarded[w.ID] = 0
			out.HealthChange[w.ID] = 0
		}
		if w.Luck != 0 {
			if out.LuckRolls == nil {
				out.LuckRolls = make(map[string]int, len(c.Wizards))
			}
			out.LuckRolls[w.ID] = ClampLuck(w.Luck)
		}
	}
	return out
}

// ApplyHealth returns the vitality after delta, kept within [0, 100].
func ApplyHealth(vitality, delta int) int {
	return ClampVitality(vitality + delta)
}

func ClampVitality(v int) int {
	if v < 0 {
		return 0
	}
	if v > duel.MaxVitality {
		return duel.MaxVitality
	}
	return v
}

func ClampLuck(v int) int {
	if v < MinLuck {
		return MinLuck
	}
	if v > MaxLuck {
		return MaxLuck
	}
	return v
}

// lookup finds the value for w by id first, then by case-insensitive name.
func lookup(m map[string]float64, w WizardSnapshot) float64 {
	if v, ok := m[w.ID]; ok {
		return v
	}
	name := strings.TrimSpace(w.Name)
	if name == "" {
		return 0
	}
	for k, v := range m {
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return v
		}
	}
	return 0
}

func clamp(v float64, lo, hi int) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	n := math.Round(v)
	if n < float64(lo) {
		return lo
	}
	if n > float64(hi) {
		return hi
	}
	return int(n)
}
