package outcome

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

var introTemplates = []string{
	"The arena falls silent as %s steps forward. Across the circle waits %s. Sparks drift between them before a single word is spoken.",
	"Torches gutter along the dueling hall. %s raises a hand in greeting, and %s answers with a slow, measured bow.",
	"Storm clouds gather over the proving grounds where %s and %s will settle their rivalry.",
}

var clashTemplates = []string{
	"Raw magic collides in the center of the arena and the ground cracks beneath both duelists.",
	"The spells twist around each other, each wizard forced to give ground before pressing again.",
	"A blinding flash fills the hall; when it fades both wizards are still standing, breathing hard.",
	"Echoes of the exchange roll across the arena long after the last spark dies.",
}

var hesitationTemplates = []string{
	"Neither wizard commits to a spell. They circle warily while stray mana crackles and stings them both.",
	"A long moment of hesitation passes. The gathered power, left unshaped, lashes back at both duelists.",
}

var conclusionTemplates = []string{
	"The duel is over. %s",
	"As the dust settles the outcome is plain. %s",
}

// Fallback builds a proposal without any external call. It is a pure
// function of the wizard snapshots, the round number and the submitted
// actions, so equal inputs always narrate and score the same way.
func Fallback(c Context) *Proposal {
	seed := seedOf(c)
	p := &Proposal{
		PointsAwarded: make(map[string]float64, len(c.Wizards)),
		HealthChange:  make(map[string]float64, len(c.Wizards)),
	}

	var b strings.Builder
	b.WriteString(introduceAll(c.Wizards))
	b.WriteString(" ")

	switch c.Phase {
	case PhaseIntroduction:
		first, second := pairNames(c.Wizards)
		b.WriteString(fmt.Sprintf(pick(introTemplates, seed), first, second))
	case PhaseConclusion:
		b.WriteString(fmt.Sprintf(pick(conclusionTemplates, seed), resultSentence(c)))
	default:
		if len(c.Actions) == 0 {
			b.WriteString(pick(hesitationTemplates, seed))
		} else {
			for _, a := range c.Actions {
				b.WriteString(fmt.Sprintf("%s casts: %s. ", nameOf(c, a), strings.TrimSpace(a.Description)))
			}
			for _, w := range c.Wizards {
				if !c.Acted(w.ID) {
					b.WriteString(fmt.Sprintf("%s held back, watching for an opening. ", w.Name))
				}
			}
			b.WriteString(pick(clashTemplates, seed))
		}
		for i, w := range c.Wizards {
			sub := mix(seed, uint64(i+1))
			points, health := roundNumbers(sub, w, len(c.Actions) == 0, c.Acted(w.ID))
			p.PointsAwarded[w.ID] = float64(points)
			p.HealthChange[w.ID] = float64(health)
		}
		p.IllustrationPrompt = fmt.Sprintf("Two wizards dueling in an arena: %s. Painterly fantasy style, no text.", strings.Join(wizardNames(c.Wizards), " versus "))
	}
	p.Narrative = strings.TrimSpace(b.String())
	return p
}

// roundNumbers keeps fallback scoring inside points 0..14 and health
// -18..-1 so every duel eventually ends.
func roundNumbers(sub uint64, w WizardSnapshot, hesitation, acted bool) (int, int) {
	switch {
	case hesitation:
		return 0, -int(1 + sub%5)
	case acted:
		return 4 + int(sub%7) + ClampLuck(max(w.Luck, 1))/5, -int(4 + (sub>>8)%15)
	default:
		return int(sub % 4), -int(4 + (sub>>8)%15)
	}
}

func seedOf(c Context) uint64 {
	h := fnv.New64a()
	write := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	write(string(c.Phase))
	write(strconv.Itoa(c.RoundNumber))
	for _, w := range c.Wizards {
		write(w.ID)
		write(w.Name)
		write(w.Description)
		write(strconv.Itoa(w.Luck))
	}
	for _, a := range c.Actions {
		write(a.WizardID)
		write(a.Description)
	}
	return h.Sum64()
}

func mix(seed, n uint64) uint64 {
	x := seed ^ (n * 0x9e3779b97f4a7c15)
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	return x
}

func pick(options []string, seed uint64) string {
	return options[seed%uint64(len(options))]
}

func introduceAll(ws []WizardSnapshot) string {
	parts := make([]string, 0, len(ws))
	for _, w := range ws {
		desc := strings.TrimSpace(w.Description)
		if desc == "" {
			parts = append(parts, w.Name)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s, %s", w.Name, strings.TrimSuffix(desc, ".")))
	}
	return "In this duel: " + strings.Join(parts, "; ") + "."
}

func pairNames(ws []WizardSnapshot) (string, string) {
	names := wizardNames(ws)
	switch len(names) {
	case 0:
		return "a wizard", "an unseen rival"
	case 1:
		return names[0], "an unseen rival"
	default:
		return names[0], strings.Join(names[1:], " and ")
	}
}

func wizardNames(ws []WizardSnapshot) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Name)
	}
	return out
}

func nameOf(c Context, a ActionSnapshot) string {
	if a.WizardName != "" {
		return a.WizardName
	}
	for _, w := range c.Wizards {
		if w.ID == a.WizardID {
			return w.Name
		}
	}
	return "A wizard"
}

func resultSentence(c Context) string {
	if len(c.Winners) == 0 {
		return "No victor could be named."
	}
	draw := false
	for _, w := range c.Winners {
		for _, l := range c.Losers {
			if w == l {
				draw = true
			}
		}
	}
	if draw {
		return fmt.Sprintf("%s end the duel evenly matched, a draw.", strings.Join(c.Winners, " and "))
	}
	return fmt.Sprintf("%s stands victorious.", strings.Join(c.Winners, " and "))
}
