package openaiclient

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/outcome"
)

// Templates may override the built-in prompts. Tokens: {{wizards}},
// {{actions}}, {{history}}, {{round}} and {{result}}.
type Templates struct {
	Round        string
	Introduction string
	Conclusion   string
}

const systemPrompt = "You narrate magical duels between wizards. Reply with a single JSON object and nothing else."

const defaultRoundTemplate = `Round {{round}} of a wizard duel.
Wizards:
{{wizards}}
Spells cast this round:
{{actions}}
Story so far:
{{history}}
Wizards who did not cast held back this round. Describe the exchange in two short paragraphs, then judge it.
Respond with JSON: {"narrative": string, "points_awarded": {"<wizard name>": 0-20}, "health_change": {"<wizard name>": -50..50}, "illustration_prompt": string}`

const defaultIntroductionTemplate = `Two wizards are about to duel.
{{wizards}}
Write a short dramatic introduction that presents both of them.
Respond with JSON: {"narrative": string, "illustration_prompt": string}`

const defaultConclusionTemplate = `The duel has ended. {{result}}
Wizards:
{{wizards}}
Story so far:
{{history}}
Write a short closing scene.
Respond with JSON: {"narrative": string, "illustration_prompt": string}`

// BuildPrompt renders the template for the context's phase.
func BuildPrompt(t Templates, c outcome.Context) string {
	var tmpl string
	switch c.Phase {
	case outcome.PhaseIntroduction:
		tmpl = firstNonEmpty(t.Introduction, defaultIntroductionTemplate)
	case outcome.PhaseConclusion:
		tmpl = firstNonEmpty(t.Conclusion, defaultConclusionTemplate)
	default:
		tmpl = firstNonEmpty(t.Round, defaultRoundTemplate)
	}
	r := strings.NewReplacer(
		"{{wizards}}", describeWizards(c.Wizards),
		"{{actions}}", describeActions(c),
		"{{history}}", describeHistory(c.History),
		"{{round}}", strconv.Itoa(c.RoundNumber),
		"{{result}}", describeResult(c),
	)
	return r.Replace(tmpl)
}

func describeWizards(ws []outcome.WizardSnapshot) string {
	var b strings.Builder
	for _, w := range ws {
		fmt.Fprintf(&b, "- %s: %s (record %d-%d, health %d, points %d", w.Name, w.Description, w.Wins, w.Losses, w.Vitality, w.Score)
		if w.Luck > 0 {
			fmt.Fprintf(&b, ", luck %d/20", w.Luck)
		}
		b.WriteString(")\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeActions(c outcome.Context) string {
	if len(c.Actions) == 0 {
		return "(none: both wizards hesitated)"
	}
	names := make(map[string]string, len(c.Wizards))
	for _, w := range c.Wizards {
		names[w.ID] = w.Name
	}
	var b strings.Builder
	for _, a := range c.Actions {
		name := a.WizardName
		if name == "" {
			name = names[a.WizardID]
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, strings.TrimSpace(a.Description))
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeHistory(h []string) string {
	if len(h) == 0 {
		return "(this is the first exchange)"
	}
	var b strings.Builder
	for i, s := range h {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeResult(c outcome.Context) string {
	if len(c.Winners) == 0 {
		return "No winner was decided."
	}
	return "Winners: " + strings.Join(c.Winners, ", ") + ". Losers: " + strings.Join(c.Losers, ", ") + "."
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
