package openaiclient

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/outcome"
)

var ErrNoJSON = errors.New("model reply contains no JSON object")

// ParseProposal extracts the outcome object from a model reply. Replies
// are untrusted: surrounding prose is ignored, non-numeric scores are
// skipped and left for the sanitizer to zero.
func ParseProposal(reply string) (*outcome.Proposal, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	raw := reply[start : end+1]
	if !gjson.Valid(raw) {
		return nil, ErrNoJSON
	}
	doc := gjson.Parse(raw)
	return &outcome.Proposal{
		Narrative:          doc.Get("narrative").String(),
		PointsAwarded:      numberMap(doc.Get("points_awarded")),
		HealthChange:       numberMap(doc.Get("health_change")),
		IllustrationPrompt: doc.Get("illustration_prompt").String(),
	}, nil
}

func numberMap(r gjson.Result) map[string]float64 {
	out := map[string]float64{}
	if !r.IsObject() {
		return out
	}
	r.ForEach(func(k, v gjson.Result) bool {
		switch v.Type {
		case gjson.Number:
			out[k.String()] = v.Float()
		case gjson.String:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
				out[k.String()] = f
			}
		}
		return true
	})
	return out
}
