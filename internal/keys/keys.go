package keys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gosimple/slug"
)

// WizardSetSlug produces a canonical, order-independent slug for a set of
// wizard names, e.g. "morgana-thistlewick".
func WizardSetSlug(names []string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		s := slug.Make(strings.TrimSpace(n))
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	sort.Strings(parts)
	return strings.Join(parts, "-")
}

// IllustrationKey is the object key for a round's illustration. One key
// per duel round, so retries overwrite rather than accumulate.
func IllustrationKey(duelID string, roundNumber int, wizardNames []string) string {
	tail := WizardSetSlug(wizardNames)
	if tail == "" {
		return fmt.Sprintf("illustrations/%s/round-%02d.png", duelID, roundNumber)
	}
	return fmt.Sprintf("illustrations/%s/round-%02d-%s.png", duelID, roundNumber, tail)
}

// PairKey is the canonical key for two lobby entries.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
