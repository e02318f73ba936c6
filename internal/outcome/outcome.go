package outcome

import (
	"context"
	"errors"
	"strings"
)

// Phase selects what the generator is asked to narrate. Only PhaseRound
// outcomes carry scoring.
type Phase string

const (
	PhaseIntroduction Phase = "introduction"
	PhaseRound        Phase = "round"
	PhaseConclusion   Phase = "conclusion"
)

const (
	SourceGenerator = "generator"
	SourceFallback  = "fallback"
)

// WizardSnapshot is the read-only view of a wizard at resolution time.
type WizardSnapshot struct {
	ID          string
	Name        string
	Description string
	Wins        int
	Losses      int
	Vitality    int
	Score       int
	// Luck is the d20 roll for this resolution, 0 when none was rolled.
	Luck int
}

type ActionSnapshot struct {
	WizardID    string
	WizardName  string
	Description string
}

// Context is everything the generator may use to narrate a round.
type Context struct {
	DuelID      string
	Phase       Phase
	RoundNumber int
	Wizards     []WizardSnapshot
	Actions     []ActionSnapshot
	// History holds prior round narratives, oldest first.
	History []string
	// Winners and Losers are wizard names, set for PhaseConclusion.
	Winners []string
	Losers  []string
}

// Acted reports whether wizardID submitted an action.
func (c Context) Acted(wizardID string) bool {
	for _, a := range c.Actions {
		if a.WizardID == wizardID {
			return true
		}
	}
	return false
}

// Proposal is an unvalidated outcome. Numbers are floats because they come
// from untrusted JSON; keys may be wizard ids or wizard names.
type Proposal struct {
	Narrative          string
	PointsAwarded      map[string]float64
	HealthChange       map[string]float64
	IllustrationPrompt string
}

// Generator produces a proposal or fails.
type Generator interface {
	Generate(ctx context.Context, c Context) (*Proposal, error)
}

var (
	ErrNoGenerator     = errors.New("no outcome generator configured")
	ErrInvalidProposal = errors.New("generator returned an outcome without a narrative")
)

// Result is either a proposal or the reason there is none.
type Result struct {
	Proposal *Proposal
	Failure  error
}

func (r Result) OK() bool { return r.Failure == nil && r.Proposal != nil }

// Attempt calls the generator and validates the structure of what comes
// back. It never panics on a nil generator.
func Attempt(ctx context.Context, g Generator, c Context) Result {
	if g == nil {
		return Result{Failure: ErrNoGenerator}
	}
	p, err := g.Generate(ctx, c)
	if err != nil {
		return Result{Failure: err}
	}
	if p == nil || strings.TrimSpace(p.Narrative) == "" {
		return Result{Failure: ErrInvalidProposal}
	}
	return Result{Proposal: p}
}
