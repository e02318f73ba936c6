package illustration

import (
	"context"
	"strings"
	"time"

	"emperror.dev/errors"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/dedupe"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/imageutil"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/keys"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/metrics"
)

const (
	defaultSize    = 512
	defaultTimeout = 90 * time.Second
)

// Illustrator renders a prompt into PNG bytes.
type Illustrator interface {
	RenderImage(ctx context.Context, prompt string) ([]byte, error)
}

// Store persists rendered illustrations by key.
type Store interface {
	Put(ctx context.Context, key string, png []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ChargeFunc consumes the duel's illustration credit. It must succeed
// before anything is rendered.
type ChargeFunc func(ctx context.Context, duelID, userID string) error

type Request struct {
	DuelID       string
	RoundNumber  int
	WizardNames  []string
	ChargeUserID string
	Prompt       string
}

// Pipeline charges, renders, resizes and stores round illustrations.
type Pipeline struct {
	illustrator Illustrator
	store       Store
	charge      ChargeFunc
	size        int
	timeout     time.Duration
}

func NewPipeline(illustrator Illustrator, store Store, charge ChargeFunc) *Pipeline {
	return &Pipeline{illustrator: illustrator, store: store, charge: charge, size: defaultSize, timeout: defaultTimeout}
}

// WithTimeout overrides how long a render may take.
func (p *Pipeline) WithTimeout(d time.Duration) *Pipeline {
	p.timeout = d
	return p
}

func (p *Pipeline) Store() Store { return p.store }

// Illustrate returns the key of the stored illustration for the request.
// Concurrent requests for the same round share one render.
func (p *Pipeline) Illustrate(ctx context.Context, req Request) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("empty illustration prompt")
	}
	key := keys.IllustrationKey(req.DuelID, req.RoundNumber, req.WizardNames)

	// Fast path: already stored
	if img, err := p.store.Get(ctx, key); err == nil && len(img) > 0 {
		return key, nil
	}

	ch := dedupe.IllustrationGroup.DoChan(key, func() (interface{}, error) {
		bg, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		// Re-check in case another caller stored it meanwhile
		if img, err := p.store.Get(bg, key); err == nil && len(img) > 0 {
			return key, nil
		}
		if err := p.charge(bg, req.DuelID, req.ChargeUserID); err != nil {
			return nil, err
		}

		logging.Info("illustration rendering", logging.Fields{constants.LogFieldKey: key, constants.LogFieldDuelID: req.DuelID})
		raw, err := p.illustrator.RenderImage(bg, prompt)
		if err != nil {
			return nil, err
		}
		out, err := imageutil.FitPNG(raw, p.size)
		if err != nil {
			return nil, err
		}
		if err := p.store.Put(bg, key, out); err != nil {
			return nil, err
		}
		logging.Info("illustration stored", logging.Fields{constants.LogFieldKey: key, constants.LogFieldSizeBytes: len(out)})
		return key, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			metrics.Illustrations.WithLabelValues("failed").Inc()
			return "", r.Err
		}
		stored, ok := r.Val.(string)
		if !ok {
			return "", errors.New("unexpected illustration result type")
		}
		metrics.Illustrations.WithLabelValues("stored").Inc()
		return stored, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(p.timeout):
		metrics.Illustrations.WithLabelValues("timeout").Inc()
		return "", errors.Errorf("timed out waiting for illustration %s", key)
	}
}
