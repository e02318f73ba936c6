package illustration

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) Put(_ context.Context, key string, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = b
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return b, nil
}

type countingIllustrator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingIllustrator) RenderImage(context.Context, string) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 1024, 768))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func TestIllustrateChargesAndStoresOnce(t *testing.T) {
	store := &memStore{}
	ill := &countingIllustrator{}
	charges := 0
	p := NewPipeline(ill, store, func(context.Context, string, string) error {
		charges++
		return nil
	})
	req := Request{DuelID: "d1", RoundNumber: 1, WizardNames: []string{"Morgana", "Vexa"}, ChargeUserID: "u1", Prompt: "two wizards"}

	key, err := p.Illustrate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "illustrations/d1/round-01-morgana-vexa.png", key)

	again, err := p.Illustrate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, key, again)
	assert.Equal(t, 1, ill.calls)
	assert.Equal(t, 1, charges)

	stored, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Equal(t, 384, img.Bounds().Dy())
}

func TestIllustrateStopsWhenChargeFails(t *testing.T) {
	ill := &countingIllustrator{}
	denied := errors.New("insufficient credits")
	p := NewPipeline(ill, &memStore{}, func(context.Context, string, string) error { return denied })

	_, err := p.Illustrate(context.Background(), Request{DuelID: "d2", RoundNumber: 1, Prompt: "x"})
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 0, ill.calls)
}

func TestIllustrateRejectsEmptyPrompt(t *testing.T) {
	ill := &countingIllustrator{}
	p := NewPipeline(ill, &memStore{}, func(context.Context, string, string) error { return nil })
	_, err := p.Illustrate(context.Background(), Request{DuelID: "d3", Prompt: "  "})
	require.Error(t, err)
	assert.Contains(t, fmt.Sprintf("%+v", err), "illustration.go", "error should carry a stack trace")
	assert.Equal(t, 0, ill.calls)
}
