package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorIncludesFieldsAndError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Error("round failed", errors.New("boom"), Fields{"duel_id": "d1"})
	Info("round resolved", nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["duel_id"] != "d1" {
		t.Fatalf("missing duel_id field: %v", ctx)
	}
	if ctx["error"] != "boom" {
		t.Fatalf("missing error field: %v", ctx)
	}
	if entries[1].Level != zapcore.InfoLevel {
		t.Fatalf("unexpected level %v", entries[1].Level)
	}
}
