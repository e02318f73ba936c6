package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	starts, stalled, lobby atomic.Int32
}

func (s *countingSweeper) StartReadyDuels(context.Context) (int, error) {
	s.starts.Add(1)
	return 1, nil
}

func (s *countingSweeper) ResolveStalledRounds(context.Context) (int, error) {
	s.stalled.Add(1)
	return 0, errors.New("database locked")
}

func (s *countingSweeper) SweepLobby(context.Context) (int, error) {
	s.lobby.Add(1)
	return 0, nil
}

func TestSchedulerRunsEverySweep(t *testing.T) {
	s := &countingSweeper{}
	sched, err := startScheduler(context.Background(), s, 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })

	assert.Eventually(t, func() bool {
		return s.starts.Load() >= 2 && s.stalled.Load() >= 2 && s.lobby.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond, "a failing job must not stop the others")
	assert.Len(t, sched.Jobs(), 3)
}
