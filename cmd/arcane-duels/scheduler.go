package main

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/go-co-op/gocron/v2"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/metrics"
)

// sweeper is the part of the engine the scheduler drives.
type sweeper interface {
	StartReadyDuels(ctx context.Context) (int, error)
	ResolveStalledRounds(ctx context.Context) (int, error)
	SweepLobby(ctx context.Context) (int, error)
}

type job struct {
	name string
	run  func(ctx context.Context) (int, error)
}

// startScheduler runs every sweep on the same interval. A run that is
// still going when the next one is due is skipped.
func startScheduler(ctx context.Context, s sweeper, every time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WrapIf(err, "create scheduler")
	}
	jobs := []job{
		{name: "start_ready_duels", run: s.StartReadyDuels},
		{name: "resolve_stalled_rounds", run: s.ResolveStalledRounds},
		{name: "sweep_lobby", run: s.SweepLobby},
	}
	for _, j := range jobs {
		_, err := sched.NewJob(
			gocron.DurationJob(every),
			gocron.NewTask(func() { runJob(ctx, j) }),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, errors.WrapIfWithDetails(err, "schedule job", "job", j.name)
		}
	}
	sched.Start()
	logging.Info("Scheduler started", logging.Fields{"interval": every.String(), constants.LogFieldCount: len(jobs)})
	return sched, nil
}

func runJob(ctx context.Context, j job) {
	n, err := j.run(ctx)
	if err != nil {
		metrics.SchedulerRuns.WithLabelValues(j.name, "error").Inc()
		logging.Error("Scheduled job failed", err, logging.Fields{constants.LogFieldJob: j.name})
		return
	}
	metrics.SchedulerRuns.WithLabelValues(j.name, "ok").Inc()
	if n > 0 {
		logging.Info("Scheduled job ran", logging.Fields{constants.LogFieldJob: j.name, constants.LogFieldCount: n})
	}
}
