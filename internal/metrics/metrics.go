// Package metrics exposes the engine's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "duel_engine"

var (
	DuelsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duels_created_total",
		Help:      "Duels created, by origin (direct, lobby, campaign).",
	}, []string{"origin"})

	DuelsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duels_finished_total",
		Help:      "Duels that reached a terminal status.",
	}, []string{"status"})

	RoundsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_resolved_total",
		Help:      "Rounds completed, by outcome source.",
	}, []string{"source"})

	GeneratorFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generator_failures_total",
		Help:      "Outcome generator calls that fell back to the deterministic template.",
	})

	ResolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "round_resolve_seconds",
		Help:      "Wall time spent resolving a round, generator call included.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	CreditCharges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credit_charges_total",
		Help:      "Credit gate decisions (charged, unlimited, already_consumed, insufficient).",
	}, []string{"result"})

	LobbyMatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lobby_matches_total",
		Help:      "Lobby entries paired by matchmaking.",
	})

	Illustrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "illustrations_total",
		Help:      "Illustration attempts, by result.",
	}, []string{"result"})

	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_job_runs_total",
		Help:      "Background job executions, by job and result.",
	}, []string{"job", "result"})
)
