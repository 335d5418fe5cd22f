package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reviewsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_written_total",
			Help: "Reviews written by type and operation (created, updated, deleted)",
		},
		[]string{"type", "op"},
	)

	interactionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_interaction_transitions_total",
			Help: "Interaction state machine transitions by operation",
		},
		[]string{"op"},
	)

	interactionConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_interaction_conflicts_total",
			Help: "Concurrent interaction updates that forced a re-read",
		},
	)

	statsRecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_stats_recompute_duration_seconds",
			Help:    "Duration of one target's stats recompute",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	statsRecomputeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_stats_recompute_failures_total",
			Help: "Failed stats recomputes by target type",
		},
		[]string{"type"},
	)

	notificationsFannedOutTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_notifications_fanned_out_total",
			Help: "Notifications created by review fan-out",
		},
	)

	partialWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_partial_writes_total",
			Help: "Committed review writes whose follow-up stage failed",
		},
		[]string{"stage"},
	)
)
