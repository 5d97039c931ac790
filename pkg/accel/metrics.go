package accel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for snapshot lifecycle and traversal health.
var (
	reloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muninn_accel_reloads_total",
		Help: "Snapshot reload attempts by result",
	}, []string{"result"})

	reloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "muninn_accel_reload_duration_seconds",
		Help:    "Time spent building and publishing a snapshot",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	stalenessChecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "muninn_accel_staleness_detected_total",
		Help: "Queries that observed a stale snapshot",
	})

	traversalAborts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muninn_accel_traversal_aborts_total",
		Help: "Traversals aborted by reason",
	}, []string{"reason"})
)
