// Package worker: Prometheus instrumentation for the ingestion pipeline
// and the reconciliation sweeper. Label cardinality is bounded: kind is one
// of two values and outcome is a small fixed set.
package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomePersisted = "persisted"
	outcomeEmpty     = "empty"
	outcomeDuplicate = "duplicate"
	outcomeRetried   = "retried"
	outcomeFailed    = "failed"
)

var (
	// ingestTotal counts worker runs by kind (chat|message) and outcome.
	ingestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_ingest_runs_total",
			Help: "Total ingestion worker runs by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// sweepCorrections counts denormalized counters raised by the sweeper.
	sweepCorrections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_sweep_corrections_total",
			Help: "Total denormalized count corrections applied by the sweeper.",
		},
		[]string{"kind"},
	)

	// sweepDuration records how long a full sweep takes.
	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "journal_sweep_duration_seconds",
			Help:    "Duration of full reconciliation sweeps in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ingestTotal, sweepCorrections, sweepDuration)
}
