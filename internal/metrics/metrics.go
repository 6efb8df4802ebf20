package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kopilka",
			Name:      "write_queue_depth",
			Help:      "Current number of operations waiting in the write queue.",
		},
	)

	queueWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kopilka",
			Name:      "write_queue_wait_seconds",
			Help:      "Time operations spend queued before execution.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	queueOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kopilka",
			Name:      "write_queue_operations_total",
			Help:      "Completed write queue operations by outcome.",
		},
		[]string{"status"},
	)

	queueRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kopilka",
			Name:      "write_queue_retries_total",
			Help:      "Lock-contention retries performed by the write queue.",
		},
	)

	generatedInstances = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kopilka",
			Name:      "recurring_instances_generated_total",
			Help:      "Transaction instances materialized from recurring templates.",
		},
	)

	skippedRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kopilka",
			Name:      "recurring_runs_skipped_total",
			Help:      "Generator runs skipped because another run was in progress.",
		},
	)

	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kopilka",
			Name:      "reminder_gate_decisions_total",
			Help:      "Reminder gate evaluations by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			queueDepth,
			queueWait,
			queueOps,
			queueRetries,
			generatedInstances,
			skippedRuns,
			gateDecisions,
		)
	})
}

// SetQueueDepth records the current write queue depth.
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// ObserveQueueWait records time spent queued, in seconds.
func ObserveQueueWait(seconds float64) {
	queueWait.Observe(seconds)
}

// IncQueueOp counts a completed operation by outcome label.
func IncQueueOp(status string) {
	queueOps.WithLabelValues(status).Inc()
}

// IncQueueRetry counts one lock-contention retry.
func IncQueueRetry() {
	queueRetries.Inc()
}

// AddGeneratedInstances counts materialized recurring instances.
func AddGeneratedInstances(n int) {
	generatedInstances.Add(float64(n))
}

// IncSkippedRun counts a generator run dropped by the concurrency guard.
func IncSkippedRun() {
	skippedRuns.Inc()
}

// IncGateDecision counts a reminder gate outcome ("allowed" or a refusal
// reason).
func IncGateDecision(outcome string) {
	gateDecisions.WithLabelValues(outcome).Inc()
}
