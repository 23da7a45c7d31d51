// Package metrics exposes the kernel's Prometheus collectors.
//
// The registry is public so an embedding server (out of the kernel's own
// scope) can mount /metrics; the kernel itself never starts an HTTP
// listener.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the kernel's private Prometheus registry.
var Registry = prometheus.NewRegistry()

var (
	// TasksDispatched counts task dispatches by mode and terminal status.
	TasksDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sunwell_tasks_dispatched_total",
		Help: "Number of tasks dispatched, labeled by mode and outcome.",
	}, []string{"mode", "status"})

	// TaskDuration observes per-task wall-clock duration in seconds.
	TaskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sunwell_task_duration_seconds",
		Help:    "Task dispatch duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// CircuitBreakerState reports 0=closed, 1=half_open, 2=open per resource.
	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sunwell_circuit_breaker_state",
		Help: "Circuit breaker state per resource (0=closed,1=half_open,2=open).",
	}, []string{"resource"})

	// BudgetTokensUsed tracks cumulative token spend per session.
	BudgetTokensUsed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sunwell_budget_tokens_used",
		Help: "Tokens consumed so far in the current session budget.",
	}, []string{"session_id"})

	// WorkerPoolOccupancy reports active worker count.
	WorkerPoolOccupancy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sunwell_worker_pool_occupancy",
		Help: "Number of currently active worker processes.",
	})

	// GateResults counts gate pass/fail by gate name.
	GateResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sunwell_gate_results_total",
		Help: "Gate outcomes labeled by gate name and result.",
	}, []string{"gate", "result"})
)

func init() {
	Registry.MustRegister(
		TasksDispatched,
		TaskDuration,
		CircuitBreakerState,
		BudgetTokensUsed,
		WorkerPoolOccupancy,
		GateResults,
	)
}
