package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts finished runs.
	// Labels: status (DONE, ABORTED)
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dexter",
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Total number of finished runs by terminal status",
		},
		[]string{"status"},
	)

	// RunDuration tracks wall-clock run duration.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dexter",
			Subsystem: "orchestrator",
			Name:      "run_duration_seconds",
			Help:      "Duration of runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// StepsPerRun tracks executor and validator steps consumed per run.
	StepsPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dexter",
			Subsystem: "orchestrator",
			Name:      "steps_per_run",
			Help:      "Global steps consumed per run",
			Buckets:   prometheus.LinearBuckets(0, 5, 11),
		},
	)

	// BudgetExhaustedTotal counts runs that hit the global step budget or deadline.
	BudgetExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dexter",
			Subsystem: "orchestrator",
			Name:      "budget_exhausted_total",
			Help:      "Total number of runs forced to answer early",
		},
	)

	// TasksTotal counts resolved tasks.
	// Labels: status (done, failed)
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dexter",
			Subsystem: "orchestrator",
			Name:      "tasks_total",
			Help:      "Total number of resolved tasks by status",
		},
		[]string{"status"},
	)

	// ToolCallsTotal counts executor outcomes.
	// Labels: tool, outcome (succeeded, tool_failed, loop_detected, quota_exceeded)
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dexter",
			Subsystem: "orchestrator",
			Name:      "tool_calls_total",
			Help:      "Total number of executor outcomes by tool",
		},
		[]string{"tool", "outcome"},
	)
)

// toolLabelFor keeps metric cardinality bounded to the registered tool set.
func toolLabelFor(exec Execution, known map[string]struct{}) string {
	if exec.Tool == "" {
		return "none"
	}
	if _, ok := known[exec.Tool]; ok || len(known) == 0 {
		return exec.Tool
	}
	return "unknown"
}
