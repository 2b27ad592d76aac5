package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dexter/internal/logging"
	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

const instrumentationName = "github.com/fyrsmithlabs/dexter/internal/mcp"

// Metrics records MCP tool calls and the outcome of the runs they start.
type Metrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	steps    metric.Int64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewMetrics creates MCP metrics on the global meter provider.
func NewMetrics(logger *logging.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn(context.Background(), "failed to create instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &Metrics{}
	var err error
	m.calls, err = meter.Int64Counter("dexter.mcp.calls_total",
		metric.WithDescription("MCP tool calls by tool and outcome"),
		metric.WithUnit("{call}"))
	warn("calls_total", err)

	m.duration, err = meter.Float64Histogram("dexter.mcp.call_duration_seconds",
		metric.WithDescription("Wall time of MCP tool calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300))
	warn("call_duration_seconds", err)

	m.steps, err = meter.Int64Histogram("dexter.mcp.research_steps",
		metric.WithDescription("Global steps consumed by research runs started over MCP"),
		metric.WithUnit("{step}"),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 12, 16, 20, 30, 50))
	warn("research_steps", err)

	m.inFlight, err = meter.Int64UpDownCounter("dexter.mcp.in_flight",
		metric.WithDescription("MCP tool calls currently executing"),
		metric.WithUnit("{call}"))
	warn("in_flight", err)

	return m
}

// call tracks one tool call. The returned func records its outcome and must
// be called exactly once.
func (m *Metrics) call(ctx context.Context, tool string) func(res *orchestrator.Result, err error) {
	start := time.Now()
	toolAttr := attribute.String("tool", tool)
	if m.inFlight != nil {
		m.inFlight.Add(ctx, 1, metric.WithAttributes(toolAttr))
	}

	return func(res *orchestrator.Result, err error) {
		if m.inFlight != nil {
			m.inFlight.Add(ctx, -1, metric.WithAttributes(toolAttr))
		}
		attrs := metric.WithAttributes(toolAttr, attribute.String("outcome", outcome(res, err)))
		if m.calls != nil {
			m.calls.Add(ctx, 1, attrs)
		}
		if m.duration != nil {
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
		if res != nil && m.steps != nil {
			m.steps.Record(ctx, int64(res.Steps), attrs)
		}
	}
}

// outcome maps a run result and error onto a bounded label set.
func outcome(res *orchestrator.Result, err error) string {
	if res != nil {
		if res.Status == orchestrator.StatusDone {
			return "done"
		}
		return "aborted"
	}
	return categorizeError(err)
}

func categorizeError(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, orchestrator.ErrEmptyQuery), errors.Is(err, orchestrator.ErrInvalidConfig):
		return "validation_error"
	case errors.Is(err, orchestrator.ErrPlanningFailed):
		return "planning_failed"
	case errors.Is(err, orchestrator.ErrAnswerSynthesisFailed):
		return "answer_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "internal_error"
	}
}
