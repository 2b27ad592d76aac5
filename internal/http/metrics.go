package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dexter/internal/logging"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/dexter/internal/http"

// HTTPMetrics records request traffic and asynchronous run lifecycles.
// Instruments that fail to register stay nil and are skipped.
type HTTPMetrics struct {
	requests   metric.Int64Counter
	latency    metric.Float64Histogram
	bodySize   metric.Int64Histogram
	inFlight   metric.Int64UpDownCounter
	activeRuns metric.Int64UpDownCounter
	runs       metric.Int64Counter
}

// NewHTTPMetrics creates HTTP metrics on the global meter provider.
func NewHTTPMetrics(logger *logging.Logger) *HTTPMetrics {
	return newHTTPMetrics(otel.Meter(httpInstrumentationName), logger)
}

func newHTTPMetrics(meter metric.Meter, logger *logging.Logger) *HTTPMetrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn(context.Background(), "failed to register instrument",
				zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &HTTPMetrics{}
	var err error

	m.requests, err = meter.Int64Counter("dexter.http.requests_total",
		metric.WithDescription("HTTP requests by method, endpoint and status."),
		metric.WithUnit("{request}"))
	warn("requests_total", err)

	// Synchronous research requests hold the connection for a whole run.
	m.latency, err = meter.Float64Histogram("dexter.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency by method, endpoint and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300))
	warn("request_duration_seconds", err)

	m.bodySize, err = meter.Int64Histogram("dexter.http.response_size_bytes",
		metric.WithDescription("HTTP response body size."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000, 100000, 500000))
	warn("response_size_bytes", err)

	m.inFlight, err = meter.Int64UpDownCounter("dexter.http.active_requests",
		metric.WithDescription("HTTP requests currently being served."),
		metric.WithUnit("{request}"))
	warn("active_requests", err)

	m.activeRuns, err = meter.Int64UpDownCounter("dexter.http.active_runs",
		metric.WithDescription("Asynchronous runs currently executing."),
		metric.WithUnit("{run}"))
	warn("active_runs", err)

	m.runs, err = meter.Int64Counter("dexter.http.runs_total",
		metric.WithDescription("Finished asynchronous runs by final state."),
		metric.WithUnit("{run}"))
	warn("runs_total", err)

	return m
}

// RunStarted marks an asynchronous run as executing.
func (m *HTTPMetrics) RunStarted(ctx context.Context) {
	if m.activeRuns != nil {
		m.activeRuns.Add(ctx, 1)
	}
}

// RunFinished releases the run from the active gauge and counts its outcome.
func (m *HTTPMetrics) RunFinished(ctx context.Context, state State) {
	if m.activeRuns != nil {
		m.activeRuns.Add(ctx, -1)
	}
	if m.runs != nil {
		m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
	}
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := c.Request().Context()

			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			if err := next(c); err != nil {
				// Have echo write the response now so the recorded status is final.
				c.Error(err)
			}

			res := c.Response()
			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", normalizePath(c.Path())),
				attribute.Int("status", res.Status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.latency != nil {
				m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.bodySize != nil {
				m.bodySize.Record(ctx, res.Size, attrs)
			}
			return nil
		}
	}
}

// normalizePath returns the matched route pattern, or "/" for unmatched
// requests, which keeps the endpoint label bounded.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
