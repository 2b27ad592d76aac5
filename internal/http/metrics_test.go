package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newHTTPMetrics(mp.Meter(httpInstrumentationName), nil)

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/runs/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	})

	for _, path := range []string{"/health", "/api/v1/runs/a", "/api/v1/runs/b"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}
	m.RunStarted(context.Background())
	m.RunStarted(context.Background())
	m.RunFinished(context.Background(), StateDone)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			found[md.Name] = true
			switch md.Name {
			case "dexter.http.requests_total":
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				byEndpoint := map[string]int64{}
				for _, dp := range sum.DataPoints {
					endpoint, _ := dp.Attributes.Value(attribute.Key("endpoint"))
					status, _ := dp.Attributes.Value(attribute.Key("status"))
					if endpoint.AsString() == "/api/v1/runs/:id" {
						assert.Equal(t, int64(http.StatusNotFound), status.AsInt64())
					}
					byEndpoint[endpoint.AsString()] += dp.Value
				}
				assert.Equal(t, map[string]int64{"/health": 1, "/api/v1/runs/:id": 2}, byEndpoint)
			case "dexter.http.active_runs":
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			case "dexter.http.runs_total":
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				state, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("state"))
				assert.Equal(t, "done", state.AsString())
			case "dexter.http.request_duration_seconds":
				hist, ok := md.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				var total uint64
				for _, dp := range hist.DataPoints {
					total += dp.Count
				}
				assert.Equal(t, uint64(3), total)
			}
		}
	}

	for _, name := range []string{
		"dexter.http.requests_total",
		"dexter.http.request_duration_seconds",
		"dexter.http.response_size_bytes",
		"dexter.http.active_runs",
		"dexter.http.runs_total",
	} {
		assert.True(t, found[name], name)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"":                 "/",
		"/health":          "/health",
		"/api/v1/runs/:id": "/api/v1/runs/:id",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePath(in))
	}
}
