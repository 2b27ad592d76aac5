// Package telemetry provides OpenTelemetry instrumentation for dexter.
//
// Telemetry is disabled by default. When enabled it installs global
// TracerProvider and MeterProvider instances that export over OTLP, using
// gRPC or HTTP/protobuf depending on Config.Protocol.
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer("github.com/fyrsmithlabs/dexter/internal/orchestrator")
//
// Exporter failures never stop a run; the instance is marked degraded and
// falls back to no-op providers.
//
// NewTestTelemetry records spans in memory for assertions in tests.
package telemetry
