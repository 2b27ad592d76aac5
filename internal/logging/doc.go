// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// The package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Console/JSON output on stderr plus an optional OpenTelemetry bridge
//   - Automatic context field injection (trace_id, run.id, task.id, request.id)
//   - Secret redaction by field name and value pattern
//   - Level-aware sampling (errors never sampled)
//
// Logs go to stderr by default so they never interleave with answers printed
// on stdout or with the MCP stdio transport.
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithTaskID(ctx, task.ID)
//	logger.Info(ctx, "tool invoked", zap.String("tool", name))
//
// Output includes automatic correlation:
//
//	{"level":"info","msg":"tool invoked","run.id":"4f1c...","task.id":2,"tool":"search_web"}
//
// # Testing
//
// NewTestLogger returns a logger backed by zaptest/observer with assertion helpers.
package logging
