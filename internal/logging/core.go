package logging

import (
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// otelScope is the instrumentation scope of log records bridged to OTEL.
const otelScope = "github.com/fyrsmithlabs/dexter"

// newCore tees the enabled outputs and applies sampling on top.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	var cores []zapcore.Core

	if cfg.Output.Console {
		console, err := consoleCore(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, console)
	}
	if cfg.Output.OTEL && otelProvider != nil {
		cores = append(cores, otelzap.NewCore(otelScope, otelzap.WithLoggerProvider(otelProvider)))
	}

	switch len(cores) {
	case 0:
		return nil, errors.New("at least one output must be enabled and available")
	case 1:
		return newSampledCore(cores[0], cfg.Sampling), nil
	default:
		return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
	}
}

// consoleCore writes redacted entries to stderr or stdout.
func consoleCore(cfg *Config) (zapcore.Core, error) {
	encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
	}
	sink := zapcore.Lock(os.Stderr)
	if cfg.Output.Stream == "stdout" {
		sink = zapcore.Lock(os.Stdout)
	}
	return zapcore.NewCore(encoder, sink, cfg.Level), nil
}
