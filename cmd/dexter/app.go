package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dexter/internal/config"
	"github.com/fyrsmithlabs/dexter/internal/events"
	"github.com/fyrsmithlabs/dexter/internal/logging"
	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
	"github.com/fyrsmithlabs/dexter/internal/reasoning"
	"github.com/fyrsmithlabs/dexter/internal/secrets"
	"github.com/fyrsmithlabs/dexter/internal/telemetry"
	"github.com/fyrsmithlabs/dexter/internal/tools"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	tools     *tools.Registry
	orch      *orchestrator.Orchestrator
	redactor  *secrets.Redactor
	publisher *events.Publisher
	embedded  *events.EmbeddedServer
}

// appOptions selects optional wiring per command.
type appOptions struct {
	progress     orchestrator.ProgressCallback
	embeddedNATS bool
}

// loadConfig reads configuration and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// applyFlagOverrides copies only the flags the user set explicitly.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("max-steps") {
		cfg.Run.GlobalStepBudget = flags.maxSteps
	}
	if fs.Changed("max-steps-per-task") {
		cfg.Run.PerTaskAttemptBudget = flags.maxStepsPerTask
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	tcfg := telemetry.FromSettings(cfg.Telemetry)
	tcfg.ServiceVersion = version
	if a.telemetry, err = telemetry.New(ctx, tcfg); err != nil {
		return nil, err
	}

	lcfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, err
	}
	lcfg.Output.OTEL = cfg.Telemetry.Enabled
	if a.logger, err = logging.NewLogger(lcfg, global.GetLoggerProvider()); err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger.Debug(ctx, "telemetry initialized", zap.Bool("enabled", tcfg.Enabled), zap.Bool("degraded", a.telemetry.Health().Degraded))

	port, err := reasoning.FromConfig(cfg.Reasoning,
		reasoning.WithLogger(a.logger),
		reasoning.WithTracer(a.telemetry.Tracer(reasoning.InstrumentationName)),
	)
	if err != nil {
		return nil, fmt.Errorf("reasoning backend: %w", err)
	}

	if a.tools, err = tools.NewDefault(cfg.Tools, a.logger); err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithTracer(a.telemetry.Tracer(orchestrator.InstrumentationName)),
	}
	if opts.progress != nil {
		orchOpts = append(orchOpts, orchestrator.WithProgress(opts.progress))
	}

	if cfg.Secrets.Enabled {
		if a.redactor, err = secrets.FromConfig(cfg.Secrets, a.logger); err != nil {
			return nil, fmt.Errorf("secret redaction: %w", err)
		}
		orchOpts = append(orchOpts, orchestrator.WithRedactor(a.redactor))
	}

	if opts.embeddedNATS {
		if a.embedded, err = events.StartEmbedded("127.0.0.1", -1); err != nil {
			return nil, err
		}
		cfg.Events.Enabled = true
		cfg.Events.URL = a.embedded.ClientURL()
		a.logger.Info(ctx, "embedded NATS started", zap.String("url", cfg.Events.URL))
	}
	if cfg.Events.Enabled {
		if a.publisher, err = events.Connect(cfg.Events, a.logger); err != nil {
			return nil, err
		}
		orchOpts = append(orchOpts, orchestrator.WithEventSink(a.publisher))
	}

	if a.orch, err = orchestrator.New(port, a.tools, orchestrator.RunConfigFrom(cfg), orchOpts...); err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases resources in reverse order of creation.
func (a *app) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if a.publisher != nil {
		// run events emitted just before shutdown must reach watchers
		if err := a.publisher.Flush(ctx); err != nil && !errors.Is(err, events.ErrNotConnected) {
			errs = append(errs, err)
		}
		errs = append(errs, a.publisher.Close())
	}
	if a.embedded != nil {
		a.embedded.Shutdown()
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if a.logger != nil {
		if err := errors.Join(errs...); err != nil {
			a.logger.Warn(ctx, "shutdown errors", zap.Error(err))
		}
		_ = a.logger.Sync()
	}
}
