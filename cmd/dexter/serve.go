package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/dexter/internal/http"
)

var serveFlags struct {
	host         string
	port         int
	embeddedNATS bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the research HTTP API",
	Long: `Serve the HTTP API:

  POST /api/v1/research   run a query and wait for the answer
  POST /api/v1/runs       start a query in the background
  GET  /api/v1/runs/:id   follow a background run
  GET  /health, /metrics

Examples:
  dexter serve --port 9191

  # Publish run events on an in-process NATS server
  dexter serve --embedded-nats`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "localhost", "listen address")
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 0, "listen port (default from config server.http_port)")
	serveCmd.Flags().BoolVar(&serveFlags.embeddedNATS, "embedded-nats", false, "start an in-process NATS server for run events")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveFlags.port != 0 {
		cfg.Server.Port = serveFlags.port
	}

	a, err := newApp(ctx, cfg, appOptions{embeddedNATS: serveFlags.embeddedNATS})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv, err := httpserver.NewServer(a.orch, a.logger, &httpserver.Config{
		Host: serveFlags.host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	if a.redactor != nil && cfg.Secrets.AllowlistPath != "" {
		go func() {
			if err := a.redactor.WatchAllowlist(ctx, cfg.Secrets.AllowlistPath); err != nil {
				a.logger.Warn(ctx, "allowlist hot reload disabled", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	start := time.Now()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn(shutdownCtx, "http shutdown incomplete", zap.Error(err))
		return err
	}
	a.logger.Info(shutdownCtx, "http server stopped", zap.Duration("drain", time.Since(start)))
	return nil
}
