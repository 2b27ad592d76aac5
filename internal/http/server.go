// Package http provides the HTTP API for dexter.
//
// Routes:
//
//	GET  /health            liveness and active run count
//	GET  /metrics           Prometheus metrics
//	POST /api/v1/research   run a query and wait for the result
//	POST /api/v1/runs       start a query in the background
//	GET  /api/v1/runs/:id   progress or result of a background run
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dexter/internal/logging"
	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

// maxQueryLen bounds the query accepted over HTTP.
const maxQueryLen = 4096

// Runner executes research queries. *orchestrator.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, query string, opts ...orchestrator.RunOption) (*orchestrator.Result, error)
}

// Server provides HTTP endpoints for dexter.
type Server struct {
	echo    *echo.Echo
	runner  Runner
	runs    *RunRegistry
	metrics *HTTPMetrics
	logger  *logging.Logger
	config  *Config

	// background runs are parented on baseCtx so Shutdown can cancel them.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	RetainedRuns int
}

// NewServer creates a new HTTP server.
func NewServer(runner Runner, logger *logging.Logger, cfg *Config) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		runner:  runner,
		runs:    NewRunRegistry(cfg.RetainedRuns),
		metrics: NewHTTPMetrics(logger),
		logger:  logger,
		config:  cfg,
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(s.requestLogger())

	s.registerRoutes()
	return s, nil
}

// requestLogger attaches the request ID to the request context and logs
// every request once it completes.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := req.Context()
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				ctx = logging.WithRequestID(ctx, id)
				c.SetRequest(req.WithContext(ctx))
			}

			err := next(c)

			s.logger.Info(ctx, "http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/research", s.handleResearch)
	v1.POST("/runs", s.handleStartRun)
	v1.GET("/runs/:id", s.handleGetRun)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", ActiveRuns: s.runs.Active()})
}

// handleResearch runs the query within the request. DONE and ABORTED runs
// both answer 200 with the Result; the status field tells them apart.
func (s *Server) handleResearch(c echo.Context) error {
	query, err := s.bindQuery(c)
	if err != nil {
		return err
	}

	res, err := s.runner.Run(c.Request().Context(), query)
	if res == nil {
		return s.runError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleStartRun(c echo.Context) error {
	query, err := s.bindQuery(c)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	s.runs.Start(id, query)

	s.wg.Add(1)
	go s.runInBackground(id, query)

	return c.JSON(http.StatusAccepted, RunAccepted{RunID: id, State: StateRunning})
}

func (s *Server) runInBackground(id, query string) {
	defer s.wg.Done()

	ctx := logging.WithRunID(s.baseCtx, id)
	s.metrics.RunStarted(ctx)

	res, err := s.runner.Run(ctx, query,
		orchestrator.WithRunID(id),
		orchestrator.WithRunProgress(func(_ orchestrator.Event, snap orchestrator.Snapshot) {
			s.runs.Update(id, snap)
		}),
	)
	if err != nil {
		s.logger.Warn(ctx, "background run finished with error", zap.Error(err))
	}
	s.runs.Finish(id, res, err)
	s.metrics.RunFinished(ctx, finalState(res))
}

func (s *Server) handleGetRun(c echo.Context) error {
	st, ok := s.runs.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) bindQuery(c echo.Context) (string, error) {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid research request", zap.Error(err))
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if len(query) > maxQueryLen {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("query exceeds %d bytes", maxQueryLen))
	}
	return query, nil
}

func (s *Server) runError(c echo.Context, err error) error {
	switch {
	case err == nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "run produced no result")
	case errors.Is(err, orchestrator.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run cancelled")
	default:
		s.logger.Error(c.Request().Context(), "research run failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "research run failed")
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels background runs and waits for
// them to record their outcome.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	err := s.echo.Shutdown(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
