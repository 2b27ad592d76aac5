package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dexter/internal/logging"
	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

// Runner executes research queries. *orchestrator.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, query string, opts ...orchestrator.RunOption) (*orchestrator.Result, error)
}

// Server is an MCP server backed by an orchestrator.
type Server struct {
	mcp     *mcp.Server
	runner  Runner
	catalog orchestrator.ToolCatalog
	metrics *Metrics
	logger  *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "dexter")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging. Must not write to stdout.
	Logger *logging.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "dexter",
		Version: "dev",
		Logger:  logging.NewNop(),
	}
}

// NewServer creates an MCP server. catalog is optional; without it
// list_tools is not registered.
func NewServer(cfg *Config, runner Runner, catalog orchestrator.ToolCatalog) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Name == "" {
		cfg.Name = "dexter"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("mcp")

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			nil,
		),
		runner:  runner,
		catalog: catalog,
		metrics: NewMetrics(logger),
		logger:  logger,
	}

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves MCP on an arbitrary transport until ctx is done or the
// client disconnects.
func (s *Server) RunTransport(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info(ctx, "starting MCP server", zap.String("transport", fmt.Sprintf("%T", transport)))
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
