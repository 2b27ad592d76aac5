package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dexter/internal/config"
	"github.com/fyrsmithlabs/dexter/internal/logging"
	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

// Tool is a single invocable tool.
type Tool interface {
	Spec() orchestrator.ToolSpec
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// Registry maps tool names to tools. It implements orchestrator.ToolPort and
// orchestrator.ToolCatalog.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *logging.Logger
}

var (
	_ orchestrator.ToolPort    = (*Registry)(nil)
	_ orchestrator.ToolCatalog = (*Registry)(nil)
)

// NewRegistry creates an empty registry. logger may be nil.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger.Named("tools"),
	}
}

// NewDefault registers every built-in tool. search_web is only available when
// a Tavily API key is configured.
func NewDefault(cfg config.ToolsConfig, logger *logging.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	client := newHTTPClient(cfg.HTTPTimeout.Duration())

	builtins := []Tool{
		NewCurrentDate(time.Now),
		NewCalculator(),
		NewStockInfo(cfg.Stock.BaseURL, client),
	}
	if cfg.Search.APIKey.IsSet() {
		builtins = append(builtins, NewWebSearch(cfg.Search.BaseURL, cfg.Search.APIKey.Value(), cfg.Search.MaxResults, client))
	} else {
		r.logger.Warn(context.Background(), "search_web disabled: no Tavily API key configured")
	}

	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	name := t.Spec().Name
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns the ToolSpec of every registered tool, sorted by name.
func (r *Registry) Tools() []orchestrator.ToolSpec {
	names := r.Names()
	specs := make([]orchestrator.ToolSpec, 0, len(names))
	for _, name := range names {
		if t, ok := r.Get(name); ok {
			specs = append(specs, t.Spec())
		}
	}
	return specs
}

// Invoke runs the named tool.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", orchestrator.NewToolError(orchestrator.ToolErrorUnknownTool, name, "no such tool; available: %v", r.Names())
	}

	start := time.Now()
	out, err := t.Invoke(ctx, args)
	if err != nil {
		r.logger.Debug(ctx, "tool returned error", zap.String("tool", name), zap.Error(err))
		return "", err
	}
	r.logger.Debug(ctx, "tool invoked",
		zap.String("tool", name),
		zap.Duration("duration", time.Since(start)),
		zap.Int("output_len", len(out)),
	)
	return out, nil
}
