package orchestrator

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/dexter/internal/config"
)

// RunConfig bounds a single run.
type RunConfig struct {
	GlobalStepBudget     int
	PerTaskAttemptBudget int
	// ContextWindow is how many recent output entries the executor sees.
	ContextWindow int
	// PlanFallback plans a single task equal to the query when planning fails.
	PlanFallback bool
	// Quotas maps tool name to maximum invocations per run. Absent means unlimited.
	Quotas map[string]int

	Timeout          time.Duration // whole run; 0 disables
	ReasoningTimeout time.Duration // per reasoning call; 0 disables
	ToolTimeout      time.Duration // per tool call; 0 disables
	AnswerTimeout    time.Duration // answer synthesis, detached from the run deadline
}

// DefaultRunConfig returns the standard budgets.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		GlobalStepBudget:     20,
		PerTaskAttemptBudget: 3,
		ContextWindow:        5,
		ReasoningTimeout:     60 * time.Second,
		ToolTimeout:          30 * time.Second,
		AnswerTimeout:        60 * time.Second,
	}
}

// RunConfigFrom maps loaded configuration onto a RunConfig.
func RunConfigFrom(cfg *config.Config) RunConfig {
	quotas := make(map[string]int, len(cfg.Quotas))
	for tool, limit := range cfg.Quotas {
		quotas[tool] = limit
	}
	return RunConfig{
		GlobalStepBudget:     cfg.Run.GlobalStepBudget,
		PerTaskAttemptBudget: cfg.Run.PerTaskAttemptBudget,
		ContextWindow:        cfg.Run.ContextWindow,
		PlanFallback:         cfg.Run.PlanFallback,
		Quotas:               quotas,
		Timeout:              cfg.Run.Timeout.Duration(),
		ReasoningTimeout:     cfg.Run.ReasoningTimeout.Duration(),
		ToolTimeout:          cfg.Run.ToolTimeout.Duration(),
		AnswerTimeout:        cfg.Run.AnswerTimeout.Duration(),
	}
}

// Validate rejects budgets that could not bound a run.
func (c RunConfig) Validate() error {
	if c.GlobalStepBudget <= 0 {
		return fmt.Errorf("%w: global step budget must be positive, got %d", ErrInvalidConfig, c.GlobalStepBudget)
	}
	if c.PerTaskAttemptBudget <= 0 {
		return fmt.Errorf("%w: per-task attempt budget must be positive, got %d", ErrInvalidConfig, c.PerTaskAttemptBudget)
	}
	if c.ContextWindow < 0 {
		return fmt.Errorf("%w: context window cannot be negative", ErrInvalidConfig)
	}
	for tool, limit := range c.Quotas {
		if limit < 0 {
			return fmt.Errorf("%w: quota for %q cannot be negative", ErrInvalidConfig, tool)
		}
	}
	return nil
}
