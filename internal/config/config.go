// Package config provides configuration loading for dexter.
//
// Configuration is assembled from built-in defaults, an optional YAML file and
// DEXTER_* environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete dexter configuration.
type Config struct {
	Run       RunConfig       `koanf:"run"`
	Quotas    map[string]int  `koanf:"quotas"`
	Reasoning ReasoningConfig `koanf:"reasoning"`
	Tools     ToolsConfig     `koanf:"tools"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Server    ServerConfig    `koanf:"server"`
	Events    EventsConfig    `koanf:"events"`
	Secrets   SecretsConfig   `koanf:"secrets"`
}

// RunConfig bounds a single research run.
type RunConfig struct {
	GlobalStepBudget     int      `koanf:"global_step_budget"`
	PerTaskAttemptBudget int      `koanf:"per_task_attempt_budget"`
	ContextWindow        int      `koanf:"context_window"`
	PlanFallback         bool     `koanf:"plan_fallback"`
	Timeout              Duration `koanf:"timeout"` // 0 disables the wall-clock limit
	ReasoningTimeout     Duration `koanf:"reasoning_timeout"`
	ToolTimeout          Duration `koanf:"tool_timeout"`
	AnswerTimeout        Duration `koanf:"answer_timeout"`
}

// ReasoningConfig selects and tunes the language model backend.
type ReasoningConfig struct {
	Provider    string  `koanf:"provider"` // openai | anthropic
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      Secret  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	RateLimit   float64 `koanf:"rate_limit"` // requests per second
	Burst       int     `koanf:"burst"`
	MaxRetries  int     `koanf:"max_retries"` // transport resends; 0 disables
}

// ToolsConfig configures the built-in tool set.
type ToolsConfig struct {
	HTTPTimeout Duration     `koanf:"http_timeout"`
	Search      SearchConfig `koanf:"search"`
	Stock       StockConfig  `koanf:"stock"`
}

// SearchConfig configures the Tavily-backed web search tool.
type SearchConfig struct {
	APIKey     Secret `koanf:"api_key"`
	BaseURL    string `koanf:"base_url"`
	MaxResults int    `koanf:"max_results"`
}

// StockConfig configures the quote lookup tool.
type StockConfig struct {
	BaseURL string `koanf:"base_url"`
}

// LoggingConfig holds the subset of logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // grpc | http/protobuf
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// EventsConfig controls run lifecycle publishing to NATS.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// SecretsConfig controls redaction of secrets found in tool output.
type SecretsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	AllowlistPath string `koanf:"allowlist_path"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			GlobalStepBudget:     20,
			PerTaskAttemptBudget: 3,
			ContextWindow:        5,
			ReasoningTimeout:     Duration(60 * time.Second),
			ToolTimeout:          Duration(30 * time.Second),
			AnswerTimeout:        Duration(60 * time.Second),
		},
		Quotas: map[string]int{},
		Reasoning: ReasoningConfig{
			Provider:   "openai",
			RateLimit:  50.0 / 60.0,
			Burst:      5,
			MaxTokens:  2048,
		},
		Tools: ToolsConfig{
			HTTPTimeout: Duration(20 * time.Second),
			Search: SearchConfig{
				BaseURL:    "https://api.tavily.com",
				MaxResults: 5,
			},
			Stock: StockConfig{
				BaseURL: "https://query1.finance.yahoo.com",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "dexter",
			SampleRate:  1.0,
		},
		Server: ServerConfig{
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Events: EventsConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "runs",
		},
		Secrets: SecretsConfig{
			Enabled: true,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Run.GlobalStepBudget <= 0 {
		return fmt.Errorf("run.global_step_budget must be positive, got %d", c.Run.GlobalStepBudget)
	}
	if c.Run.PerTaskAttemptBudget <= 0 {
		return fmt.Errorf("run.per_task_attempt_budget must be positive, got %d", c.Run.PerTaskAttemptBudget)
	}
	if c.Run.ContextWindow < 0 {
		return fmt.Errorf("run.context_window cannot be negative, got %d", c.Run.ContextWindow)
	}
	for tool, limit := range c.Quotas {
		if limit < 0 {
			return fmt.Errorf("quota for %q cannot be negative, got %d", tool, limit)
		}
	}

	switch c.Reasoning.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported reasoning provider %q (must be openai or anthropic)", c.Reasoning.Provider)
	}
	if c.Reasoning.Provider == "anthropic" && c.Reasoning.BaseURL != "" {
		return errors.New("reasoning.base_url is only supported for the openai provider")
	}
	if c.Reasoning.RateLimit <= 0 {
		return errors.New("reasoning.rate_limit must be positive")
	}
	if c.Reasoning.Burst <= 0 {
		return errors.New("reasoning.burst must be positive")
	}
	if c.Reasoning.MaxRetries < 0 {
		return errors.New("reasoning.max_retries cannot be negative")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return errors.New("events.url required when events are enabled")
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("telemetry.service_name required when telemetry is enabled")
	}

	return nil
}
