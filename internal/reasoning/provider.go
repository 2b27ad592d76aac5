package reasoning

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/dexter/internal/config"
)

var (
	// ErrMissingAPIKey indicates the provider credentials are not configured.
	ErrMissingAPIKey = errors.New("reasoning API key required")

	// ErrUnsupportedOption indicates a setting the provider client cannot honor.
	ErrUnsupportedOption = errors.New("option not supported by anthropic provider")
)

// NewModel builds the langchaingo model for the configured provider.
func NewModel(cfg config.ReasoningConfig) (llms.Model, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("%w for provider %q", ErrMissingAPIKey, cfg.Provider)
	}

	switch cfg.Provider {
	case "openai", "":
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey.Value()),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return llm, nil

	case "anthropic":
		if cfg.BaseURL != "" {
			return nil, fmt.Errorf("%w: base_url", ErrUnsupportedOption)
		}
		llm, err := anthropic.New(
			anthropic.WithToken(cfg.APIKey.Value()),
			anthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic client: %w", err)
		}
		return completionModel{llm: llm}, nil

	default:
		return nil, fmt.Errorf("unsupported reasoning provider %q", cfg.Provider)
	}
}

// FromConfig builds a Port for the configured provider.
func FromConfig(cfg config.ReasoningConfig, opts ...Option) (*Port, error) {
	model, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithTemperature(cfg.Temperature),
		WithMaxTokens(cfg.MaxTokens),
		WithRateLimit(cfg.RateLimit, cfg.Burst),
		WithMaxRetries(cfg.MaxRetries),
	}
	return New(model, append(base, opts...)...), nil
}
