package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/dexter/internal/logging"
	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/dexter/internal/reasoning"

// Default configuration values.
const (
	defaultMaxTokens   = 2048
	defaultMaxRetries  = 0
	defaultBaseBackoff = 1 * time.Second
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

var (
	// ErrEmptyResponse indicates the model returned no choices or no text.
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrInvalidJSON indicates the model reply did not contain a JSON value.
	ErrInvalidJSON = errors.New("model reply is not valid JSON")
)

// Port implements orchestrator.ReasoningPort on top of a langchaingo model.
type Port struct {
	model       llms.Model
	temperature float64
	maxTokens   int
	limiter     *rate.Limiter
	maxRetries  int
	backoff     time.Duration
	logger      *logging.Logger
	tracer      trace.Tracer
}

var _ orchestrator.ReasoningPort = (*Port)(nil)

// Option configures a Port.
type Option func(*Port)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(p *Port) { p.temperature = t }
}

// WithMaxTokens caps completion length. Non-positive values keep the default.
func WithMaxTokens(n int) Option {
	return func(p *Port) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithRateLimit sets requests per second and burst. A non-positive limit disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(p *Port) {
		if perSecond <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxRetries sets how often transient failures are retried.
func WithMaxRetries(n int) Option {
	return func(p *Port) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithBackoff sets the base delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(p *Port) { p.backoff = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Port) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Port) {
		if t != nil {
			p.tracer = t
		}
	}
}

// New wraps model.
func New(model llms.Model, opts ...Option) *Port {
	p := &Port{
		model:       model,
		temperature: 0.1,
		maxTokens:   defaultMaxTokens,
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries:  defaultMaxRetries,
		backoff:     defaultBaseBackoff,
		logger:      logging.NewNop(),
		tracer:      otel.Tracer(InstrumentationName),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("reasoning")
	return p
}

// Complete sends req and returns the JSON value found in the reply.
func (p *Port) Complete(ctx context.Context, req orchestrator.Request) (json.RawMessage, error) {
	ctx, span := p.tracer.Start(ctx, "reasoning.complete",
		trace.WithAttributes(attribute.String("reasoning.purpose", string(req.Purpose))))
	defer span.End()

	start := time.Now()
	raw, attempts, err := p.complete(ctx, req)
	span.SetAttributes(attribute.Int("reasoning.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn(ctx, "reasoning call failed",
			zap.String("purpose", string(req.Purpose)),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return nil, err
	}

	p.logger.Debug(ctx, "reasoning call completed",
		zap.String("purpose", string(req.Purpose)),
		zap.Int("attempts", attempts),
		zap.Duration("duration", time.Since(start)),
	)
	return raw, nil
}

func (p *Port) complete(ctx context.Context, req orchestrator.Request) (json.RawMessage, int, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, req.System),
		llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt),
	}

	var lastErr error
	attempt := 0
	for ; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, attempt, ctx.Err()
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, attempt + 1, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := p.model.GenerateContent(ctx, messages,
			llms.WithTemperature(p.temperature),
			llms.WithMaxTokens(p.maxTokens),
		)
		if err != nil {
			lastErr = err
			if isTransient(err) && ctx.Err() == nil {
				continue
			}
			return nil, attempt + 1, err
		}

		if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
			return nil, attempt + 1, ErrEmptyResponse
		}

		raw, err := ExtractJSON(resp.Choices[0].Content)
		return raw, attempt + 1, err
	}

	return nil, attempt, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// transientMarkers are substrings of provider errors worth retrying.
var transientMarkers = []string{
	"429", "rate limit", "too many requests",
	"500", "502", "503", "504", "overloaded",
	"connection reset", "eof", "timeout",
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
