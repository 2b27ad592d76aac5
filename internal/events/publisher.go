package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dexter/internal/config"
	"github.com/fyrsmithlabs/dexter/internal/logging"
	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

// DefaultPrefix is used when no subject prefix is configured.
const DefaultPrefix = "runs"

// DefaultFlushTimeout bounds Flush when ctx carries no deadline.
const DefaultFlushTimeout = 5 * time.Second

// ErrNotConnected is returned when publishing on a closed connection.
var ErrNotConnected = errors.New("nats connection not available")

// Publisher implements orchestrator.EventSink on a NATS connection.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
	logger *logging.Logger
}

var _ orchestrator.EventSink = (*Publisher)(nil)

// NewPublisher wraps an existing connection. The caller keeps ownership of nc.
func NewPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) *Publisher {
	if prefix = strings.Trim(prefix, ". "); prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger.Named("events")}
}

// Connect dials the configured server and returns a Publisher that owns the
// connection.
func Connect(cfg config.EventsConfig, logger *logging.Logger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("dexter"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	p := NewPublisher(nc, cfg.SubjectPrefix, logger)
	p.owned = true
	p.logger.Info(context.Background(), "connected to NATS", zap.String("url", cfg.URL))
	return p, nil
}

// Subject returns the subject for an event.
func (p *Publisher) Subject(ev orchestrator.Event) string {
	return Subject(p.prefix, ev.RunID, ev.Type)
}

// Publish sends ev as JSON.
func (p *Publisher) Publish(ctx context.Context, ev orchestrator.Event) error {
	if p.nc == nil || p.nc.IsClosed() {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := p.Subject(ev)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Trace(ctx, "event published", zap.String("subject", subject))
	return nil
}

// Flush waits until the server has processed all buffered events. Without a
// deadline on ctx the wait is bounded by DefaultFlushTimeout.
func (p *Publisher) Flush(ctx context.Context) error {
	if p.nc == nil || p.nc.IsClosed() {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultFlushTimeout)
		defer cancel()
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush events: %w", err)
	}
	return nil
}

// Close drains the connection when the Publisher owns it. A borrowed
// connection is only flushed.
func (p *Publisher) Close() error {
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	if !p.owned {
		return p.Flush(context.Background())
	}
	return p.nc.Drain()
}

// Subject builds {prefix}.{run_id}.{event}.
func Subject(prefix, runID string, typ orchestrator.EventType) string {
	return prefix + "." + token(runID) + "." + token(string(typ))
}

// token keeps a subject segment free of NATS separators and wildcards.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
