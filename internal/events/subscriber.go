package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

// Handler receives decoded events.
type Handler func(ev orchestrator.Event)

// Watch subscribes to one run (or to all runs when runID is empty) and calls
// handler for every event until ctx is done. It returns early with nil once
// the run's terminal event has been delivered.
func Watch(ctx context.Context, nc *nats.Conn, prefix, runID string, handler Handler) error {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	subject := prefix + ".>"
	if runID != "" {
		subject = prefix + "." + token(runID) + ".>"
	}

	msgs := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe(subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe() //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgs:
			var ev orchestrator.Event
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				continue
			}
			handler(ev)
			if runID != "" && isTerminal(ev.Type) {
				return nil
			}
		}
	}
}

func isTerminal(t orchestrator.EventType) bool {
	return t == orchestrator.EventRunCompleted || t == orchestrator.EventRunAborted
}
