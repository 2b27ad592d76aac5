package orchestrator

import (
	"context"
	"time"
)

// EventType names a run lifecycle event.
type EventType string

const (
	EventRunStarted      EventType = "started"
	EventPlanned         EventType = "planned"
	EventTaskStarted     EventType = "task_started"
	EventToolInvoked     EventType = "tool_invoked"
	EventToolRejected    EventType = "tool_rejected"
	EventTaskCompleted   EventType = "task_completed"
	EventTaskFailed      EventType = "task_failed"
	EventBudgetExhausted EventType = "budget_exhausted"
	EventRunCompleted    EventType = "completed"
	EventRunAborted      EventType = "aborted"
)

// Event is published to the EventSink and the progress callback.
type Event struct {
	RunID   string    `json:"run_id"`
	Type    EventType `json:"type"`
	Phase   Phase     `json:"phase"`
	TaskID  int       `json:"task_id,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Message string    `json:"message,omitempty"`
	Steps   int       `json:"steps"`
	At      time.Time `json:"at"`
}

// EventSink receives run lifecycle events. Publish errors are logged and never
// affect the run.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// ProgressCallback receives every event together with a snapshot of run state
// taken right after the event.
type ProgressCallback func(ev Event, snap Snapshot)
