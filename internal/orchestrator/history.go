package orchestrator

import (
	"encoding/json"
	"fmt"
)

// Invocation is a canonical record of one attempted tool call.
type Invocation struct {
	TaskID int    `json:"task_id"`
	Tool   string `json:"tool"`
	Args   string `json:"args"`
}

// Same reports whether two invocations are structurally identical.
func (i Invocation) Same(other Invocation) bool {
	return i.TaskID == other.TaskID && i.Tool == other.Tool && i.Args == other.Args
}

// CanonicalArgs renders arguments as JSON with sorted keys at every level, so
// maps with equal contents compare equal regardless of construction order.
func CanonicalArgs(args map[string]any) (string, error) {
	if len(args) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(normalize(args))
	if err != nil {
		return "", fmt.Errorf("canonicalize arguments: %w", err)
	}
	return string(data), nil
}

// normalize converts integer-valued numbers to float64 so 3 and 3.0 compare equal.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalize(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalize(inner)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return val
	}
}

// InvocationHistory keeps the most recent invocations, oldest first.
type InvocationHistory struct {
	limit   int
	records []Invocation
}

// NewInvocationHistory retains at most limit records.
func NewInvocationHistory(limit int) *InvocationHistory {
	if limit < 1 {
		limit = 1
	}
	return &InvocationHistory{limit: limit, records: make([]Invocation, 0, limit)}
}

// Record appends an invocation, evicting the oldest beyond the limit.
func (h *InvocationHistory) Record(inv Invocation) {
	if len(h.records) == h.limit {
		copy(h.records, h.records[1:])
		h.records = h.records[:h.limit-1]
	}
	h.records = append(h.records, inv)
}

// Last returns the most recent retained invocation for taskID.
func (h *InvocationHistory) Last(taskID int) (Invocation, bool) {
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].TaskID == taskID {
			return h.records[i], true
		}
	}
	return Invocation{}, false
}

// IsRepeat reports whether inv equals the previous invocation for its task.
func (h *InvocationHistory) IsRepeat(inv Invocation) bool {
	last, ok := h.Last(inv.TaskID)
	return ok && last.Same(inv)
}

