package orchestrator

import (
	"fmt"
	"sync"
)

// QuotaGuard tracks remaining invocations per rate-limited tool for one run.
// Counts only ever decrease. Tools without an entry are unlimited.
type QuotaGuard struct {
	mu        sync.Mutex
	remaining map[string]int
}

// NewQuotaGuard creates a guard from tool -> max invocations.
func NewQuotaGuard(limits map[string]int) *QuotaGuard {
	remaining := make(map[string]int, len(limits))
	for tool, limit := range limits {
		if limit < 0 {
			limit = 0
		}
		remaining[tool] = limit
	}
	return &QuotaGuard{remaining: remaining}
}

// Acquire consumes one invocation of tool. It must be called before every
// attempted invocation, whatever its outcome. With nothing left it returns
// ErrQuotaExceeded and the tool must not be called.
func (q *QuotaGuard) Acquire(tool string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	left, limited := q.remaining[tool]
	if !limited {
		return nil
	}
	if left <= 0 {
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, tool)
	}
	q.remaining[tool] = left - 1
	return nil
}

// Remaining returns the invocations left for tool and whether it is limited.
func (q *QuotaGuard) Remaining(tool string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	left, limited := q.remaining[tool]
	return left, limited
}

// Snapshot returns a copy of all remaining counts.
func (q *QuotaGuard) Snapshot() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int, len(q.remaining))
	for k, v := range q.remaining {
		out[k] = v
	}
	return out
}
