package http

import (
	"sync"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

// DefaultRetainedRuns bounds how many finished runs the registry remembers.
const DefaultRetainedRuns = 256

// RunRegistry tracks asynchronous runs in memory. Finished runs beyond the
// retention limit are evicted oldest first.
type RunRegistry struct {
	mu       sync.RWMutex
	runs     map[string]*RunStatus
	finished []string
	retain   int
}

// NewRunRegistry creates a registry keeping at most retain finished runs.
func NewRunRegistry(retain int) *RunRegistry {
	if retain <= 0 {
		retain = DefaultRetainedRuns
	}
	return &RunRegistry{runs: map[string]*RunStatus{}, retain: retain}
}

// Start records a new running run.
func (r *RunRegistry) Start(id, query string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[id] = &RunStatus{RunID: id, Query: query, State: StateRunning}
}

// Update stores the latest snapshot of a running run.
func (r *RunRegistry) Update(id string, snap orchestrator.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.runs[id]; ok && st.State == StateRunning {
		st.Snapshot = &snap
	}
}

// Finish records the outcome of a run.
func (r *RunRegistry) Finish(id string, res *orchestrator.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.runs[id]
	if !ok {
		return
	}
	st.Result = res
	st.State = finalState(res)
	if err != nil {
		st.Error = err.Error()
	}

	r.finished = append(r.finished, id)
	for len(r.finished) > r.retain {
		delete(r.runs, r.finished[0])
		r.finished = r.finished[1:]
	}
}

func finalState(res *orchestrator.Result) State {
	switch {
	case res == nil:
		return StateFailed
	case res.Status == orchestrator.StatusDone:
		return StateDone
	default:
		return StateAborted
	}
}

// Get returns a copy of the run's status.
func (r *RunRegistry) Get(id string) (RunStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.runs[id]
	if !ok {
		return RunStatus{}, false
	}
	return *st, true
}

// Active returns the number of running runs.
func (r *RunRegistry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs) - len(r.finished)
}
