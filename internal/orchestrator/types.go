package orchestrator

import (
	"encoding/json"
	"time"
)

// Phase is a state of the run state machine.
type Phase string

const (
	PhasePlanning   Phase = "PLANNING"
	PhaseRouting    Phase = "ROUTING"
	PhaseExecuting  Phase = "EXECUTING"
	PhaseValidating Phase = "VALIDATING"
	PhaseAnswering  Phase = "ANSWERING"
	PhaseDone       Phase = "DONE"
	PhaseAborted    Phase = "ABORTED"
)

// AllPhases returns every phase in nominal order.
func AllPhases() []Phase {
	return []Phase{
		PhasePlanning, PhaseRouting, PhaseExecuting, PhaseValidating,
		PhaseAnswering, PhaseDone, PhaseAborted,
	}
}

// ValidTransitions is the fixed transition table. DONE and ABORTED are absorbing.
var ValidTransitions = map[Phase][]Phase{
	PhasePlanning:   {PhaseRouting, PhaseAborted},
	PhaseRouting:    {PhaseExecuting, PhaseAnswering},
	PhaseExecuting:  {PhaseValidating, PhaseRouting, PhaseAnswering},
	PhaseValidating: {PhaseRouting, PhaseExecuting, PhaseAnswering},
	PhaseAnswering:  {PhaseDone, PhaseAborted},
	PhaseDone:       {},
	PhaseAborted:    {},
}

// CanTransitionTo reports whether next is reachable from p in one step.
func (p Phase) CanTransitionTo(next Phase) bool {
	for _, allowed := range ValidTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether p is DONE or ABORTED.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseAborted
}

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskFailed     TaskStatus = "failed"
)

// IsResolved reports whether the task reached done or failed.
func (s TaskStatus) IsResolved() bool {
	return s == TaskDone || s == TaskFailed
}

// Task is one planned sub-goal. IDs are 1-based and stable for the run.
type Task struct {
	ID          int        `json:"id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Attempts    int        `json:"attempts"`
}

// EntryKind distinguishes tool output from recorded failures in the output log.
type EntryKind string

const (
	EntryOutput  EntryKind = "output"
	EntryFailure EntryKind = "failure"
)

// OutputEntry is one append-only record in a run's output log.
type OutputEntry struct {
	TaskID int       `json:"task_id"`
	Tool   string    `json:"tool"`
	Kind   EntryKind `json:"kind"`
	Output string    `json:"output,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

// RunStatus is the terminal status reported in a Result.
type RunStatus string

const (
	StatusDone    RunStatus = "DONE"
	StatusAborted RunStatus = "ABORTED"
)

// Result is the outcome of a run.
//
// A DONE result carries Answer and Tasks. An ABORTED result carries Reason and
// PartialOutputLog, the output log as it stood when the run stopped.
type Result struct {
	RunID            string        `json:"run_id"`
	Query            string        `json:"query"`
	Status           RunStatus     `json:"status"`
	Answer           string        `json:"answer,omitempty"`
	Tasks            []Task        `json:"tasks,omitempty"`
	Reason           string        `json:"reason,omitempty"`
	PartialOutputLog []OutputEntry `json:"partial_output_log"`
	Steps            int           `json:"steps"`
	BudgetExhausted  bool          `json:"budget_exhausted,omitempty"`
	Duration         time.Duration `json:"duration_ns"`
}

// MarshalJSON always writes partial_output_log for an ABORTED result, as an
// empty list when nothing ran, and omits it for a DONE result.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		PartialOutputLog *[]OutputEntry `json:"partial_output_log,omitempty"`
	}{plain: plain(r)}
	if r.Status == StatusAborted {
		log := r.PartialOutputLog
		if log == nil {
			log = []OutputEntry{}
		}
		out.PartialOutputLog = &log
	}
	return json.Marshal(out)
}

// Snapshot is a read-only copy of run state handed to progress callbacks.
type Snapshot struct {
	RunID       string        `json:"run_id"`
	Query       string        `json:"query"`
	Phase       Phase         `json:"phase"`
	Tasks       []Task        `json:"tasks"`
	ActiveIndex int           `json:"active_index"`
	Steps       int           `json:"steps"`
	OutputLog   []OutputEntry `json:"output_log"`
	// Quotas holds the remaining calls of every rate-limited tool.
	Quotas map[string]int `json:"quotas,omitempty"`
}
