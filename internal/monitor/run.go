// Package monitor renders a live terminal dashboard of research runs from
// their lifecycle events.
package monitor

import (
	"sort"
	"time"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

const historySize = 30

// TaskView is what the dashboard knows about one task.
type TaskView struct {
	ID          int
	Description string
	Status      orchestrator.TaskStatus
}

// RunView is a run's state rebuilt from its events.
type RunView struct {
	RunID      string
	Query      string
	Phase      orchestrator.Phase
	Steps      int
	Planned    string
	Tasks      []TaskView
	ToolCalls  map[string]int
	Rejections int
	Note       string
	Started    time.Time
	LastEvent  time.Time

	// Seconds between consecutive tool invocations.
	ToolGapHistory []float64
	lastToolAt     time.Time
}

// NewRunView returns an empty view.
func NewRunView() RunView {
	return RunView{
		ToolCalls:      map[string]int{},
		ToolGapHistory: make([]float64, 0, historySize),
	}
}

// Finished reports whether the run reached DONE or ABORTED.
func (v RunView) Finished() bool {
	return v.Phase == orchestrator.PhaseDone || v.Phase == orchestrator.PhaseAborted
}

// Elapsed is the time between the first and last event seen.
func (v RunView) Elapsed() time.Duration {
	if v.Started.IsZero() {
		return 0
	}
	return v.LastEvent.Sub(v.Started)
}

// ToolNames returns tools in descending call count, then by name.
func (v RunView) ToolNames() []string {
	names := make([]string, 0, len(v.ToolCalls))
	for name := range v.ToolCalls {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if v.ToolCalls[names[i]] != v.ToolCalls[names[j]] {
			return v.ToolCalls[names[i]] > v.ToolCalls[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Apply folds one event into the view. Events for a different run reset it.
func (v RunView) Apply(ev orchestrator.Event) RunView {
	if v.RunID != "" && ev.RunID != v.RunID {
		v = NewRunView()
	}
	if v.ToolCalls == nil {
		v.ToolCalls = map[string]int{}
	}
	v.RunID = ev.RunID
	v.Phase = ev.Phase
	if ev.Steps > v.Steps {
		v.Steps = ev.Steps
	}
	if v.Started.IsZero() {
		v.Started = ev.At
	}
	v.LastEvent = ev.At

	switch ev.Type {
	case orchestrator.EventRunStarted:
		v.Query = ev.Message
	case orchestrator.EventPlanned:
		v.Planned = ev.Message
	case orchestrator.EventTaskStarted:
		v = v.setTask(ev.TaskID, ev.Message, orchestrator.TaskInProgress)
	case orchestrator.EventTaskCompleted:
		v = v.setTask(ev.TaskID, "", orchestrator.TaskDone)
	case orchestrator.EventTaskFailed:
		v = v.setTask(ev.TaskID, "", orchestrator.TaskFailed)
	case orchestrator.EventToolInvoked:
		v.ToolCalls[ev.Tool]++
		if !v.lastToolAt.IsZero() {
			v.ToolGapHistory = appendToHistory(v.ToolGapHistory, ev.At.Sub(v.lastToolAt).Seconds())
		}
		v.lastToolAt = ev.At
	case orchestrator.EventToolRejected:
		v.Rejections++
	case orchestrator.EventBudgetExhausted, orchestrator.EventRunAborted:
		v.Note = ev.Message
	}
	return v
}

func (v RunView) setTask(id int, desc string, status orchestrator.TaskStatus) RunView {
	for i := range v.Tasks {
		if v.Tasks[i].ID == id {
			tasks := append([]TaskView(nil), v.Tasks...)
			tasks[i].Status = status
			if desc != "" {
				tasks[i].Description = desc
			}
			v.Tasks = tasks
			return v
		}
	}
	v.Tasks = append(append([]TaskView(nil), v.Tasks...), TaskView{ID: id, Description: desc, Status: status})
	return v
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}
