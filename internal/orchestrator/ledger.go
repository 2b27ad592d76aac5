package orchestrator

import (
	"fmt"
	"strings"
)

// Ledger is the ordered task list of a run. It owns every task-level status
// and attempt mutation; callers only ever receive copies of tasks.
//
// Allowed task transitions:
//
//	pending     -> in_progress
//	in_progress -> done | failed
//
// A failed or done task never changes again.
type Ledger struct {
	tasks         []Task
	attemptBudget int
}

// NewLedger creates a ledger with one pending task per non-blank description.
func NewLedger(descriptions []string, attemptBudget int) (*Ledger, error) {
	if attemptBudget <= 0 {
		return nil, fmt.Errorf("%w: attempt budget must be positive", ErrInvalidConfig)
	}

	tasks := make([]Task, 0, len(descriptions))
	for _, d := range descriptions {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		tasks = append(tasks, Task{
			ID:          len(tasks) + 1,
			Description: d,
			Status:      TaskPending,
		})
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: no tasks", ErrPlanningFailed)
	}

	return &Ledger{tasks: tasks, attemptBudget: attemptBudget}, nil
}

// Len returns the number of tasks.
func (l *Ledger) Len() int {
	return len(l.tasks)
}

// Task returns a copy of the task at idx.
func (l *Ledger) Task(idx int) Task {
	return l.tasks[idx]
}

// Tasks returns a copy of all tasks in order.
func (l *Ledger) Tasks() []Task {
	out := make([]Task, len(l.tasks))
	copy(out, l.tasks)
	return out
}

// Next returns the index of the first pending or in-progress task at or after
// from, or -1 when none remains.
func (l *Ledger) Next(from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(l.tasks); i++ {
		if !l.tasks[i].Status.IsResolved() {
			return i
		}
	}
	return -1
}

// Start marks the task in progress. Starting a task that is already in
// progress is a no-op.
func (l *Ledger) Start(idx int) error {
	t := &l.tasks[idx]
	switch t.Status {
	case TaskPending:
		t.Status = TaskInProgress
		return nil
	case TaskInProgress:
		return nil
	default:
		return l.invalid(t, TaskInProgress)
	}
}

// Complete marks an in-progress task done.
func (l *Ledger) Complete(idx int) error {
	t := &l.tasks[idx]
	if t.Status != TaskInProgress {
		return l.invalid(t, TaskDone)
	}
	t.Status = TaskDone
	return nil
}

// Fail marks an in-progress task failed.
func (l *Ledger) Fail(idx int) error {
	t := &l.tasks[idx]
	if t.Status != TaskInProgress {
		return l.invalid(t, TaskFailed)
	}
	t.Status = TaskFailed
	return nil
}

// ChargeAttempt counts one attempt against an in-progress task. When the
// attempt budget is reached the task is marked failed and failed is true.
func (l *Ledger) ChargeAttempt(idx int) (failed bool, err error) {
	t := &l.tasks[idx]
	if t.Status != TaskInProgress {
		return false, fmt.Errorf("%w: cannot charge attempt on %s task %d", ErrInvalidTaskTransition, t.Status, t.ID)
	}
	t.Attempts++
	if t.Attempts >= l.attemptBudget {
		t.Status = TaskFailed
		return true, nil
	}
	return false, nil
}

// Unresolved returns the tasks still pending or in progress.
func (l *Ledger) Unresolved() []Task {
	var out []Task
	for _, t := range l.tasks {
		if !t.Status.IsResolved() {
			out = append(out, t)
		}
	}
	return out
}

func (l *Ledger) invalid(t *Task, to TaskStatus) error {
	return fmt.Errorf("%w: task %d %s -> %s", ErrInvalidTaskTransition, t.ID, t.Status, to)
}
