package http

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

func TestRunRegistry_Lifecycle(t *testing.T) {
	r := NewRunRegistry(0)
	r.Start("a", "query a")
	assert.Equal(t, 1, r.Active())

	r.Update("a", orchestrator.Snapshot{RunID: "a", Phase: orchestrator.PhaseRouting, Steps: 2})
	st, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, 2, st.Snapshot.Steps)

	r.Finish("a", &orchestrator.Result{RunID: "a", Status: orchestrator.StatusDone, Answer: "x"}, nil)
	st, _ = r.Get("a")
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, "x", st.Result.Answer)
	assert.Zero(t, r.Active())

	// Late progress never overwrites a finished run.
	r.Update("a", orchestrator.Snapshot{Steps: 99})
	st, _ = r.Get("a")
	assert.Equal(t, 2, st.Snapshot.Steps)
}

func TestRunRegistry_FinishStates(t *testing.T) {
	r := NewRunRegistry(10)

	r.Start("aborted", "q")
	r.Finish("aborted", &orchestrator.Result{Status: orchestrator.StatusAborted}, orchestrator.ErrPlanningFailed)
	st, _ := r.Get("aborted")
	assert.Equal(t, StateAborted, st.State)
	assert.Equal(t, orchestrator.ErrPlanningFailed.Error(), st.Error)

	r.Start("failed", "q")
	r.Finish("failed", nil, errors.New("boom"))
	st, _ = r.Get("failed")
	assert.Equal(t, StateFailed, st.State)

	r.Finish("unknown", nil, nil)
	_, ok := r.Get("unknown")
	assert.False(t, ok)
}

func TestRunRegistry_EvictsOldestFinished(t *testing.T) {
	r := NewRunRegistry(2)
	r.Start("running", "q")
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("run-%d", i)
		r.Start(id, "q")
		r.Finish(id, &orchestrator.Result{Status: orchestrator.StatusDone}, nil)
	}

	_, ok := r.Get("run-0")
	assert.False(t, ok)
	for _, id := range []string{"run-1", "run-2", "running"} {
		_, ok := r.Get(id)
		assert.True(t, ok, id)
	}
	assert.Equal(t, 1, r.Active())
}
