package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

func runEvents(start time.Time) []orchestrator.Event {
	at := func(s int) time.Time { return start.Add(time.Duration(s) * time.Second) }
	return []orchestrator.Event{
		{RunID: "run-1", Type: orchestrator.EventRunStarted, Phase: orchestrator.PhasePlanning, Message: "Compare AAPL and MSFT", At: at(0)},
		{RunID: "run-1", Type: orchestrator.EventPlanned, Phase: orchestrator.PhaseRouting, Message: "2 tasks", At: at(1)},
		{RunID: "run-1", Type: orchestrator.EventTaskStarted, Phase: orchestrator.PhaseExecuting, TaskID: 1, Message: "Get AAPL price", At: at(1)},
		{RunID: "run-1", Type: orchestrator.EventToolInvoked, Phase: orchestrator.PhaseExecuting, TaskID: 1, Tool: "get_stock_info", Steps: 1, At: at(2)},
		{RunID: "run-1", Type: orchestrator.EventTaskCompleted, Phase: orchestrator.PhaseRouting, TaskID: 1, Steps: 1, At: at(3)},
		{RunID: "run-1", Type: orchestrator.EventTaskStarted, Phase: orchestrator.PhaseExecuting, TaskID: 2, Message: "Get MSFT price", Steps: 1, At: at(3)},
		{RunID: "run-1", Type: orchestrator.EventToolRejected, Phase: orchestrator.PhaseExecuting, TaskID: 2, Tool: "search_web", Message: "quota_exhausted", Steps: 2, At: at(4)},
		{RunID: "run-1", Type: orchestrator.EventToolInvoked, Phase: orchestrator.PhaseExecuting, TaskID: 2, Tool: "get_stock_info", Steps: 3, At: at(5)},
		{RunID: "run-1", Type: orchestrator.EventTaskFailed, Phase: orchestrator.PhaseRouting, TaskID: 2, Message: "attempt budget exhausted", Steps: 4, At: at(5)},
		{RunID: "run-1", Type: orchestrator.EventRunCompleted, Phase: orchestrator.PhaseDone, Steps: 4, At: at(6)},
	}
}

func TestRunView_Apply(t *testing.T) {
	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	v := NewRunView()
	for _, ev := range runEvents(start) {
		v = v.Apply(ev)
	}

	assert.Equal(t, "run-1", v.RunID)
	assert.Equal(t, "Compare AAPL and MSFT", v.Query)
	assert.Equal(t, "2 tasks", v.Planned)
	assert.Equal(t, orchestrator.PhaseDone, v.Phase)
	assert.True(t, v.Finished())
	assert.Equal(t, 4, v.Steps)
	assert.Equal(t, 6*time.Second, v.Elapsed())

	require.Len(t, v.Tasks, 2)
	assert.Equal(t, TaskView{ID: 1, Description: "Get AAPL price", Status: orchestrator.TaskDone}, v.Tasks[0])
	assert.Equal(t, TaskView{ID: 2, Description: "Get MSFT price", Status: orchestrator.TaskFailed}, v.Tasks[1])

	assert.Equal(t, map[string]int{"get_stock_info": 2}, v.ToolCalls)
	assert.Equal(t, 1, v.Rejections)
	assert.Equal(t, []float64{3}, v.ToolGapHistory)
}

func TestRunView_AbortNote(t *testing.T) {
	v := NewRunView().
		Apply(orchestrator.Event{RunID: "r", Type: orchestrator.EventRunStarted, Phase: orchestrator.PhasePlanning}).
		Apply(orchestrator.Event{RunID: "r", Type: orchestrator.EventRunAborted, Phase: orchestrator.PhaseAborted, Message: "planning failed"})

	assert.True(t, v.Finished())
	assert.Equal(t, "planning failed", v.Note)
}

func TestRunView_NewRunResets(t *testing.T) {
	v := NewRunView().
		Apply(orchestrator.Event{RunID: "a", Type: orchestrator.EventToolInvoked, Tool: "calculator"}).
		Apply(orchestrator.Event{RunID: "b", Type: orchestrator.EventRunStarted, Message: "next"})

	assert.Equal(t, "b", v.RunID)
	assert.Equal(t, "next", v.Query)
	assert.Empty(t, v.ToolCalls)
}

func TestRunView_StepsNeverDecrease(t *testing.T) {
	v := NewRunView().
		Apply(orchestrator.Event{RunID: "r", Steps: 5}).
		Apply(orchestrator.Event{RunID: "r", Steps: 3})
	assert.Equal(t, 5, v.Steps)
}

func TestRunView_ToolNames(t *testing.T) {
	v := RunView{ToolCalls: map[string]int{"search_web": 1, "calculator": 3, "get_current_date": 1}}
	assert.Equal(t, []string{"calculator", "get_current_date", "search_web"}, v.ToolNames())
}

func TestAppendToHistory_Bounded(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+5; i++ {
		h = appendToHistory(h, float64(i))
	}
	assert.Len(t, h, historySize)
	assert.Equal(t, float64(5), h[0])
}
