package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/dexter/internal/logging"
)

func newTestOrchestrator(t *testing.T, reasoning ReasoningPort, tools ToolPort, cfg RunConfig, rec *recorder, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	if rec != nil {
		opts = append(opts, WithProgress(rec.progress))
	}
	o, err := New(reasoning, tools, cfg, opts...)
	require.NoError(t, err)
	return o
}

func succeedingTools() *mockTools {
	tools := &mockTools{}
	tools.On("Invoke", mock.Anything, mock.Anything).Return("tool output", nil)
	return tools
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &mockTools{}, DefaultRunConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(newScriptedReasoning(), nil, DefaultRunConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := DefaultRunConfig()
	cfg.GlobalStepBudget = 0
	_, err = New(newScriptedReasoning(), &mockTools{}, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRun_EmptyQuery(t *testing.T) {
	o := newTestOrchestrator(t, newScriptedReasoning(), &mockTools{}, testConfig(), nil)
	_, err := o.Run(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

// Two tasks, both succeed on the first try.
func TestRun_ScenarioA_HappyPath(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("price of AAPL", "price of MSFT")).
		on(PurposeAct,
			pick("get_stock_info", map[string]any{"ticker": "AAPL"}),
			pick("get_stock_info", map[string]any{"ticker": "MSFT"})).
		on(PurposeValidate, verdict(true), verdict(true)).
		on(PurposeAnswer, answer("AAPL and MSFT prices"))
	tools := succeedingTools()
	rec := &recorder{}

	o := newTestOrchestrator(t, reasoning, tools, testConfig(), rec)
	res, err := o.Run(context.Background(), "compare AAPL and MSFT")
	require.NoError(t, err)

	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, "AAPL and MSFT prices", res.Answer)
	assert.Equal(t, "run-1", res.RunID)
	require.Len(t, res.Tasks, 2)
	for _, task := range res.Tasks {
		assert.Equal(t, TaskDone, task.Status)
		assert.Zero(t, task.Attempts)
	}
	assert.Equal(t, 4, res.Steps)
	assert.False(t, res.BudgetExhausted)

	final := rec.last()
	assert.Equal(t, PhaseDone, final.Phase)
	require.Len(t, final.OutputLog, 2)
	assert.Equal(t, 1, final.OutputLog[0].TaskID)
	assert.Equal(t, 2, final.OutputLog[1].TaskID)
	tools.AssertNumberOfCalls(t, "Invoke", 2)

	assert.Equal(t, []EventType{
		EventRunStarted, EventPlanned,
		EventTaskStarted, EventToolInvoked, EventTaskCompleted,
		EventTaskStarted, EventToolInvoked, EventTaskCompleted,
		EventRunCompleted,
	}, rec.types())
}

// One task: Retry, Retry, then Complete with an attempt budget of 3.
func TestRun_ScenarioB_RetryThenComplete(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("latest NVDA news")).
		on(PurposeAct,
			pick("search_web", map[string]any{"query": "nvda news"}),
			pick("search_web", map[string]any{"query": "nvidia news today"}),
			pick("search_web", map[string]any{"query": "nvidia earnings"})).
		on(PurposeValidate, verdict(false), verdict(false), verdict(true)).
		on(PurposeAnswer, answer("news summary"))

	cfg := testConfig()
	cfg.PerTaskAttemptBudget = 3
	o := newTestOrchestrator(t, reasoning, succeedingTools(), cfg, nil)

	res, err := o.Run(context.Background(), "what is new with nvidia")
	require.NoError(t, err)

	assert.Equal(t, 3, reasoning.calls(PurposeAct), "exactly three executor invocations")
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, TaskDone, res.Tasks[0].Status)
	assert.Equal(t, 2, res.Tasks[0].Attempts)
	assert.Equal(t, StatusDone, res.Status)
}

// The validator never accepts; the task fails at the attempt budget and the run still answers.
func TestRun_ScenarioC_TaskFailsAtBudget(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("impossible task")).
		on(PurposeAct,
			pick("search_web", map[string]any{"query": "one"}),
			pick("search_web", map[string]any{"query": "two"}),
			pick("search_web", map[string]any{"query": "three"})).
		on(PurposeValidate, verdict(false)).
		on(PurposeAnswer, answer("could not find it"))

	cfg := testConfig()
	cfg.PerTaskAttemptBudget = 2
	rec := &recorder{}
	o := newTestOrchestrator(t, reasoning, succeedingTools(), cfg, rec)

	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, "could not find it", res.Answer)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, TaskFailed, res.Tasks[0].Status)
	assert.Equal(t, 2, res.Tasks[0].Attempts)
	assert.Equal(t, 2, reasoning.calls(PurposeAct))
	assert.Contains(t, rec.types(), EventTaskFailed)
	assert.Equal(t, 1, reasoning.calls(PurposeAnswer))
}

// A global budget of one step forces an early answer.
func TestRun_ScenarioD_GlobalBudgetForcesAnswer(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("a", "b", "c")).
		on(PurposeAct, pick("search_web", map[string]any{"query": "a"})).
		on(PurposeValidate, verdict(true)).
		on(PurposeAnswer, answer("partial"))

	cfg := testConfig()
	cfg.GlobalStepBudget = 1
	rec := &recorder{}
	o := newTestOrchestrator(t, reasoning, succeedingTools(), cfg, rec)

	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, "partial", res.Answer)
	assert.Equal(t, 1, res.Steps)
	assert.True(t, res.BudgetExhausted)
	assert.Equal(t, 1, reasoning.calls(PurposeAct)+reasoning.calls(PurposeValidate))
	assert.Contains(t, rec.types(), EventBudgetExhausted)

	require.Len(t, res.Tasks, 3)
	assert.Equal(t, TaskInProgress, res.Tasks[0].Status)
	assert.Equal(t, TaskPending, res.Tasks[1].Status)
	assert.Equal(t, TaskPending, res.Tasks[2].Status)
	assert.Len(t, rec.last().OutputLog, 1)
}

func TestRun_ScenarioE_PlanningFails(t *testing.T) {
	reasoning := newScriptedReasoning().on(PurposePlan, fail(errors.New("model unavailable")))
	tools := &mockTools{}
	o := newTestOrchestrator(t, reasoning, tools, testConfig(), nil)

	res, err := o.Run(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlanningFailed)

	require.NotNil(t, res)
	assert.Equal(t, StatusAborted, res.Status)
	assert.Contains(t, res.Reason, "planning failed")
	assert.Empty(t, res.PartialOutputLog)
	assert.Empty(t, res.Answer)
	assert.Zero(t, res.Steps)
	assert.Zero(t, reasoning.calls(PurposeAct))
	tools.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestRun_PlanFallbackUsesQuery(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan()).
		on(PurposeAct, pick("search_web", map[string]any{"query": "q"})).
		on(PurposeValidate, verdict(true)).
		on(PurposeAnswer, answer("done"))

	cfg := testConfig()
	cfg.PlanFallback = true
	o := newTestOrchestrator(t, reasoning, succeedingTools(), cfg, nil)

	res, err := o.Run(context.Background(), "what is the date")
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "what is the date", res.Tasks[0].Description)
	assert.Equal(t, TaskDone, res.Tasks[0].Status)
}

func TestRun_AnswerFailureAbortsWithPartialLog(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("a")).
		on(PurposeAct, pick("search_web", map[string]any{"query": "a"})).
		on(PurposeValidate, verdict(true)).
		on(PurposeAnswer, fail(errors.New("context length exceeded")))

	o := newTestOrchestrator(t, reasoning, succeedingTools(), testConfig(), nil)
	res, err := o.Run(context.Background(), "q")

	assert.ErrorIs(t, err, ErrAnswerSynthesisFailed)
	require.NotNil(t, res)
	assert.Equal(t, StatusAborted, res.Status)
	require.Len(t, res.PartialOutputLog, 1)
	assert.Equal(t, "tool output", res.PartialOutputLog[0].Output)
	assert.Empty(t, res.Answer)
}

func TestRun_ToolFailureIsRecordedAndCharged(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("compute")).
		on(PurposeAct,
			pick("calculator", map[string]any{"expression": "2*"}),
			pick("calculator", map[string]any{"expression": "2*3"})).
		on(PurposeValidate, verdict(false), verdict(true)).
		on(PurposeAnswer, answer("6"))

	tools := &mockTools{}
	tools.On("Invoke", "calculator", map[string]any{"expression": "2*"}).
		Return("", NewToolError(ToolErrorInvalidArgs, "calculator", "unexpected end of expression")).Once()
	tools.On("Invoke", "calculator", map[string]any{"expression": "2*3"}).Return("6", nil).Once()

	rec := &recorder{}
	o := newTestOrchestrator(t, reasoning, tools, testConfig(), rec)
	res, err := o.Run(context.Background(), "what is 2*3")
	require.NoError(t, err)

	log := rec.last().OutputLog
	require.Len(t, log, 2)
	assert.Equal(t, EntryFailure, log[0].Kind)
	assert.Contains(t, log[0].Error, "unexpected end of expression")
	assert.Equal(t, EntryOutput, log[1].Kind)
	assert.Equal(t, "6", log[1].Output)

	// the failed execution cost one attempt, its Retry verdict did not cost another
	assert.Equal(t, 1, res.Tasks[0].Attempts)
	assert.Equal(t, TaskDone, res.Tasks[0].Status)
	tools.AssertExpectations(t)
}

func TestRun_LoopingModelTerminates(t *testing.T) {
	same := pick("search_web", map[string]any{"query": "same"})
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("a", "b")).
		on(PurposeAct, same).
		on(PurposeValidate, verdict(false)).
		on(PurposeAnswer, answer("best effort"))
	tools := succeedingTools()

	cfg := testConfig()
	cfg.PerTaskAttemptBudget = 3
	rec := &recorder{}
	o := newTestOrchestrator(t, reasoning, tools, cfg, rec)

	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	for _, task := range res.Tasks {
		assert.Equal(t, TaskFailed, task.Status)
		assert.LessOrEqual(t, task.Attempts, cfg.PerTaskAttemptBudget)
	}
	// one real call per task; every repeat was rejected before reaching the tool
	tools.AssertNumberOfCalls(t, "Invoke", 2)
	assert.Contains(t, rec.types(), EventToolRejected)
}

func TestRun_QuotaSharedAcrossTasks(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("a", "b")).
		on(PurposeAct,
			pick("search_web", map[string]any{"query": "a"}),
			pick("search_web", map[string]any{"query": "b"})).
		on(PurposeValidate, verdict(true)).
		on(PurposeAnswer, answer("ok"))
	tools := succeedingTools()

	cfg := testConfig()
	cfg.PerTaskAttemptBudget = 1
	cfg.Quotas = map[string]int{"search_web": 1}
	rec := &recorder{}
	o := newTestOrchestrator(t, reasoning, tools, cfg, rec)

	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, TaskDone, res.Tasks[0].Status)
	assert.Equal(t, TaskFailed, res.Tasks[1].Status, "second task hit the exhausted quota")
	tools.AssertNumberOfCalls(t, "Invoke", 1)

	assert.Equal(t, map[string]int{"search_web": 1}, rec.snaps[0].Quotas)
	assert.Equal(t, map[string]int{"search_web": 0}, rec.last().Quotas)
}

func TestRun_SelectionFailureIsRejectedNotInvoked(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("a")).
		on(PurposeAct,
			fail(errors.New("model unavailable")),
			pick("calculator", map[string]any{"expression": "1+1"})).
		on(PurposeValidate, verdict(false), verdict(true)).
		on(PurposeAnswer, answer("2"))
	tools := succeedingTools()

	rec := &recorder{}
	o := newTestOrchestrator(t, reasoning, tools, testConfig(), rec)
	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)

	var rejected, invoked []Event
	for _, ev := range rec.events {
		switch ev.Type {
		case EventToolRejected:
			rejected = append(rejected, ev)
		case EventToolInvoked:
			invoked = append(invoked, ev)
		}
	}
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Message, "model unavailable")
	require.Len(t, invoked, 1)
	assert.Equal(t, "calculator", invoked[0].Tool)
	tools.AssertNumberOfCalls(t, "Invoke", 1)
}

func TestRun_FreshQuotaPerRun(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("a")).
		on(PurposeAct, pick("search_web", map[string]any{"query": "a"})).
		on(PurposeValidate, verdict(true)).
		on(PurposeAnswer, answer("ok"))
	tools := succeedingTools()

	cfg := testConfig()
	cfg.Quotas = map[string]int{"search_web": 1}
	o := newTestOrchestrator(t, reasoning, tools, cfg, nil)

	for i := 0; i < 2; i++ {
		res, err := o.Run(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, TaskDone, res.Tasks[0].Status)
	}
	tools.AssertNumberOfCalls(t, "Invoke", 2)
}

func TestRun_ValidatorFailureRetriesOnceThenFails(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("a")).
		on(PurposeAct,
			pick("search_web", map[string]any{"query": "1"}),
			pick("search_web", map[string]any{"query": "2"})).
		on(PurposeValidate, fail(errors.New("bad gateway"))).
		on(PurposeAnswer, answer("ok"))

	cfg := testConfig()
	cfg.PerTaskAttemptBudget = 5
	o := newTestOrchestrator(t, reasoning, succeedingTools(), cfg, nil)

	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, reasoning.calls(PurposeValidate))
	assert.Equal(t, 2, reasoning.calls(PurposeAct))
	assert.Equal(t, TaskFailed, res.Tasks[0].Status)
	assert.Equal(t, 1, res.Tasks[0].Attempts)
}

func TestRun_CancelledContextStillAnswers(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("a", "b")).
		on(PurposeAnswer, answer("nothing gathered"))
	tools := &mockTools{}
	o := newTestOrchestrator(t, reasoning, tools, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.Run(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	assert.True(t, res.BudgetExhausted)
	assert.Zero(t, res.Steps)
	assert.Equal(t, "nothing gathered", res.Answer)
	tools.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestRun_DeadlineDuringAnswerKeepsAnswer(t *testing.T) {
	reasoning := slowAnswers{
		scriptedReasoning: newScriptedReasoning().
			on(PurposePlan, plan("price of AAPL")).
			on(PurposeAct, pick("get_stock_info", map[string]any{"ticker": "AAPL"})).
			on(PurposeValidate, verdict(true)).
			on(PurposeAnswer, answer("AAPL trades at 190")),
		delay: 200 * time.Millisecond,
	}
	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond
	cfg.AnswerTimeout = 5 * time.Second
	o := newTestOrchestrator(t, reasoning, succeedingTools(), cfg, nil)

	res, err := o.Run(context.Background(), "AAPL price")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, "AAPL trades at 190", res.Answer)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, TaskDone, res.Tasks[0].Status)
}

func TestRun_AnswerTimeoutBoundsSynthesis(t *testing.T) {
	reasoning := slowAnswers{
		scriptedReasoning: newScriptedReasoning().
			on(PurposePlan, plan("a")).
			on(PurposeAct, pick("calculator", map[string]any{"expression": "1+1"})).
			on(PurposeValidate, verdict(true)).
			on(PurposeAnswer, answer("too late")),
		delay: 5 * time.Second,
	}
	cfg := testConfig()
	cfg.AnswerTimeout = 50 * time.Millisecond
	o := newTestOrchestrator(t, reasoning, succeedingTools(), cfg, nil)

	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, StatusAborted, res.Status)
	assert.Contains(t, res.Reason, "deadline exceeded")
	assert.Len(t, res.PartialOutputLog, 1)
}

func TestRun_RedactsToolOutput(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("a")).
		on(PurposeAct, pick("search_web", map[string]any{"query": "a"})).
		on(PurposeValidate, verdict(true)).
		on(PurposeAnswer, answer("ok"))
	tools := &mockTools{}
	tools.On("Invoke", mock.Anything, mock.Anything).Return("key=secret-token", nil)

	rec := &recorder{}
	o := newTestOrchestrator(t, reasoning, tools, testConfig(), rec, WithRedactor(tokenRedactor{}))
	_, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, "key=[REDACTED]", rec.last().OutputLog[0].Output)
	for _, req := range reasoning.requests {
		assert.NotContains(t, req.Prompt, "secret-token")
	}
}

type failingSink struct{ published int }

func (s *failingSink) Publish(context.Context, Event) error {
	s.published++
	return errors.New("broker down")
}

func TestRun_SinkErrorsDoNotAffectRun(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("a")).
		on(PurposeAct, pick("current_date", nil)).
		on(PurposeValidate, verdict(true)).
		on(PurposeAnswer, answer("today"))
	sink := &failingSink{}
	logger := logging.NewTestLogger()

	o := newTestOrchestrator(t, reasoning, succeedingTools(), testConfig(), nil,
		WithEventSink(sink), WithLogger(logger.Logger))
	res, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, 6, sink.published)
	logger.AssertLogged(t, zapcore.WarnLevel, "event publish failed")
	logger.AssertLogged(t, zapcore.InfoLevel, "run completed")
	logger.AssertField(t, "run started", "run.id", "run-1")
}

func TestRun_RunOptions(t *testing.T) {
	reasoning := newScriptedReasoning().
		on(PurposePlan, plan("a")).
		on(PurposeAct, pick("current_date", nil)).
		on(PurposeValidate, verdict(true)).
		on(PurposeAnswer, answer("today"))
	shared := &recorder{}
	perRun := &recorder{}

	o := newTestOrchestrator(t, reasoning, succeedingTools(), testConfig(), shared)
	res, err := o.Run(context.Background(), "q", WithRunID("fixed-id"), WithRunProgress(perRun.progress))
	require.NoError(t, err)

	assert.Equal(t, "fixed-id", res.RunID)
	assert.Equal(t, shared.types(), perRun.types())
	assert.Equal(t, "fixed-id", perRun.last().RunID)
	assert.Equal(t, PhaseDone, perRun.last().Phase)
}

func TestRun_InvalidRunID(t *testing.T) {
	o := newTestOrchestrator(t, newScriptedReasoning(), &mockTools{}, testConfig(), nil)

	_, err := o.Run(context.Background(), "q", WithRunID("not a valid id"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// adversarialCase drives the run with a model that loops and a tool that always fails.
type adversarialCase struct {
	steps, attempts, tasks int
	sameCall, toolFails    bool
}

func TestRun_SafetyProperties(t *testing.T) {
	var cases []adversarialCase
	for _, steps := range []int{1, 2, 5, 13} {
		for _, attempts := range []int{1, 2, 4} {
			for _, sameCall := range []bool{true, false} {
				cases = append(cases, adversarialCase{
					steps: steps, attempts: attempts, tasks: 3,
					sameCall: sameCall, toolFails: !sameCall,
				})
			}
		}
	}

	for _, c := range cases {
		name := fmt.Sprintf("steps=%d/attempts=%d/same=%t", c.steps, c.attempts, c.sameCall)
		t.Run(name, func(t *testing.T) {
			tasks := make([]string, c.tasks)
			for i := range tasks {
				tasks[i] = fmt.Sprintf("task %d", i+1)
			}
			reasoning := newScriptedReasoning().
				on(PurposePlan, plan(tasks...)).
				on(PurposeValidate, verdict(false)).
				on(PurposeAnswer, answer("best effort"))
			if c.sameCall {
				reasoning.on(PurposeAct, pick("search_web", map[string]any{"query": "again"}))
			} else {
				for i := 0; i < c.steps; i++ {
					reasoning.on(PurposeAct, pick("search_web", map[string]any{"query": fmt.Sprint(i)}))
				}
			}

			tools := &mockTools{}
			if c.toolFails {
				tools.On("Invoke", mock.Anything, mock.Anything).Return("", errors.New("upstream 500"))
			} else {
				tools.On("Invoke", mock.Anything, mock.Anything).Return("partial", nil)
			}

			cfg := testConfig()
			cfg.GlobalStepBudget = c.steps
			cfg.PerTaskAttemptBudget = c.attempts
			rec := &recorder{}
			o := newTestOrchestrator(t, reasoning, tools, cfg, rec)

			res, err := o.Run(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, StatusDone, res.Status)
			assert.LessOrEqual(t, res.Steps, c.steps)
			assert.LessOrEqual(t, reasoning.calls(PurposeAct)+reasoning.calls(PurposeValidate), c.steps)

			failed := map[int]bool{}
			var prevLog []OutputEntry
			for _, snap := range rec.snaps {
				assert.LessOrEqual(t, snap.Steps, c.steps, "step budget")

				inProgress := 0
				for _, task := range snap.Tasks {
					assert.LessOrEqual(t, task.Attempts, c.attempts, "attempt budget")
					if failed[task.ID] {
						assert.Equal(t, TaskFailed, task.Status, "failed task reverted")
					}
					if task.Status == TaskFailed {
						failed[task.ID] = true
					}
					if task.Status == TaskInProgress {
						inProgress++
					}
				}
				assert.LessOrEqual(t, inProgress, 1, "at most one task in progress")

				require.GreaterOrEqual(t, len(snap.OutputLog), len(prevLog), "log shrank")
				if len(prevLog) > 0 {
					assert.Equal(t, prevLog, snap.OutputLog[:len(prevLog)], "log rewritten")
				}
				prevLog = snap.OutputLog
			}
		})
	}
}
