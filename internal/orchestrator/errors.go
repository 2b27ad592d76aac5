package orchestrator

import "errors"

// Fatal conditions. Either one ends the run in ABORTED.
var (
	// ErrPlanningFailed indicates the planner produced no usable task list.
	ErrPlanningFailed = errors.New("planning failed")

	// ErrAnswerSynthesisFailed indicates the final answer could not be produced.
	ErrAnswerSynthesisFailed = errors.New("answer synthesis failed")
)

// Non-fatal conditions. The orchestrator absorbs these by charging attempts.
var (
	// ErrLoopDetected indicates a tool call identical to the previous one for the same task.
	ErrLoopDetected = errors.New("loop detected")

	// ErrQuotaExceeded indicates the tool has no remaining invocations in this run.
	ErrQuotaExceeded = errors.New("tool quota exceeded")

	// ErrToolInvocationFailed indicates the tool could not be selected or returned an error.
	ErrToolInvocationFailed = errors.New("tool invocation failed")

	// ErrReasoningFailed indicates the reasoning port errored or returned an unusable response.
	ErrReasoningFailed = errors.New("reasoning failed")
)

var (
	// ErrEmptyQuery is returned by Run for a blank query.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrInvalidTaskTransition indicates a ledger mutation not allowed from the task's status.
	ErrInvalidTaskTransition = errors.New("invalid task transition")

	// ErrInvalidConfig indicates a run configuration that cannot guarantee termination.
	ErrInvalidConfig = errors.New("invalid run configuration")
)
