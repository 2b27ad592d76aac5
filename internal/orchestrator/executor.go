package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExecutionKind is the outcome of one Executor invocation.
type ExecutionKind string

const (
	ExecSucceeded     ExecutionKind = "succeeded"
	ExecLoopDetected  ExecutionKind = "loop_detected"
	ExecQuotaExceeded ExecutionKind = "quota_exceeded"
	ExecToolFailed    ExecutionKind = "tool_failed"
)

// Execution is what the Executor reports back. Only ExecSucceeded carries Output.
type Execution struct {
	Kind      ExecutionKind
	Tool      string
	Args      map[string]any
	Canonical string
	Output    string
	Err       error
}

// Invoked reports whether the tool port was actually called.
func (e Execution) Invoked() bool {
	return e.Kind == ExecSucceeded || (e.Kind == ExecToolFailed && e.Canonical != "")
}

// ExecutorInput is everything one Executor invocation may look at. Quota and
// History belong to the run and are mutated through their own methods.
type ExecutorInput struct {
	Query string
	Task  Task
	// Recent is the tail of the output log used as prompt context.
	Recent []OutputEntry
	// Prior holds every entry already recorded for Task.
	Prior []OutputEntry
	// Notes describes calls rejected earlier for Task without reaching the tool.
	Notes   []string
	Quota   *QuotaGuard
	History *InvocationHistory
}

// Executor selects and dispatches one tool call for the active task.
// Every invocation makes exactly one reasoning call and at most one tool call.
type Executor struct {
	reasoning   ReasoningPort
	tools       ToolPort
	specs       []ToolSpec
	redactor    Redactor
	toolTimeout time.Duration
}

// NewExecutor creates an executor. redactor may be nil.
func NewExecutor(reasoning ReasoningPort, tools ToolPort, specs []ToolSpec, redactor Redactor, toolTimeout time.Duration) *Executor {
	return &Executor{
		reasoning:   reasoning,
		tools:       tools,
		specs:       specs,
		redactor:    redactor,
		toolTimeout: toolTimeout,
	}
}

// toolSelection is the structured reasoning response for the action step.
type toolSelection struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	Args      map[string]any `json:"args"`
}

// Execute runs one selection and dispatch cycle.
func (e *Executor) Execute(ctx context.Context, in ExecutorInput) Execution {
	raw, err := e.reasoning.Complete(ctx, Request{
		Purpose: PurposeAct,
		System:  actSystemPrompt,
		Prompt:  actPrompt(in, e.specs),
	})
	if err != nil {
		return Execution{
			Kind: ExecToolFailed,
			Err: &ToolError{
				Kind:    ToolErrorReasoning,
				Message: "tool selection failed",
				Cause:   fmt.Errorf("%w: %w", ErrReasoningFailed, err),
			},
		}
	}

	var sel toolSelection
	if err := json.Unmarshal(raw, &sel); err != nil {
		return Execution{
			Kind: ExecToolFailed,
			Err: &ToolError{
				Kind:    ToolErrorBadSelection,
				Message: "could not decode tool selection",
				Cause:   fmt.Errorf("%w: %w", ErrReasoningFailed, err),
			},
		}
	}
	tool := strings.TrimSpace(sel.Tool)
	args := sel.Arguments
	if args == nil {
		args = sel.Args
	}
	if tool == "" {
		return Execution{
			Kind: ExecToolFailed,
			Args: args,
			Err:  NewToolError(ToolErrorNoSelection, "", "no tool selected for task %d", in.Task.ID),
		}
	}

	canonical, err := CanonicalArgs(args)
	if err != nil {
		return Execution{
			Kind: ExecToolFailed,
			Tool: tool,
			Args: args,
			Err:  &ToolError{Kind: ToolErrorBadSelection, Tool: tool, Message: "arguments are not serializable", Cause: err},
		}
	}

	exec := Execution{Tool: tool, Args: args}
	inv := Invocation{TaskID: in.Task.ID, Tool: tool, Args: canonical}

	if in.History != nil && in.History.IsRepeat(inv) {
		exec.Kind = ExecLoopDetected
		exec.Err = fmt.Errorf("%w: %s%s repeated for task %d", ErrLoopDetected, tool, canonical, in.Task.ID)
		return exec
	}

	if in.Quota != nil {
		if err := in.Quota.Acquire(tool); err != nil {
			exec.Kind = ExecQuotaExceeded
			exec.Err = err
			return exec
		}
	}

	if in.History != nil {
		in.History.Record(inv)
	}
	exec.Canonical = canonical

	output, err := e.invoke(ctx, tool, args)
	if err != nil {
		exec.Kind = ExecToolFailed
		exec.Err = err
		return exec
	}

	exec.Kind = ExecSucceeded
	exec.Output = e.redact(output)
	return exec
}

func (e *Executor) invoke(ctx context.Context, tool string, args map[string]any) (string, error) {
	if e.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.toolTimeout)
		defer cancel()
	}

	output, err := e.tools.Invoke(ctx, tool, args)
	if err == nil {
		return output, nil
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return "", toolErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "", &ToolError{Kind: ToolErrorTimeout, Tool: tool, Message: "tool call timed out", Cause: err}
	}
	return "", &ToolError{Kind: ToolErrorUpstream, Tool: tool, Message: "tool call failed", Cause: err}
}

func (e *Executor) redact(s string) string {
	if e.redactor == nil {
		return s
	}
	return e.redactor.Redact(s)
}
