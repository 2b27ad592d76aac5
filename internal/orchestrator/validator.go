package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
)

// Verdict is the validator's decision for the active task.
type Verdict string

const (
	VerdictComplete Verdict = "complete"
	VerdictRetry    Verdict = "retry"
)

// Validator judges whether a task's accumulated output addresses it. It keeps
// no state, so equal inputs and equal port responses give equal verdicts.
type Validator struct {
	reasoning ReasoningPort
}

// NewValidator creates a validator.
func NewValidator(reasoning ReasoningPort) *Validator {
	return &Validator{reasoning: reasoning}
}

// Validate issues one reasoning call over task and its outputs. An error wraps
// ErrReasoningFailed; the caller decides how to count it.
func (v *Validator) Validate(ctx context.Context, task Task, outputs []OutputEntry) (Verdict, error) {
	raw, err := v.reasoning.Complete(ctx, Request{
		Purpose: PurposeValidate,
		System:  validateSystemPrompt,
		Prompt:  validatePrompt(task, outputs),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReasoningFailed, err)
	}

	var resp struct {
		Done *bool `json:"done"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode verdict: %w", ErrReasoningFailed, err)
	}
	if resp.Done == nil {
		return "", fmt.Errorf("%w: verdict missing \"done\"", ErrReasoningFailed)
	}
	if *resp.Done {
		return VerdictComplete, nil
	}
	return VerdictRetry, nil
}
