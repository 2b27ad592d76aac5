package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Answerer synthesizes the final answer from the whole output log.
type Answerer struct {
	reasoning ReasoningPort
}

// NewAnswerer creates an answerer.
func NewAnswerer(reasoning ReasoningPort) *Answerer {
	return &Answerer{reasoning: reasoning}
}

// Answer issues one reasoning call. Failures, including a blank answer, wrap
// ErrAnswerSynthesisFailed.
func (a *Answerer) Answer(ctx context.Context, query string, log []OutputEntry, tasks []Task, budgetExhausted bool) (string, error) {
	raw, err := a.reasoning.Complete(ctx, Request{
		Purpose: PurposeAnswer,
		System:  answerSystemPrompt,
		Prompt:  answerPrompt(query, log, tasks, budgetExhausted),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAnswerSynthesisFailed, err)
	}

	answer, err := decodeAnswer(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAnswerSynthesisFailed, err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("%w: empty answer", ErrAnswerSynthesisFailed)
	}
	return strings.TrimSpace(answer), nil
}

func decodeAnswer(raw json.RawMessage) (string, error) {
	var obj struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Answer, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode answer: %w", err)
	}
	return s, nil
}
