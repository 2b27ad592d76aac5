package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Planner turns a query into task descriptions with one reasoning call.
type Planner struct {
	reasoning ReasoningPort
	tools     []ToolSpec
}

// NewPlanner creates a planner. tools may be nil.
func NewPlanner(reasoning ReasoningPort, tools []ToolSpec) *Planner {
	return &Planner{reasoning: reasoning, tools: tools}
}

// Plan returns the non-empty ordered task descriptions for query.
// Any failure wraps ErrPlanningFailed.
func (p *Planner) Plan(ctx context.Context, query string) ([]string, error) {
	raw, err := p.reasoning.Complete(ctx, Request{
		Purpose: PurposePlan,
		System:  planSystemPrompt,
		Prompt:  planPrompt(query, p.tools),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanningFailed, err)
	}

	tasks, err := decodePlan(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanningFailed, err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: plan contained no tasks", ErrPlanningFailed)
	}
	return tasks, nil
}

// planItem accepts either a bare string or {"description": "..."}.
type planItem struct {
	Description string
}

func (p *planItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Description = s
		return nil
	}
	var obj struct {
		Description string `json:"description"`
		Task        string `json:"task"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	p.Description = obj.Description
	if p.Description == "" {
		p.Description = obj.Task
	}
	return nil
}

func decodePlan(raw json.RawMessage) ([]string, error) {
	var plan struct {
		Tasks []planItem `json:"tasks"`
	}
	if err := json.Unmarshal(raw, &plan); err != nil {
		// A bare array is accepted as well.
		var items []planItem
		if errArr := json.Unmarshal(raw, &items); errArr != nil {
			return nil, fmt.Errorf("%w: decode plan: %w", ErrReasoningFailed, err)
		}
		plan.Tasks = items
	}

	out := make([]string, 0, len(plan.Tasks))
	for _, item := range plan.Tasks {
		if d := strings.TrimSpace(item.Description); d != "" {
			out = append(out, d)
		}
	}
	return out, nil
}
