package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

type researchInput struct {
	Query string `json:"query" jsonschema:"The research question to answer"`
}

type taskOutput struct {
	ID          int    `json:"id" jsonschema:"1-based task number"`
	Description string `json:"description" jsonschema:"What the task set out to find"`
	Status      string `json:"status" jsonschema:"pending, in_progress, done or failed"`
	Attempts    int    `json:"attempts" jsonschema:"Attempts charged to the task"`
}

type researchOutput struct {
	RunID           string       `json:"run_id" jsonschema:"Identifier of the run"`
	Status          string       `json:"status" jsonschema:"DONE or ABORTED"`
	Answer          string       `json:"answer,omitempty" jsonschema:"Final answer when the run is DONE"`
	Reason          string       `json:"reason,omitempty" jsonschema:"Why the run aborted"`
	Tasks           []taskOutput `json:"tasks,omitempty" jsonschema:"Planned tasks and their final status"`
	Steps           int          `json:"steps" jsonschema:"Global steps consumed"`
	BudgetExhausted bool         `json:"budget_exhausted,omitempty" jsonschema:"True when the step budget or deadline cut the run short"`
}

type listToolsInput struct{}

type listToolsOutput struct {
	Tools []orchestrator.ToolSpec `json:"tools" jsonschema:"Tools the orchestrator may invoke"`
	Count int                     `json:"count" jsonschema:"Number of tools"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "research",
		Description: "Answer a research question. The question is split into tasks, each task is " +
			"resolved with tools such as web search, stock quotes, a calculator and the current date, " +
			"and the answer is written only from the gathered evidence.",
	}, s.handleResearch)

	if s.catalog != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        "list_tools",
			Description: "List the tools available to the research orchestrator.",
		}, s.handleListTools)
	}
}

func (s *Server) handleResearch(ctx context.Context, _ *mcp.CallToolRequest, args researchInput) (*mcp.CallToolResult, researchOutput, error) {
	done := s.metrics.call(ctx, "research")

	query := strings.TrimSpace(args.Query)
	if query == "" {
		done(nil, orchestrator.ErrEmptyQuery)
		return errorResult("query is required"), researchOutput{}, nil
	}

	res, err := s.runner.Run(ctx, query)
	done(res, err)
	if res == nil {
		s.logger.Error(ctx, "research run failed", zap.Error(err))
		return errorResult(fmt.Sprintf("research failed: %v", err)), researchOutput{}, nil
	}

	out := toOutput(res)
	if res.Status != orchestrator.StatusDone {
		s.logger.Warn(ctx, "research run aborted", zap.String("run.id", res.RunID), zap.String("reason", res.Reason))
		result := errorResult("research aborted: " + res.Reason)
		result.StructuredContent = out
		return result, out, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: res.Answer},
		},
	}, out, nil
}

func (s *Server) handleListTools(ctx context.Context, _ *mcp.CallToolRequest, _ listToolsInput) (*mcp.CallToolResult, listToolsOutput, error) {
	done := s.metrics.call(ctx, "list_tools")
	specs := s.catalog.Tools()
	done(nil, nil)

	out := listToolsOutput{Tools: specs, Count: len(specs)}
	data, err := json.MarshalIndent(specs, "", "  ")
	if err != nil {
		return nil, listToolsOutput{}, fmt.Errorf("marshal tool specs: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, out, nil
}

func toOutput(res *orchestrator.Result) researchOutput {
	out := researchOutput{
		RunID:           res.RunID,
		Status:          string(res.Status),
		Answer:          res.Answer,
		Reason:          res.Reason,
		Steps:           res.Steps,
		BudgetExhausted: res.BudgetExhausted,
	}
	for _, t := range res.Tasks {
		out.Tasks = append(out.Tasks, taskOutput{
			ID:          t.ID,
			Description: t.Description,
			Status:      string(t.Status),
			Attempts:    t.Attempts,
		})
	}
	return out
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
