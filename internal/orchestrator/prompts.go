package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
)

const planSystemPrompt = `You are the planning component of a research agent.
Break the user's query into a short ordered list of concrete tasks that can each
be completed with one of the available tools.

Guidelines:
- Prefer 3 to 5 tasks. Use fewer for simple queries.
- Each task must be self-contained and specific (name companies, tickers, dates).
- Do not add a final "summarize" task; the answer is written separately.

Respond with JSON only: {"tasks": ["first task", "second task"]}`

const actSystemPrompt = `You are the execution component of a research agent.
Pick the single tool call that makes the most progress on the current task,
given what earlier tool calls returned.

Rules:
- Use only the tools listed below, with arguments matching their parameters.
- Never repeat a call that just failed or was rejected; change the tool or the arguments.
- If no tool can help, return an empty tool name.

Respond with JSON only: {"tool": "tool_name", "arguments": {"name": "value"}}`

const validateSystemPrompt = `You are the validation component of a research agent.
Decide whether the outputs gathered so far fully address the task.
Judge only the task in front of you, not the overall query.

Respond with JSON only: {"done": true} or {"done": false}`

const answerSystemPrompt = `You are the answer component of a research agent.
Write the final answer to the user's query using only the tool outputs provided.
Do not invent figures or facts that do not appear in the outputs.
If some tasks failed or were never finished, say which information is missing.
Write plain text, concise and well organised.

Respond with JSON only: {"answer": "..."}`

func planPrompt(query string, tools []ToolSpec) string {
	var b strings.Builder
	writeTools(&b, tools)
	fmt.Fprintf(&b, "\nQuery: %s\n", query)
	return b.String()
}

func actPrompt(in ExecutorInput, tools []ToolSpec) string {
	var b strings.Builder
	writeTools(&b, tools)
	fmt.Fprintf(&b, "\nQuery: %s\n", in.Query)
	fmt.Fprintf(&b, "Current task (%d): %s\n", in.Task.ID, in.Task.Description)

	if len(in.Recent) > 0 {
		b.WriteString("\nRecent outputs:\n")
		writeEntries(&b, in.Recent)
	}
	if len(in.Prior) > 0 {
		b.WriteString("\nEarlier attempts on this task:\n")
		writeEntries(&b, in.Prior)
	}
	if len(in.Notes) > 0 {
		b.WriteString("\nRejected calls:\n")
		for _, n := range in.Notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return b.String()
}

func validatePrompt(task Task, outputs []OutputEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", task.Description)
	if len(outputs) == 0 {
		b.WriteString("No outputs were gathered for this task.\n")
		return b.String()
	}
	b.WriteString("Outputs:\n")
	writeEntries(&b, outputs)
	return b.String()
}

func answerPrompt(query string, log []OutputEntry, tasks []Task, budgetExhausted bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nTasks:\n", query)
	for _, t := range tasks {
		fmt.Fprintf(&b, "%d. [%s] %s\n", t.ID, t.Status, t.Description)
	}
	if budgetExhausted {
		b.WriteString("\nThe research stopped early. Treat unfinished tasks as missing information.\n")
	}
	b.WriteString("\nTool outputs:\n")
	if len(log) == 0 {
		b.WriteString("(none)\n")
	}
	writeEntries(&b, log)
	return b.String()
}

func writeTools(b *strings.Builder, tools []ToolSpec) {
	if len(tools) == 0 {
		return
	}
	b.WriteString("Available tools:\n")
	for _, t := range tools {
		fmt.Fprintf(b, "- %s: %s", t.Name, t.Description)
		if len(t.Parameters) > 0 {
			params, _ := json.Marshal(t.Parameters)
			fmt.Fprintf(b, " parameters=%s", params)
		}
		b.WriteString("\n")
	}
}

func writeEntries(b *strings.Builder, entries []OutputEntry) {
	for _, e := range entries {
		switch e.Kind {
		case EntryFailure:
			fmt.Fprintf(b, "- task %d, %s FAILED: %s\n", e.TaskID, toolLabel(e.Tool), e.Error)
		default:
			fmt.Fprintf(b, "- task %d, %s: %s\n", e.TaskID, toolLabel(e.Tool), e.Output)
		}
	}
}

func toolLabel(tool string) string {
	if tool == "" {
		return "no tool"
	}
	return tool
}
