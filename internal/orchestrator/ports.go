package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Purpose tags a reasoning request with the component that issued it.
type Purpose string

const (
	PurposePlan     Purpose = "plan"
	PurposeAct      Purpose = "act"
	PurposeValidate Purpose = "validate"
	PurposeAnswer   Purpose = "answer"
)

// Request is a single structured-output reasoning call.
type Request struct {
	Purpose Purpose
	System  string
	Prompt  string
}

// ReasoningPort produces a JSON value for a prompt. Any error, including a
// timeout, is treated as a reasoning failure by the caller. Implementations
// must not retry on behalf of the orchestrator beyond their own transport policy.
type ReasoningPort interface {
	Complete(ctx context.Context, req Request) (json.RawMessage, error)
}

// ToolPort invokes a named tool. Tool-level failures should be returned as *ToolError.
type ToolPort interface {
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// ToolCatalog is implemented by tool ports that can describe their tools.
// Descriptions are fed to the planning and action prompts.
type ToolCatalog interface {
	Tools() []ToolSpec
}

// ToolSpec describes a tool for prompting.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []ToolParam `json:"parameters,omitempty"`
}

// ToolParam describes one tool argument.
type ToolParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolErrorKind classifies a ToolError.
type ToolErrorKind string

const (
	ToolErrorUnknownTool  ToolErrorKind = "unknown_tool"
	ToolErrorInvalidArgs  ToolErrorKind = "invalid_arguments"
	ToolErrorUpstream     ToolErrorKind = "upstream"
	ToolErrorTimeout      ToolErrorKind = "timeout"
	ToolErrorNoSelection  ToolErrorKind = "no_selection"
	ToolErrorBadSelection ToolErrorKind = "bad_selection"
	ToolErrorReasoning    ToolErrorKind = "reasoning"
)

// ToolError is a typed tool failure. It matches ErrToolInvocationFailed with errors.Is.
type ToolError struct {
	Kind    ToolErrorKind
	Tool    string
	Message string
	Cause   error
}

// NewToolError creates a ToolError.
func NewToolError(kind ToolErrorKind, tool, format string, args ...any) *ToolError {
	return &ToolError{Kind: kind, Tool: tool, Message: fmt.Sprintf(format, args...)}
}

// Error renders "[tool ]kind: message[: cause]".
func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Tool != "" {
		msg = e.Tool + " " + msg
	}
	if e.Cause != nil {
		if cause := e.Cause.Error(); cause != "" && !strings.Contains(e.Message, cause) {
			msg += ": " + cause
		}
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ToolError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrToolInvocationFailed, e.Cause}
	}
	return []error{ErrToolInvocationFailed}
}

// Redactor scrubs secrets from tool output before it enters the output log.
type Redactor interface {
	Redact(content string) string
}
