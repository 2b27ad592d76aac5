package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

func invalidArgs(tool, format string, a ...any) *orchestrator.ToolError {
	return orchestrator.NewToolError(orchestrator.ToolErrorInvalidArgs, tool, format, a...)
}

// stringArg returns a trimmed, non-empty string argument.
func stringArg(tool string, args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", invalidArgs(tool, "missing required argument %q", name)
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalidArgs(tool, "argument %q cannot be empty", name)
	}
	return s, nil
}

// intArg returns an optional integer argument, accepting JSON numbers and numeric strings.
func intArg(tool string, args map[string]any, name string, def int) (int, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, invalidArgs(tool, "argument %q must be an integer", name)
		}
		return int(n), nil
	case int:
		return n, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, invalidArgs(tool, "argument %q must be an integer", name)
		}
		return i, nil
	default:
		return 0, invalidArgs(tool, "argument %q must be an integer", name)
	}
}
