package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug and carries full prompt and tool payload dumps.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name. Names are case-insensitive and
// "trace" and "warning" are accepted alongside zap's own names.
func LevelFromString(level string) (zapcore.Level, error) {
	switch name := strings.ToLower(strings.TrimSpace(level)); name {
	case "trace":
		return TraceLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	default:
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(name)); err != nil {
			return zapcore.InfoLevel, fmt.Errorf("unknown level %q", level)
		}
		return l, nil
	}
}

// levelName renders TraceLevel as "trace" instead of zap's "Level(-2)".
func levelName(l zapcore.Level) string {
	if l == TraceLevel {
		return "trace"
	}
	return l.String()
}

// encodeLevel is a LevelEncoder that knows about TraceLevel.
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(levelName(l))
}

// encodeCapitalLevel is the console variant of encodeLevel.
func encodeCapitalLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(strings.ToUpper(levelName(l)))
}
