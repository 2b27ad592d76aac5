// Package secrets detects and redacts credentials in tool output using the Gitleaks SDK.
//
// A Redactor is built once per process and shared by every run. Detected
// secrets are replaced with [REDACTED:rule-id] markers so the reasoning
// model keeps the shape of the output without ever seeing the value.
package secrets

import "errors"

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)
