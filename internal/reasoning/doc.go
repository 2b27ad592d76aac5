// Package reasoning adapts langchaingo chat models to the orchestrator's
// ReasoningPort.
//
// Every call sends a system and a user message, waits on a shared rate
// limiter, and extracts a single JSON value from the model reply. Markdown
// code fences and leading prose are tolerated; anything that does not contain
// valid JSON is reported as ErrInvalidJSON.
//
// Calls are not resent by default. When MaxRetries is raised, transient
// provider failures (rate limiting, 5xx, connection resets) are resent with
// exponential backoff. All other failures are returned to the orchestrator,
// which owns retry policy.
//
// The anthropic client in langchaingo speaks the completion endpoint and reads
// only one prompt, so its messages are folded into a Human/Assistant
// transcript first.
package reasoning
