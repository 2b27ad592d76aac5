package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

// maxResponseSize caps upstream response bodies.
const maxResponseSize = 2 * 1024 * 1024

const defaultHTTPTimeout = 20 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// do executes req and returns the body of a 2xx response. Failures are typed
// tool errors.
func do(client *http.Client, tool string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &orchestrator.ToolError{Kind: orchestrator.ToolErrorTimeout, Tool: tool, Message: "request timed out", Cause: err}
		}
		return nil, &orchestrator.ToolError{Kind: orchestrator.ToolErrorUpstream, Tool: tool, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &orchestrator.ToolError{Kind: orchestrator.ToolErrorUpstream, Tool: tool, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, orchestrator.NewToolError(orchestrator.ToolErrorUpstream, tool,
			"upstream returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

type timeoutError interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	var te timeoutError
	return errors.As(err, &te) && te.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func newRequest(ctx context.Context, tool, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &orchestrator.ToolError{Kind: orchestrator.ToolErrorUpstream, Tool: tool, Message: fmt.Sprintf("invalid request to %s", url), Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "dexter/1.0")
	return req, nil
}
