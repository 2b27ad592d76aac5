package http

import "github.com/fyrsmithlabs/dexter/internal/orchestrator"

// ResearchRequest is the request body for POST /api/v1/research and POST /api/v1/runs.
type ResearchRequest struct {
	Query string `json:"query"`
}

// RunAccepted is the response body for POST /api/v1/runs.
type RunAccepted struct {
	RunID string `json:"run_id"`
	State State  `json:"state"`
}

// State is the lifecycle state of a run tracked by the server.
type State string

const (
	StateRunning State = "running"
	StateDone    State = "done"
	StateAborted State = "aborted"
	StateFailed  State = "failed"
)

// RunStatus is the response body for GET /api/v1/runs/:id.
type RunStatus struct {
	RunID    string                 `json:"run_id"`
	Query    string                 `json:"query"`
	State    State                  `json:"state"`
	Snapshot *orchestrator.Snapshot `json:"snapshot,omitempty"`
	Result   *orchestrator.Result   `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	ActiveRuns int    `json:"active_runs"`
}
