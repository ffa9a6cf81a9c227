// Package falqueue provides an HTTP client for fal.run-style model
// endpoints: synchronous runs for fast models and a queue API
// (submit/status/result) for long-running video and music jobs.
package falqueue

// Status represents the status of a queued request as reported by the
// provider.
type Status string

// Queue request statuses aligned with the provider API.
const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusError      Status = "ERROR"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError:
		return true
	default:
		return false
	}
}

// submitResponse is the response from enqueueing a request.
type submitResponse struct {
	RequestID  string `json:"request_id"`
	ResponseID string `json:"response_id,omitempty"`
	StatusURL  string `json:"status_url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StatusResult is the decoded outcome of a status poll. Payload keeps the
// raw decoded body because completed payloads have no stable shape and are
// handed to the extraction layer as-is.
type StatusResult struct {
	// Status is the provider-reported queue status.
	Status Status
	// ResponseURL, when present, points at a secondary document holding
	// the actual output. Fetching it requires provider credentials.
	ResponseURL string
	// Error is the provider's failure message, when present.
	Error string
	// Payload is the full decoded status body.
	Payload map[string]any
}
