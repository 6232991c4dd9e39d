// Package catchup owns the task model, the in-memory registry, and the
// orchestrator that drives a submission through extract, transcribe,
// and summarize.
package catchup

import (
	"time"
)

// State is the task lifecycle position.
type State string

const (
	StateInitialized  State = "initialized"
	StateExtracting   State = "extracting"
	StateTranscribing State = "transcribing"
	StateSummarizing  State = "summarizing"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Result is the deliverable of a completed task.
type Result struct {
	Summary           string  `json:"summary"`
	FullTranscript    string  `json:"fullTranscript"`
	SegmentsProcessed int     `json:"segmentsProcessed"`
	DurationMinutes   int     `json:"duration"`
	ProcessingSeconds float64 `json:"processingTime"`
	StreamURL         string  `json:"streamUrl"`
	DeepLink          string  `json:"deepLink,omitempty"`
}

// resultTranscriptCap bounds the transcript carried in the result.
const resultTranscriptCap = 5000

// Task is one catch-up request moving through the pipeline.
type Task struct {
	ID              string    `json:"task_id"`
	State           State     `json:"status"`
	Progress        int       `json:"progress"`
	Message         string    `json:"message"`
	StreamURL       string    `json:"stream_url"`
	UploadID        string    `json:"upload_id,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	UserID          string    `json:"user_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
	ErrorCode       string    `json:"error_code,omitempty"`
	Result          *Result   `json:"result,omitempty"`
}

// Snapshot returns a copy safe to hand to readers while the owning
// worker keeps mutating the original under the registry lock.
func (t *Task) Snapshot() Task {
	copied := *t
	if t.Result != nil {
		r := *t.Result
		copied.Result = &r
	}
	return copied
}
