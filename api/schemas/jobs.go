package schemas

import "time"

// -- Job Scheduling Schemas --

// JobState is the scheduler's state machine:
// PENDING -> RUNNING -> {SUCCESS | RETRY -> RUNNING | FAILURE}.
type JobState string

const (
	JobPending JobState = "PENDING"
	JobRunning JobState = "RUNNING"
	JobRetry   JobState = "RETRY"
	JobSuccess JobState = "SUCCESS"
	JobFailure JobState = "FAILURE"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobSuccess || s == JobFailure
}

// JobRequest describes the goal a submitted job should achieve. PostID and
// Platform are optional; when set, the resource state store is updated as the
// job resolves.
type JobRequest struct {
	Goal     string         `json:"goal"`
	Context  map[string]any `json:"context,omitempty"`
	TraceID  string         `json:"trace_id,omitempty"`
	PostID   int64          `json:"post_id,omitempty"`
	Platform string         `json:"platform,omitempty"`
}

// JobStatus is the externally visible view of a job.
type JobStatus struct {
	JobID      string            `json:"job_id"`
	State      JobState          `json:"state"`
	Ready      bool              `json:"ready"`
	Successful bool              `json:"successful"`
	RetryCount int               `json:"retry_count"`
	TraceID    string            `json:"trace_id"`
	Error      string            `json:"error,omitempty"`
	ErrorCode  ErrorCode         `json:"error_code,omitempty"`
	Result     *ExecutionOutcome `json:"result,omitempty"`
}

// -- Lifecycle Events --

// Event is a best-effort lifecycle notification. Publish failures never
// affect job execution.
type Event struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	TraceID   string    `json:"trace_id,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	PostID    int64     `json:"post_id,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WithDefaults fills the fields every published event must carry.
func (e Event) WithDefaults() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Level == "" {
		e.Level = "INFO"
	}
	return e
}
