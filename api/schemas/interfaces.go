package schemas

import (
	"context"
)

// -- LLM Interfaces --

// GenerationOptions holds parameters for controlling LLM generation.
type GenerationOptions struct {
	// Temperature controls the creativity of the response. Lower is more deterministic.
	Temperature float32
	// MaxTokens sets the maximum length of the generated response.
	MaxTokens int
	// ForceJSONFormat indicates to the LLM provider to enforce JSON output mode if available.
	ForceJSONFormat bool
}

// GenerationRequest encapsulates all inputs for a single LLM API call.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Options      GenerationOptions
}

// LLMClient abstracts the language model provider away from the planner.
type LLMClient interface {
	// GenerateResponse sends a structured request to the LLM and returns the text content.
	GenerateResponse(ctx context.Context, req GenerationRequest) (string, error)
}

// -- Browser Interfaces --

// PageSession is one live, exclusively owned automation session against a
// page. Implementations are not safe for concurrent use; a session belongs
// to exactly one execution at a time.
type PageSession interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Wait(ctx context.Context, ms int) error
	// Capture takes an evidence snapshot and returns its reference path.
	Capture(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// SessionManager owns the browser process and hands out scoped sessions.
type SessionManager interface {
	NewSession(ctx context.Context) (PageSession, error)
	Shutdown(ctx context.Context) error
}

// -- Persistence Interfaces --

// AuditStore is the durable persistence for audit records, keyed by a
// surrogate id and queryable by trace id. Implementations must serialize
// writes per record.
type AuditStore interface {
	InsertAuditRecord(ctx context.Context, rec *AuditRecord) (int64, error)
	UpdateAuditRecord(ctx context.Context, id int64, status AuditStatus, details map[string]any) error
	GetAuditRecord(ctx context.Context, id int64) (*AuditRecord, error)
	FindAuditRecordsByTraceID(ctx context.Context, traceID string) ([]AuditRecord, error)
}

// ResourceStateStore updates the publication state of the target resource,
// e.g. marking a post published or failed.
type ResourceStateStore interface {
	UpdateResourceStatus(ctx context.Context, resourceID int64, status string, extra map[string]any) error
}

// -- Eventing --

// EventPublisher delivers lifecycle events. Publishing is fire-and-forget:
// implementations must never block job execution or propagate errors.
type EventPublisher interface {
	Publish(event Event)
}

// -- Orchestration --

// Orchestrator runs a full goal through planning and action execution.
type Orchestrator interface {
	ExecuteGoal(ctx context.Context, goal string, goalCtx map[string]any) *ExecutionOutcome
}
