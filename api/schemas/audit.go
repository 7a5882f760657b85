package schemas

import "time"

// -- Audit Trail Schemas --

// AuditStatus tracks the lifecycle of one execution attempt's audit record.
// The mixed casing mirrors the stored historical data and must be kept.
type AuditStatus string

const (
	AuditPending AuditStatus = "pending"
	AuditSuccess AuditStatus = "SUCCESS"
	AuditFailed  AuditStatus = "FAILED"
)

// AuditRecord is the durable record of one execution attempt. The record is
// created in pending state before execution and resolved exactly once.
// EvidenceHash is computed at creation time and deliberately not recomputed
// when Details is merged on resolution; see audit.Trail for the scheme.
type AuditRecord struct {
	ID           int64          `json:"id"`
	TraceID      string         `json:"trace_id"`
	Action       string         `json:"action"`
	Status       AuditStatus    `json:"status"`
	Platform     string         `json:"platform,omitempty"`
	User         string         `json:"user,omitempty"`
	Details      map[string]any `json:"details"`
	EvidenceHash string         `json:"evidence_hash"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditUpdate carries the fields merged into a record at job resolution.
type AuditUpdate struct {
	Status    AuditStatus
	Result    map[string]any
	Error     string
	ErrorCode ErrorCode
}
