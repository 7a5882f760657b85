// Package audit maintains the tamper-evidence trail for execution attempts.
// Records are created in pending state before an attempt runs and resolved
// exactly once; the integrity hash is fixed at creation time.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
)

// canonicalJSON serializes maps with sorted keys so the hash input is stable
// across process restarts. Changing this breaks verification of stored records.
var canonicalJSON = jsoniter.Config{SortMapKeys: true}.Froze()

const hashFailure = "hash_error"

// Trail records and resolves audit entries against a durable store.
type Trail struct {
	store  schemas.AuditStore
	logger *zap.Logger
	now    func() time.Time
}

func New(store schemas.AuditStore, logger *zap.Logger) *Trail {
	return &Trail{
		store:  store,
		logger: logger.Named("audit"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a pending record for one execution attempt. The evidence hash
// is computed here, over the pending-state fields, and never again: Update
// deliberately leaves it untouched so that Verify attests to what the record
// looked like when the attempt started.
func (t *Trail) Create(ctx context.Context, traceID, action string, payload map[string]any, user, platform string) (*schemas.AuditRecord, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	rec := &schemas.AuditRecord{
		TraceID:   traceID,
		Action:    action,
		Status:    schemas.AuditPending,
		Platform:  platform,
		User:      user,
		Details:   payload,
		CreatedAt: t.now(),
	}
	rec.EvidenceHash = t.Hash(rec)

	id, err := t.store.InsertAuditRecord(ctx, rec)
	if err != nil {
		t.logger.Warn("Failed to persist audit record",
			zap.String("trace_id", traceID),
			zap.Error(err))
		return nil, fmt.Errorf("inserting audit record: %w", err)
	}
	rec.ID = id
	return rec, nil
}

// Update resolves a record: the outcome fields are merged into details and
// the status is replaced. The evidence hash is not recomputed.
func (t *Trail) Update(ctx context.Context, id int64, upd schemas.AuditUpdate) (*schemas.AuditRecord, error) {
	rec, err := t.store.GetAuditRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading audit record %d: %w", id, err)
	}

	if rec.Details == nil {
		rec.Details = map[string]any{}
	}
	if upd.Result != nil {
		rec.Details["result"] = upd.Result
	}
	if upd.Error != "" {
		rec.Details["error"] = upd.Error
	}
	if upd.ErrorCode != "" {
		rec.Details["error_code"] = string(upd.ErrorCode)
	}
	rec.Details["updated_at"] = t.now().Format(time.RFC3339)
	rec.Status = upd.Status

	if err := t.store.UpdateAuditRecord(ctx, id, rec.Status, rec.Details); err != nil {
		return nil, fmt.Errorf("updating audit record %d: %w", id, err)
	}
	return rec, nil
}

// Verify recomputes the canonical hash from the record's current fields and
// compares it to the stored evidence hash. For a record that has been
// resolved via Update this reports false, since the hash was fixed at
// creation time over the pending-state fields.
func (t *Trail) Verify(rec *schemas.AuditRecord) bool {
	return t.Hash(rec) == rec.EvidenceHash
}

// Hash computes the canonical integrity hash of a record.
func (t *Trail) Hash(rec *schemas.AuditRecord) string {
	h, err := CanonicalHash(rec)
	if err != nil {
		t.logger.Error("Failed to serialize audit details for hashing", zap.Error(err))
		return hashFailure
	}
	return h
}

// CanonicalHash computes the integrity hash of a record:
// sha256("{trace_id}:{action}:{status}:{platform}:{details}") where details
// is the sorted-key JSON encoding of the details map.
func CanonicalHash(rec *schemas.AuditRecord) (string, error) {
	details := rec.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := canonicalJSON.MarshalToString(details)
	if err != nil {
		return "", fmt.Errorf("serializing details: %w", err)
	}
	input := fmt.Sprintf("%s:%s:%s:%s:%s", rec.TraceID, rec.Action, rec.Status, rec.Platform, detailsJSON)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:]), nil
}

// VerifyLegacy checks a record against the older export format, which hashes
// only "{trace_id}:{action}:{details}" and encodes an empty details map as
// the empty string. Records produced by earlier exports still carry hashes
// in this scheme. Returns the recomputed hash alongside the verdict.
func VerifyLegacy(rec *schemas.AuditRecord) (bool, string) {
	detailsJSON := ""
	if len(rec.Details) > 0 {
		encoded, err := canonicalJSON.MarshalToString(rec.Details)
		if err != nil {
			return false, hashFailure
		}
		detailsJSON = encoded
	}
	input := fmt.Sprintf("%s:%s:%s", rec.TraceID, rec.Action, detailsJSON)
	sum := sha256.Sum256([]byte(input))
	computed := hex.EncodeToString(sum[:])
	return computed == rec.EvidenceHash, computed
}
