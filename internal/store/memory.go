package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hkanersen/autopub-cli/api/schemas"
)

// Memory is an in-process store used when no database is configured, for
// demo runs and tests. Writes are serialized per store; records are copied
// on the way in and out so callers never share map instances.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	audit  map[int64]*schemas.AuditRecord
	posts  map[int64]*postState
}

type postState struct {
	Status      string
	PublishedAt *time.Time
}

var (
	_ schemas.AuditStore         = (*Memory)(nil)
	_ schemas.ResourceStateStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		nextID: 1,
		audit:  make(map[int64]*schemas.AuditRecord),
		posts:  make(map[int64]*postState),
	}
}

func (m *Memory) InsertAuditRecord(_ context.Context, rec *schemas.AuditRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++

	stored := *rec
	stored.ID = id
	stored.Details = copyDetails(rec.Details)
	m.audit[id] = &stored
	return id, nil
}

func (m *Memory) UpdateAuditRecord(_ context.Context, id int64, status schemas.AuditStatus, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.audit[id]
	if !ok {
		return fmt.Errorf("audit record %d not found", id)
	}
	rec.Status = status
	rec.Details = copyDetails(details)
	return nil
}

func (m *Memory) GetAuditRecord(_ context.Context, id int64) (*schemas.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.audit[id]
	if !ok {
		return nil, fmt.Errorf("audit record %d not found", id)
	}
	copied := *rec
	copied.Details = copyDetails(rec.Details)
	return &copied, nil
}

func (m *Memory) FindAuditRecordsByTraceID(_ context.Context, traceID string) ([]schemas.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []schemas.AuditRecord
	// Iterate in id order so results follow insertion order.
	for id := int64(1); id < m.nextID; id++ {
		rec, ok := m.audit[id]
		if !ok || rec.TraceID != traceID {
			continue
		}
		copied := *rec
		copied.Details = copyDetails(rec.Details)
		records = append(records, copied)
	}
	return records, nil
}

func (m *Memory) UpdateResourceStatus(_ context.Context, resourceID int64, status string, extra map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.posts[resourceID]
	if !ok {
		state = &postState{}
		m.posts[resourceID] = state
	}
	state.Status = status
	if ts, ok := extra["published_at"].(time.Time); ok {
		utc := ts.UTC()
		state.PublishedAt = &utc
	} else if status == "published" {
		now := time.Now().UTC()
		state.PublishedAt = &now
	}
	return nil
}

// ResourceStatus reports the recorded state of a post, for status queries
// and tests.
func (m *Memory) ResourceStatus(resourceID int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.posts[resourceID]
	if !ok {
		return "", false
	}
	return state.Status, true
}

func copyDetails(details map[string]any) map[string]any {
	copied := make(map[string]any, len(details))
	for k, v := range details {
		copied[k] = v
	}
	return copied
}
