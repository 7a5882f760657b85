// Package store persists audit records and post publication state.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts the pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL implementation of the audit and resource stores.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var (
	_ schemas.AuditStore         = (*Store)(nil)
	_ schemas.ResourceStateStore = (*Store)(nil)
)

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

func (s *Store) InsertAuditRecord(ctx context.Context, rec *schemas.AuditRecord) (int64, error) {
	details, err := encodeDetails(rec.Details)
	if err != nil {
		return 0, err
	}

	query := `
        INSERT INTO audit_logs (trace_id, action, status, platform, "user", timestamp, evidence_hash, details)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id;
    `
	var id int64
	err = s.pool.QueryRow(ctx, query,
		rec.TraceID, rec.Action, string(rec.Status), nullable(rec.Platform), nullable(rec.User),
		rec.CreatedAt.UTC(), rec.EvidenceHash, details,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert audit record: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateAuditRecord(ctx context.Context, id int64, status schemas.AuditStatus, details map[string]any) error {
	encoded, err := encodeDetails(details)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE audit_logs SET status = $2, details = $3 WHERE id = $1;`,
		id, string(status), encoded,
	)
	if err != nil {
		return fmt.Errorf("failed to update audit record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("audit record %d not found", id)
	}
	return nil
}

func (s *Store) GetAuditRecord(ctx context.Context, id int64) (*schemas.AuditRecord, error) {
	query := `
        SELECT id, trace_id, action, status, platform, "user", timestamp, evidence_hash, details
        FROM audit_logs
        WHERE id = $1;
    `
	rec, err := scanAuditRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("audit record %d not found", id)
		}
		return nil, fmt.Errorf("failed to load audit record %d: %w", id, err)
	}
	return rec, nil
}

func (s *Store) FindAuditRecordsByTraceID(ctx context.Context, traceID string) ([]schemas.AuditRecord, error) {
	query := `
        SELECT id, trace_id, action, status, platform, "user", timestamp, evidence_hash, details
        FROM audit_logs
        WHERE trace_id = $1
        ORDER BY timestamp ASC;
    `
	rows, err := s.pool.Query(ctx, query, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []schemas.AuditRecord
	for rows.Next() {
		rec, err := scanAuditRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// UpdateResourceStatus sets a post's publication status. A "published" status
// also stamps published_at unless the caller supplies its own timestamp in
// extra["published_at"].
func (s *Store) UpdateResourceStatus(ctx context.Context, resourceID int64, status string, extra map[string]any) error {
	var publishedAt *time.Time
	if ts, ok := extra["published_at"].(time.Time); ok {
		utc := ts.UTC()
		publishedAt = &utc
	} else if status == "published" {
		now := time.Now().UTC()
		publishedAt = &now
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE posts SET status = $2, published_at = COALESCE($3, published_at) WHERE id = $1;`,
		resourceID, status, publishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update post %d: %w", resourceID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("post %d not found", resourceID)
	}
	return nil
}

func encodeDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		details = map[string]any{}
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode details: %w", err)
	}
	return encoded, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanAuditRecord(row pgx.Row) (*schemas.AuditRecord, error) {
	var (
		rec      schemas.AuditRecord
		status   string
		platform *string
		user     *string
		details  []byte
	)
	err := row.Scan(&rec.ID, &rec.TraceID, &rec.Action, &status, &platform, &user,
		&rec.CreatedAt, &rec.EvidenceHash, &details)
	if err != nil {
		return nil, err
	}

	rec.Status = schemas.AuditStatus(status)
	if platform != nil {
		rec.Platform = *platform
	}
	if user != nil {
		rec.User = *user
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &rec.Details); err != nil {
			return nil, fmt.Errorf("failed to decode details: %w", err)
		}
	}
	if rec.Details == nil {
		rec.Details = map[string]any{}
	}
	return &rec, nil
}
