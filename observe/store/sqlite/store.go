// Package sqlite persists invocation lifecycle records in a local
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PeriniM/langsmith-bedrock-agents/observe"
	recordstore "github.com/PeriniM/langsmith-bedrock-agents/observe/store"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const defaultLimit = 200

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite record path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create record db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable wal: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize record schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveRecord(ctx context.Context, record observe.Record) error {
	if s == nil || s.db == nil {
		return nil
	}
	record.Normalize()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	attrs, err := json.Marshal(record.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode record attributes: %w", err)
	}
	const q = `
INSERT INTO invocation_records (
  record_id, session_id, agent_id, kind, status, name, error, duration_ms, attributes, timestamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	_, err = s.db.ExecContext(
		ctx,
		q,
		record.ID,
		record.SessionID,
		record.AgentID,
		string(record.Kind),
		string(record.Status),
		record.Name,
		record.Error,
		record.DurationMs,
		string(attrs),
		record.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save invocation record: %w", err)
	}
	return nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID string, query recordstore.ListQuery) ([]observe.Record, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("sessionID is required")
	}
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	const q = `
SELECT record_id, session_id, agent_id, kind, status, name, error, duration_ms, attributes, timestamp
FROM invocation_records
WHERE session_id = ?
ORDER BY timestamp ASC
LIMIT ? OFFSET ?;
`
	rows, err := s.db.QueryContext(ctx, q, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list invocation records: %w", err)
	}
	defer rows.Close()

	out := make([]observe.Record, 0, limit)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invocation records: %w", err)
	}
	return out, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (observe.Record, error) {
	var (
		r      observe.Record
		kind   string
		status string
		attrs  string
		tsRaw  string
	)
	if err := scanner.Scan(
		&r.ID,
		&r.SessionID,
		&r.AgentID,
		&kind,
		&status,
		&r.Name,
		&r.Error,
		&r.DurationMs,
		&attrs,
		&tsRaw,
	); err != nil {
		return observe.Record{}, fmt.Errorf("failed to scan invocation record: %w", err)
	}
	r.Kind = observe.Kind(kind)
	r.Status = observe.Status(status)
	if tsRaw != "" {
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err == nil {
			r.Timestamp = ts
		}
	}
	if attrs != "" {
		_ = json.Unmarshal([]byte(attrs), &r.Attributes)
	}
	r.Normalize()
	return r, nil
}

func (s *Store) AggregateMetrics(ctx context.Context, query recordstore.MetricsQuery) (recordstore.MetricsSummary, error) {
	if s == nil || s.db == nil {
		return recordstore.MetricsSummary{}, nil
	}
	args := []any{}
	where := ""
	if query.Since != nil {
		where = "WHERE timestamp >= ?"
		args = append(args, query.Since.UTC().Format(time.RFC3339Nano))
	}

	q := fmt.Sprintf(`
SELECT
  COALESCE(SUM(CASE WHEN kind = 'invocation' AND status = 'started' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN kind = 'invocation' AND status = 'completed' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN kind = 'invocation' AND status = 'failed' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN kind = 'step' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN kind = 'tool' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN kind = 'tool' AND status = 'failed' THEN 1 ELSE 0 END), 0)
FROM invocation_records
%s;
`, where)

	var summary recordstore.MetricsSummary
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(
		&summary.InvocationsStarted,
		&summary.InvocationsCompleted,
		&summary.InvocationsFailed,
		&summary.StepsTraced,
		&summary.ToolCalls,
		&summary.ToolFailures,
	); err != nil {
		return recordstore.MetricsSummary{}, fmt.Errorf("failed to aggregate record metrics: %w", err)
	}
	return summary, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
