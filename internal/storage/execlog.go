// Package storage persists execution records and bus events.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dohr-michael/toolhost/internal/executor"
	"github.com/dohr-michael/toolhost/internal/registry"
)

const execLogSchema = `
CREATE TABLE IF NOT EXISTS executions (
	id         TEXT PRIMARY KEY,
	tool_id    TEXT NOT NULL,
	caller     TEXT NOT NULL,
	arguments  TEXT,
	success    INTEGER NOT NULL,
	error_code TEXT,
	error_text TEXT,
	started_at TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_tool ON executions(tool_id, started_at);
`

// ExecLog is a SQLite-backed execution log. It implements executor.Sink so
// the in-memory history can stream records into it, and keeps the table
// bounded by evicting the oldest rows past maxRows.
type ExecLog struct {
	db      *sql.DB
	maxRows int
}

// OpenExecLog opens (creating if needed) the execution log at path.
// maxRows <= 0 keeps every record.
func OpenExecLog(path string, maxRows int) (*ExecLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open execution log: %w", err)
	}
	if _, err := db.Exec(execLogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure execution log schema: %w", err)
	}

	return &ExecLog{db: db, maxRows: maxRows}, nil
}

// Close closes the underlying database.
func (l *ExecLog) Close() error {
	return l.db.Close()
}

// AppendRecord inserts one record and evicts past the row cap.
func (l *ExecLog) AppendRecord(rec executor.Record) error {
	args := ""
	if rec.Arguments != nil {
		if data, err := json.Marshal(rec.Arguments); err == nil {
			args = string(data)
		}
	}

	_, err := l.db.Exec(`
		INSERT INTO executions (id, tool_id, caller, arguments, success, error_code, error_text, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.ToolID,
		string(rec.Caller),
		args,
		boolToInt(rec.Success),
		rec.ErrorCode,
		rec.Error,
		rec.StartedAt.UTC(),
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert execution record: %w", err)
	}

	if l.maxRows > 0 {
		_, err = l.db.Exec(`
			DELETE FROM executions WHERE rowid IN (
				SELECT rowid FROM executions ORDER BY started_at DESC, rowid DESC LIMIT -1 OFFSET ?
			)
		`, l.maxRows)
		if err != nil {
			return fmt.Errorf("evict execution records: %w", err)
		}
	}
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	ToolID string
	Caller registry.Caller
	Since  time.Time
	Limit  int
}

// List returns matching records, newest first.
func (l *ExecLog) List(ctx context.Context, filter Filter) ([]executor.Record, error) {
	query := `
		SELECT id, tool_id, caller, arguments, success, error_code, error_text, started_at, duration_ms
		FROM executions
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.ToolID != "" {
		addFilter("tool_id = ?", filter.ToolID)
	}
	if filter.Caller != "" {
		addFilter("caller = ?", string(filter.Caller))
	}
	if !filter.Since.IsZero() {
		addFilter("started_at >= ?", filter.Since.UTC())
	}
	query += where + " ORDER BY started_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query execution log: %w", err)
	}
	defer rows.Close()

	var records []executor.Record
	for rows.Next() {
		var (
			rec        executor.Record
			caller     string
			argsJSON   string
			success    int
			durationMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.ToolID, &caller, &argsJSON, &success,
			&rec.ErrorCode, &rec.Error, &rec.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan execution record: %w", err)
		}
		rec.Caller = registry.Caller(caller)
		rec.Success = success != 0
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if argsJSON != "" {
			_ = json.Unmarshal([]byte(argsJSON), &rec.Arguments)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of retained records.
func (l *ExecLog) Count(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM executions`).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ executor.Sink = (*ExecLog)(nil)
