// Package sqlite implements the run store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/webpilot/internal/store"
)

// RunStore persists runs in SQLite. Safe for concurrent use: WAL mode plus
// a busy timeout handle writer contention.
type RunStore struct {
	db *sql.DB
}

// New opens (or creates) the database at path and migrates the schema.
func New(path string) (*RunStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &RunStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("run store opened", "backend", "sqlite", "path", path)
	return s, nil
}

func (s *RunStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			scope TEXT NOT NULL DEFAULT '',
			task TEXT NOT NULL,
			phase TEXT NOT NULL,
			iterations INTEGER NOT NULL DEFAULT 0,
			result TEXT NOT NULL DEFAULT '',
			fail_reason TEXT NOT NULL DEFAULT '',
			tool_calls TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			completed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_scope ON runs(scope, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (s *RunStore) SaveRun(ctx context.Context, rec *store.RunRecord) error {
	toolCalls := rec.ToolCalls
	if toolCalls == nil {
		toolCalls = []byte("[]")
	}
	var completedAt any
	if rec.CompletedAt != nil {
		completedAt = rec.CompletedAt.Unix()
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(run_id, scope, task, phase, iterations, result, fail_reason, tool_calls, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Scope, rec.Task, rec.Phase, rec.Iterations,
		rec.Result, rec.FailReason, string(toolCalls), rec.CreatedAt.Unix(), completedAt)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, runID string) (*store.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT run_id, scope, task, phase, iterations,
		result, fail_reason, tool_calls, created_at, completed_at
		FROM runs WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return rec, err
}

func (s *RunStore) ListRuns(ctx context.Context, scope string, limit int) ([]store.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT run_id, scope, task, phase, iterations,
		result, fail_reason, tool_calls, created_at, completed_at
		FROM runs`
	args := []any{}
	if scope != "" {
		query += ` WHERE scope = ?`
		args = append(args, scope)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []store.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*store.RunRecord, error) {
	var rec store.RunRecord
	var toolCalls string
	var createdAt int64
	var completedAt sql.NullInt64

	err := row.Scan(&rec.RunID, &rec.Scope, &rec.Task, &rec.Phase, &rec.Iterations,
		&rec.Result, &rec.FailReason, &toolCalls, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	rec.ToolCalls = []byte(toolCalls)
	rec.CreatedAt = time.Unix(createdAt, 0)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		rec.CompletedAt = &t
	}
	return &rec, nil
}
