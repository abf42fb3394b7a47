// Package pg implements the run store on Postgres via the pgx driver.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/webpilot/internal/store"
)

// RunStore persists runs in Postgres.
type RunStore struct {
	db *sql.DB
}

// New connects to Postgres and migrates the schema.
func New(dsn string) (*RunStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &RunStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("run store opened", "backend", "postgres")
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
			tool_calls JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
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
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(run_id, scope, task, phase, iterations, result, fail_reason, tool_calls, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			iterations = EXCLUDED.iterations,
			result = EXCLUDED.result,
			fail_reason = EXCLUDED.fail_reason,
			tool_calls = EXCLUDED.tool_calls,
			completed_at = EXCLUDED.completed_at`,
		rec.RunID, rec.Scope, rec.Task, rec.Phase, rec.Iterations,
		rec.Result, rec.FailReason, string(toolCalls), rec.CreatedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, runID string) (*store.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT run_id, scope, task, phase, iterations,
		result, fail_reason, tool_calls, created_at, completed_at
		FROM runs WHERE run_id = $1`, runID)

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

	var rows *sql.Rows
	var err error
	if scope != "" {
		rows, err = s.db.QueryContext(ctx, `SELECT run_id, scope, task, phase, iterations,
			result, fail_reason, tool_calls, created_at, completed_at
			FROM runs WHERE scope = $1 ORDER BY created_at DESC LIMIT $2`, scope, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT run_id, scope, task, phase, iterations,
			result, fail_reason, tool_calls, created_at, completed_at
			FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	}
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
	var toolCalls []byte

	err := row.Scan(&rec.RunID, &rec.Scope, &rec.Task, &rec.Phase, &rec.Iterations,
		&rec.Result, &rec.FailReason, &toolCalls, &rec.CreatedAt, &rec.CompletedAt)
	if err != nil {
		return nil, err
	}
	rec.ToolCalls = toolCalls
	return &rec, nil
}
