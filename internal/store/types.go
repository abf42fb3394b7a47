// Package store persists finished run records for history queries.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// RunRecord is the persisted form of one finished (or in-flight) run.
type RunRecord struct {
	RunID       string          `json:"runId"`
	Scope       string          `json:"scope"`
	Task        string          `json:"task"`
	Phase       string          `json:"phase"`
	Iterations  int             `json:"iterations"`
	Result      string          `json:"result,omitempty"`
	FailReason  string          `json:"failReason,omitempty"`
	ToolCalls   json.RawMessage `json:"toolCalls,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// RunStore persists and queries run records.
type RunStore interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	// ListRuns returns the most recent runs, newest first. An empty scope
	// lists across all scopes.
	ListRuns(ctx context.Context, scope string, limit int) ([]RunRecord, error)
	Close() error
}

// Config selects and configures a store backend.
type Config struct {
	// Backend is "sqlite" (default) or "postgres".
	Backend string `json:"backend"`
	// Path is the SQLite database file.
	Path string `json:"path"`
	// DSN is the Postgres connection string.
	DSN string `json:"dsn"`
}
