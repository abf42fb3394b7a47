package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/webpilot/internal/store"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	done := now.Add(5 * time.Second)
	rec := &store.RunRecord{
		RunID:       "run-1",
		Scope:       "tab-1",
		Task:        "find the docs",
		Phase:       "completed",
		Iterations:  3,
		Result:      "found them",
		ToolCalls:   []byte(`[{"action":"navigate","ok":true}]`),
		CreatedAt:   now,
		CompletedAt: &done,
	}
	if err := s.SaveRun(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Task != "find the docs" || got.Phase != "completed" || got.Iterations != 3 {
		t.Errorf("record: %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("completedAt: %v", got.CompletedAt)
	}
	if string(got.ToolCalls) != `[{"action":"navigate","ok":true}]` {
		t.Errorf("toolCalls: %s", got.ToolCalls)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetRun(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestSaveRun_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &store.RunRecord{RunID: "run-1", Task: "t", Phase: "planning", CreatedAt: time.Now()}
	if err := s.SaveRun(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Phase = "failed"
	rec.FailReason = "run cancelled"
	if err := s.SaveRun(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Phase != "failed" || got.FailReason != "run cancelled" {
		t.Errorf("record: %+v", got)
	}
}

func TestListRuns_ScopedNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		scope := "tab-1"
		if i%2 == 1 {
			scope = "tab-2"
		}
		rec := &store.RunRecord{
			RunID:     "run-" + string(rune('a'+i)),
			Scope:     scope,
			Task:      "t",
			Phase:     "completed",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveRun(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx, "tab-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs: %d", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].CreatedAt.After(runs[i-1].CreatedAt) {
			t.Error("runs should be newest first")
		}
	}

	all, err := s.ListRuns(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("limit not applied: %d", len(all))
	}
}
