package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/webpilot/internal/providers"
	"github.com/nextlevelbuilder/webpilot/internal/tools"
)

// fakeCompleter scripts model responses. The fn receives the request so a
// test can answer planner and evaluator calls differently.
type fakeCompleter struct {
	mu    sync.Mutex
	calls int
	fn    func(req providers.CompletionRequest) (string, error)
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(req)
}

// isEvaluatorCall distinguishes the two prompts the loop sends.
func isEvaluatorCall(req providers.CompletionRequest) bool {
	return len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "judge")
}

// fakeExecutor records dispatches and returns scripted results.
type fakeExecutor struct {
	mu         sync.Mutex
	dispatched []ProposedAction
	fn         func(name string, args map[string]any) *tools.Result
}

func (f *fakeExecutor) Dispatch(ctx context.Context, name string, args map[string]any, ec tools.ExecContext) *tools.Result {
	f.mu.Lock()
	f.dispatched = append(f.dispatched, ProposedAction{Name: name, Args: args})
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(name, args)
	}
	return tools.OKResult("done")
}

func (f *fakeExecutor) Definitions() []tools.Definition {
	return []tools.Definition{{
		Name:        "navigate",
		Description: "go to a url",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}}
}

func (f *fakeExecutor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dispatched)
}

const plannerActionJSONText = `{"thought": "keep going", "confidence": 0.8, "action": {"name": "navigate", "args": {"url": "https://example.com"}}}`

func TestRun_IterationCap(t *testing.T) {
	// Planner always proposes an action, executor always succeeds, evaluator
	// never signals completion: the run must end after exactly maxIterations
	// planning entries, failed, naming the cap.
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		if isEvaluatorCall(req) {
			return `{"isComplete": false, "shouldContinue": true, "reasoning": "not there yet"}`, nil
		}
		return plannerActionJSONText, nil
	}}
	executor := &fakeExecutor{}
	l := NewLoop("t", completer, executor, LoopConfig{MaxIterations: 3})

	final, err := l.Run(context.Background(), RunRequest{Task: "loop forever"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if final.Phase != PhaseFailed {
		t.Errorf("phase: %s", final.Phase)
	}
	if final.Iterations != 3 {
		t.Errorf("iterations: %d", final.Iterations)
	}
	if !strings.Contains(final.FailReason, "iteration cap") || !strings.Contains(final.FailReason, "3") {
		t.Errorf("reason should name the cap: %q", final.FailReason)
	}
	if len(final.ToolCalls) != 3 {
		t.Errorf("tool calls: %d", len(final.ToolCalls))
	}
	if executor.count() != 3 {
		t.Errorf("dispatches: %d", executor.count())
	}
}

func TestRun_FirstActionFailureWithFallback(t *testing.T) {
	// The evaluator is unparsable, so the deterministic fallback applies:
	// the failed first action ends the run, not completed.
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		if isEvaluatorCall(req) {
			return "I cannot say.", nil
		}
		return plannerActionJSONText, nil
	}}
	executor := &fakeExecutor{fn: func(name string, args map[string]any) *tools.Result {
		return tools.FailResult("X")
	}}
	l := NewLoop("t", completer, executor, LoopConfig{MaxIterations: 10})

	final, err := l.Run(context.Background(), RunRequest{Task: "do a thing"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if final.Phase != PhaseFailed {
		t.Errorf("phase: %s", final.Phase)
	}
	if !strings.Contains(final.FailReason, "X") {
		t.Errorf("reason should carry the action error: %q", final.FailReason)
	}
	if final.Iterations != 1 || len(final.ToolCalls) != 1 {
		t.Errorf("iterations=%d toolCalls=%d", final.Iterations, len(final.ToolCalls))
	}
	if final.ToolCalls[0].OK {
		t.Error("record should be failed")
	}
}

func TestRun_FallbackContinuesAfterSuccess(t *testing.T) {
	// Unparsable evaluator + successful action: the run continues into
	// another planning cycle until the cap.
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		if isEvaluatorCall(req) {
			return "hmm", nil
		}
		return plannerActionJSONText, nil
	}}
	l := NewLoop("t", completer, &fakeExecutor{}, LoopConfig{MaxIterations: 2})

	final, _ := l.Run(context.Background(), RunRequest{Task: "t"})
	if final.Iterations != 2 {
		t.Errorf("fallback after success should continue: iterations=%d", final.Iterations)
	}
}

func TestRun_EvaluatorCompletes(t *testing.T) {
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		if isEvaluatorCall(req) {
			return `{"isComplete": true, "shouldContinue": false, "reasoning": "found it", "result": "the answer is 42"}`, nil
		}
		return plannerActionJSONText, nil
	}}
	l := NewLoop("t", completer, &fakeExecutor{}, LoopConfig{MaxIterations: 10})

	final, err := l.Run(context.Background(), RunRequest{Task: "find the answer"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if final.Phase != PhaseCompleted {
		t.Errorf("phase: %s", final.Phase)
	}
	if final.Result != "the answer is 42" {
		t.Errorf("result: %q", final.Result)
	}
	if final.Iterations != 1 || len(final.ToolCalls) != 1 {
		t.Errorf("iterations=%d toolCalls=%d", final.Iterations, len(final.ToolCalls))
	}
	if final.CompletedAt == nil {
		t.Error("completedAt should be set")
	}
}

func TestRun_EvaluatorDecidesToStop(t *testing.T) {
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		if isEvaluatorCall(req) {
			return `{"isComplete": false, "shouldContinue": false, "reasoning": "dead end"}`, nil
		}
		return plannerActionJSONText, nil
	}}
	l := NewLoop("t", completer, &fakeExecutor{}, LoopConfig{MaxIterations: 10})

	final, _ := l.Run(context.Background(), RunRequest{Task: "t"})
	if final.Phase != PhaseFailed {
		t.Errorf("phase: %s", final.Phase)
	}
	if final.FailReason != "evaluation decided to stop" {
		t.Errorf("reason: %q", final.FailReason)
	}
}

func TestRun_NoActionAutoCompletes(t *testing.T) {
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		return `{"thought": "nothing left to do", "action": null}`, nil
	}}
	executor := &fakeExecutor{}
	l := NewLoop("t", completer, executor, LoopConfig{MaxIterations: 10})

	final, _ := l.Run(context.Background(), RunRequest{Task: "t"})
	if final.Phase != PhaseCompleted {
		t.Errorf("phase: %s", final.Phase)
	}
	if final.Result != "nothing left to do" {
		t.Errorf("result: %q", final.Result)
	}
	if executor.count() != 0 {
		t.Error("no action should be dispatched")
	}
	if len(final.ToolCalls) != 0 {
		t.Error("no record should be appended")
	}
}

func TestRun_HeuristicActionReachesExecutor(t *testing.T) {
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		if isEvaluatorCall(req) {
			return `{"isComplete": true, "shouldContinue": false, "result": "done"}`, nil
		}
		return "I will navigate to https://example.com", nil
	}}
	executor := &fakeExecutor{}
	l := NewLoop("t", completer, executor, LoopConfig{MaxIterations: 10})

	if _, err := l.Run(context.Background(), RunRequest{Task: "t"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	executor.mu.Lock()
	defer executor.mu.Unlock()
	if len(executor.dispatched) != 1 {
		t.Fatalf("dispatches: %d", len(executor.dispatched))
	}
	got := executor.dispatched[0]
	if got.Name != "navigate" || got.Args["url"] != "https://example.com" {
		t.Errorf("dispatched: %+v", got)
	}
}

func TestRun_PlannerErrorFailsRun(t *testing.T) {
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		return "", errors.New("connection refused")
	}}
	l := NewLoop("t", completer, &fakeExecutor{}, LoopConfig{MaxIterations: 10})

	final, _ := l.Run(context.Background(), RunRequest{Task: "t"})
	if final.Phase != PhaseFailed {
		t.Errorf("phase: %s", final.Phase)
	}
	if !strings.Contains(final.FailReason, "planning failed") {
		t.Errorf("reason: %q", final.FailReason)
	}
}

func TestRun_ExecutorPanicIsFatalButRecorded(t *testing.T) {
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		return plannerActionJSONText, nil
	}}
	executor := &fakeExecutor{fn: func(name string, args map[string]any) *tools.Result {
		panic("contract violation")
	}}
	l := NewLoop("t", completer, executor, LoopConfig{MaxIterations: 10})

	final, err := l.Run(context.Background(), RunRequest{Task: "t"})
	if err != nil {
		t.Fatalf("run should absorb the fault into the state: %v", err)
	}
	if final.Phase != PhaseFailed {
		t.Errorf("phase: %s", final.Phase)
	}
	if !strings.Contains(final.FailReason, "contract violation") {
		t.Errorf("reason: %q", final.FailReason)
	}
	if len(final.ToolCalls) != 1 || final.ToolCalls[0].OK {
		t.Error("a failed record must be appended before the fault propagates")
	}
}

func TestStop_Idempotent(t *testing.T) {
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		return `{"thought": "done", "action": null}`, nil
	}}
	l := NewLoop("t", completer, &fakeExecutor{}, LoopConfig{MaxIterations: 10})

	// Before any run.
	l.Stop()
	l.Stop()

	final, err := l.Run(context.Background(), RunRequest{Task: "t"})
	if err != nil {
		t.Fatalf("run after early stop: %v", err)
	}
	if final.Phase != PhaseCompleted {
		t.Errorf("phase: %s", final.Phase)
	}

	// After the run finished: never alters a terminal state.
	l.Stop()
	l.Stop()
	if got := l.State(); got.Phase != PhaseCompleted || got.Result != final.Result {
		t.Error("stop after completion must not change the terminal state")
	}
}

func TestStop_CancelsInFlightRun(t *testing.T) {
	started := make(chan struct{})
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		return plannerActionJSONText, nil
	}}
	executor := &fakeExecutor{fn: func(name string, args map[string]any) *tools.Result {
		close(started)
		time.Sleep(200 * time.Millisecond)
		return tools.OKResult("slow")
	}}
	l := NewLoop("t", completer, executor, LoopConfig{MaxIterations: 100})

	type outcome struct {
		state RunState
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		st, err := l.Run(context.Background(), RunRequest{Task: "t"})
		done <- outcome{st, err}
	}()

	<-started
	l.Stop()
	l.Stop() // repeated stop never raises

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("run: %v", out.err)
		}
		if out.state.Phase != PhaseFailed {
			t.Errorf("phase: %s", out.state.Phase)
		}
		if out.state.FailReason != "run cancelled" {
			t.Errorf("reason: %q", out.state.FailReason)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	if l.IsRunning() {
		t.Error("loop should not report running after the run ended")
	}
}

func TestStop_DuringEvaluationBypassesFallback(t *testing.T) {
	// The run is stopped while the evaluator call is in flight and the
	// attempted action had failed. Without the cancellation check after the
	// evaluator returns, the deterministic fallback would end the run with
	// the action's error; cancellation must win instead.
	var l *Loop
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		if isEvaluatorCall(req) {
			l.Stop()
			return "unparsable evaluator text", nil
		}
		return plannerActionJSONText, nil
	}}
	executor := &fakeExecutor{fn: func(name string, args map[string]any) *tools.Result {
		return tools.FailResult("element not found")
	}}
	l = NewLoop("t", completer, executor, LoopConfig{MaxIterations: 10})

	final, err := l.Run(context.Background(), RunRequest{Task: "t"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if final.Phase != PhaseFailed {
		t.Errorf("phase: %s", final.Phase)
	}
	if final.FailReason != "run cancelled" {
		t.Errorf("reason: %q, cancellation must not be absorbed by the evaluation fallback", final.FailReason)
	}
	if len(final.ToolCalls) != 1 || final.ToolCalls[0].OK {
		t.Error("the failed attempt must still be recorded")
	}
}

func TestRun_SecondConcurrentRunRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		close(started)
		<-release
		return `{"thought": "ok", "action": null}`, nil
	}}
	l := NewLoop("t", completer, &fakeExecutor{}, LoopConfig{MaxIterations: 10})

	go l.Run(context.Background(), RunRequest{Task: "first"}) //nolint:errcheck
	<-started

	if _, err := l.Run(context.Background(), RunRequest{Task: "second"}); err == nil {
		t.Error("second concurrent run should be rejected")
	}
	close(release)
}

func TestState_SnapshotDuringRun(t *testing.T) {
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		if isEvaluatorCall(req) {
			return `{"isComplete": true, "shouldContinue": false, "result": "ok"}`, nil
		}
		return plannerActionJSONText, nil
	}}
	l := NewLoop("t", completer, &fakeExecutor{}, LoopConfig{MaxIterations: 10})

	final, _ := l.Run(context.Background(), RunRequest{Task: "t"})

	snap := l.State()
	snap.Task = "mutated"
	snap.ToolCalls = append(snap.ToolCalls, ToolCall{ID: "fake"})

	again := l.State()
	if again.Task != final.Task || len(again.ToolCalls) != len(final.ToolCalls) {
		t.Error("mutating a snapshot must not affect internal state")
	}
}

func TestRun_RunIDOverride(t *testing.T) {
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		return `{"thought": "ok", "action": null}`, nil
	}}
	l := NewLoop("t", completer, &fakeExecutor{}, LoopConfig{})

	final, _ := l.Run(context.Background(), RunRequest{Task: "t", RunID: "run-abc"})
	if final.RunID != "run-abc" {
		t.Errorf("runID: %q", final.RunID)
	}
}

func TestRun_FreshStatePerInvocation(t *testing.T) {
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		return `{"thought": "ok", "action": null}`, nil
	}}
	l := NewLoop("t", completer, &fakeExecutor{}, LoopConfig{})

	first, _ := l.Run(context.Background(), RunRequest{Task: "one"})
	second, _ := l.Run(context.Background(), RunRequest{Task: "two"})

	if first.RunID == second.RunID {
		t.Error("each run must get a fresh state")
	}
	if second.Task != "two" || second.Iterations != 1 {
		t.Errorf("second run state: %+v", second)
	}
}

func TestRun_ToolCallRecordFields(t *testing.T) {
	completer := &fakeCompleter{fn: func(req providers.CompletionRequest) (string, error) {
		if isEvaluatorCall(req) {
			return `{"isComplete": true, "shouldContinue": false, "result": "ok"}`, nil
		}
		return plannerActionJSONText, nil
	}}
	executor := &fakeExecutor{fn: func(name string, args map[string]any) *tools.Result {
		return tools.OKResult(fmt.Sprintf("visited %v", args["url"]))
	}}
	l := NewLoop("t", completer, executor, LoopConfig{MaxIterations: 10})

	final, _ := l.Run(context.Background(), RunRequest{Task: "t"})
	if len(final.ToolCalls) != 1 {
		t.Fatalf("tool calls: %d", len(final.ToolCalls))
	}
	tc := final.ToolCalls[0]
	if tc.ID == "" || tc.Action != "navigate" || !tc.OK {
		t.Errorf("record: %+v", tc)
	}
	if tc.Output != "visited https://example.com" {
		t.Errorf("output: %q", tc.Output)
	}
	if tc.StartedAt.IsZero() {
		t.Error("startedAt should be set")
	}
}
