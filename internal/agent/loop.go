package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/webpilot/internal/bus"
	"github.com/nextlevelbuilder/webpilot/internal/providers"
	"github.com/nextlevelbuilder/webpilot/internal/tools"
)

// LoopConfig tunes one Loop instance.
type LoopConfig struct {
	// MaxIterations caps planning entries per run; 0 = DefaultMaxIterations.
	MaxIterations int
	// HistoryWindow caps recent tool calls shown to the planner.
	HistoryWindow int
	// TokenBudget bounds the planning conversation size.
	TokenBudget int
	// SystemPrompt overrides the generated planner system prompt.
	SystemPrompt string
	// Temperature is passed through to the model on every call.
	Temperature float64
}

// Loop owns one run at a time: it drives the phase machine, mediates
// between the planner/evaluator model and the action executor, enforces the
// iteration cap, and owns the run's cancellation signal. A Loop is the only
// writer of its RunState; everyone else gets snapshots.
type Loop struct {
	id        string
	completer providers.Completer
	executor  Executor
	cfg       LoopConfig
	events    *bus.Bus // nil = no event publishing
	scope     string
	logger    *slog.Logger

	mu      sync.Mutex
	state   RunState
	target  string
	cancel  context.CancelFunc
	running bool
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithEvents publishes run lifecycle events to a bus.
func WithEvents(b *bus.Bus) LoopOption {
	return func(l *Loop) { l.events = b }
}

// WithScope tags the loop with the host-level key it belongs to.
func WithScope(scope string) LoopOption {
	return func(l *Loop) { l.scope = scope }
}

// WithLoopLogger sets a custom logger.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

// NewLoop creates a loop instance around a model and an executor.
func NewLoop(id string, completer providers.Completer, executor Executor, cfg LoopConfig, opts ...LoopOption) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	l := &Loop{
		id:        id,
		completer: completer,
		executor:  executor,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// ID identifies this loop instance.
func (l *Loop) ID() string { return l.id }

// State returns a defensive snapshot of the current run state.
func (l *Loop) State() RunState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Snapshot()
}

// IsRunning reports whether a run is in flight.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Stop cancels the outstanding run. It is idempotent and never alters a
// terminal state: before a run, after a run, or repeated calls are no-ops.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes one task to a terminal state and returns the final state.
// The returned error is non-nil only for host mistakes (a second concurrent
// run); everything else — faults, cancellation, exhaustion — is absorbed
// into the terminal state per the error contract.
func (l *Loop) Run(ctx context.Context, req RunRequest) (RunState, error) {
	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = l.cfg.MaxIterations
	}

	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return RunState{}, fmt.Errorf("run already in progress")
	}
	state := NewRunState(req.Task, maxIter)
	if req.RunID != "" {
		state.RunID = req.RunID
	}
	ctx, cancel := context.WithCancel(ctx)
	l.state = state
	l.target = req.TargetID
	l.cancel = cancel
	l.running = true
	l.mu.Unlock()

	defer func() {
		cancel()
		l.mu.Lock()
		l.cancel = nil
		l.running = false
		l.mu.Unlock()
	}()

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = l.cfg.SystemPrompt
	}
	if systemPrompt == "" {
		systemPrompt = buildSystemPrompt(l.executor.Definitions())
	}

	l.logger.Info("run started", "run_id", state.RunID, "task", req.Task, "max_iterations", maxIter)
	l.publish(bus.EventRunStarted, state, nil)

	for shouldContinue(state) {
		if ctx.Err() != nil {
			state = l.setState(fail(state, "run cancelled", time.Now()))
			break
		}

		// Planning.
		raw, err := l.complete(ctx, planningMessages(systemPrompt, state, l.cfg.HistoryWindow, l.cfg.TokenBudget))
		if err != nil {
			if ctx.Err() != nil {
				state = l.setState(fail(state, "run cancelled", time.Now()))
			} else {
				state = l.setState(fail(state, fmt.Sprintf("planning failed: %v", err), time.Now()))
			}
			break
		}
		decision := parsePlannerOutput(raw)
		state = l.setState(enterPlanning(state, decision.Thought, time.Now()))
		l.publish(bus.EventRunPhase, state, nil)

		// Executing. A planner that proposed nothing skips dispatch and
		// the loop proceeds to evaluation with an empty outcome.
		var call *ToolCall
		var fault error
		if decision.Action != nil {
			state = l.setState(enterExecuting(state, *decision.Action, time.Now()))
			l.publish(bus.EventRunPhase, state, nil)
			call, fault = l.dispatch(ctx, state.RunID, *decision.Action)
		}

		state = l.setState(enterEvaluating(state, call, time.Now()))
		if call != nil {
			l.publish(bus.EventRunToolCall, state, map[string]any{
				"action": call.Action,
				"ok":     call.OK,
			})
		}
		if fault != nil {
			// Executor contract violation: recorded above, fatal to the run.
			state = l.setState(fail(state, fault.Error(), time.Now()))
			break
		}
		if ctx.Err() != nil {
			state = l.setState(fail(state, "run cancelled", time.Now()))
			break
		}

		// Evaluating.
		state = l.evaluate(ctx, state, call)
	}

	// Iteration exhaustion is a normal terminal condition, not a fault.
	if !state.Phase.Terminal() {
		state = l.setState(fail(state, capReason(state.MaxIterations), time.Now()))
	}

	switch state.Phase {
	case PhaseCompleted:
		l.logger.Info("run completed", "run_id", state.RunID, "iterations", state.Iterations)
		l.publish(bus.EventRunCompleted, state, map[string]any{"result": state.Result})
	default:
		l.logger.Warn("run failed", "run_id", state.RunID, "iterations", state.Iterations, "reason", state.FailReason)
		l.publish(bus.EventRunFailed, state, map[string]any{"reason": state.FailReason})
	}

	return state.Snapshot(), nil
}

// setState installs the next state under the lock and returns it, so State()
// always observes a consistent value mid-run.
func (l *Loop) setState(next RunState) RunState {
	l.mu.Lock()
	l.state = next
	l.mu.Unlock()
	return next
}

// complete invokes the model once with the loop's temperature.
func (l *Loop) complete(ctx context.Context, msgs []providers.Message) (string, error) {
	return l.completer.Complete(ctx, providers.CompletionRequest{
		Messages:    msgs,
		Temperature: l.cfg.Temperature,
	})
}

// dispatch runs one action and always produces a record, also when the
// executor panics — that panic is a contract violation returned as a fault.
func (l *Loop) dispatch(ctx context.Context, runID string, action ProposedAction) (call *ToolCall, fault error) {
	start := time.Now()
	record := newToolCall(action.Name, action.Args, start)

	defer func() {
		if r := recover(); r != nil {
			record.OK = false
			record.Error = fmt.Sprintf("executor fault: %v", r)
			record.Duration = time.Since(start)
			call = &record
			fault = fmt.Errorf("executor fault in %q: %v", action.Name, r)
		}
	}()

	result := l.executor.Dispatch(ctx, action.Name, action.Args, tools.ExecContext{
		TargetID: l.targetID(),
		RunID:    runID,
		Scope:    l.scope,
	})
	record.Duration = time.Since(start)
	if result == nil {
		record.Error = "executor returned no result"
	} else {
		record.OK = result.OK
		record.Output = result.Output
		record.Error = result.Error
	}
	return &record, nil
}

// targetID is the tab the current run operates on.
func (l *Loop) targetID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target
}

// evaluate decides whether the run is done after one action outcome. With no
// action this iteration the run auto-completes ("nothing to do" is read as
// "task satisfied"). Evaluator unavailability or unparsable output falls
// back deterministically: a failed action stops the run, a successful one
// continues. Cancellation is never absorbed by that fallback.
func (l *Loop) evaluate(ctx context.Context, state RunState, call *ToolCall) RunState {
	if call == nil {
		result := "task satisfied: planner proposed no further action"
		if state.Thought != nil && state.Thought.Text != "" {
			result = state.Thought.Text
		}
		return l.setState(complete(state, result, time.Now()))
	}

	raw, err := l.complete(ctx, evaluationMessages(state, *call))
	if ctx.Err() != nil {
		return l.setState(fail(state, "run cancelled", time.Now()))
	}

	decision, ok := evalDecision{}, false
	if err == nil {
		decision, ok = parseEvaluatorOutput(raw)
	}
	if !ok {
		// Deterministic fallback.
		if !call.OK {
			return l.setState(fail(state, fmt.Sprintf("action %q failed: %s", call.Action, call.Error), time.Now()))
		}
		return state
	}

	if decision.IsComplete {
		result := decision.Result
		if result == "" {
			result = decision.Reasoning
		}
		return l.setState(complete(state, result, time.Now()))
	}
	if !decision.ShouldContinue {
		return l.setState(fail(state, "evaluation decided to stop", time.Now()))
	}
	return state
}

// publish emits a run event when a bus is attached.
func (l *Loop) publish(eventType string, state RunState, payload map[string]any) {
	if l.events == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["phase"] = string(state.Phase)
	payload["iterations"] = state.Iterations
	l.events.Publish(bus.Event{
		Type:    eventType,
		RunID:   state.RunID,
		Scope:   l.scope,
		Payload: payload,
	})
}
