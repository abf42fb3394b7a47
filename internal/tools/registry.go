package tools

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"
)

// Action names are checked at registration time so a malformed action is
// caught at startup rather than producing failures mid-run.
var actionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Registry manages action registration and dispatch.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
	limiter *RateLimiter // nil = no rate limiting
	policy  *Policy      // nil = no dispatch policy
}

func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// SetRateLimiter enables per-scope dispatch rate limiting. May be called
// while dispatches are in flight, e.g. on a config reload.
func (r *Registry) SetRateLimiter(rl *RateLimiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter = rl
}

// SetPolicy installs a dispatch policy checked before every action. May be
// called while dispatches are in flight.
func (r *Registry) SetPolicy(p *Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = p
}

// Register adds an action after validating its contract. Invalid names,
// missing parameter schemas, and duplicates are registration errors.
func (r *Registry) Register(a Action) error {
	name := a.Name()
	if !actionNameRe.MatchString(name) {
		return fmt.Errorf("invalid action name %q: must match %s", name, actionNameRe)
	}
	params := a.Parameters()
	if params == nil {
		return fmt.Errorf("action %q has no parameter schema", name)
	}
	if t, _ := params["type"].(string); t != "object" {
		return fmt.Errorf("action %q parameter schema must be a JSON object schema", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[name]; exists {
		return fmt.Errorf("action %q already registered", name)
	}
	r.actions[name] = a
	return nil
}

// MustRegister panics on registration errors. Used during startup wiring
// where a bad action definition should abort the process.
func (r *Registry) MustRegister(a Action) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// Get returns an action by name.
func (r *Registry) Get(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Unregister removes an action by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actions, name)
}

// Dispatch runs an action by name. An unknown name is a recoverable
// per-call failure, never a fault.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any, ec ExecContext) *Result {
	r.mu.RLock()
	a, ok := r.actions[name]
	limiter, policy := r.limiter, r.policy
	r.mu.RUnlock()

	if !ok {
		return FailResult("unknown action: " + name)
	}

	if limiter != nil && ec.Scope != "" {
		if err := limiter.Allow(ec.Scope); err != nil {
			return FailResult(err.Error())
		}
	}

	if policy != nil {
		if err := policy.Check(name, args); err != nil {
			return FailResult(err.Error())
		}
	}

	start := time.Now()
	result := a.Execute(ctx, args, ec)
	duration := time.Since(start)

	if result == nil {
		result = FailResult("action returned no result: " + name)
	}

	slog.Debug("action dispatched",
		"action", name,
		"target", ec.TargetID,
		"duration_ms", duration.Milliseconds(),
		"ok", result.OK,
	)

	return result
}

// Definitions returns planner-facing definitions for all actions, sorted by
// name so the planner prompt stays stable between calls.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.actions))
	for _, a := range r.actions {
		defs = append(defs, Describe(a))
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// List returns all registered action names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered actions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}
