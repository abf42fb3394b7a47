package agent

import (
	"fmt"
	"sync"
	"time"
)

// ResolverFunc lazily creates a loop for a scope that has none yet.
type ResolverFunc func(scope string) (Agent, error)

// Router is the host-side registry of loop instances, keyed by scope (one
// per browser tab or session). The loops themselves stay one-object-per-run;
// the router only answers "which loop belongs to which scope".
type Router struct {
	mu       sync.RWMutex
	agents   map[string]Agent
	resolver ResolverFunc

	activeRuns sync.Map // runID → *ActiveRun
}

func NewRouter() *Router {
	return &Router{agents: make(map[string]Agent)}
}

// SetResolver installs a factory for lazily creating loops per scope.
func (r *Router) SetResolver(fn ResolverFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolver = fn
}

// Register adds a loop under its ID.
func (r *Router) Register(ag Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[ag.ID()] = ag
}

// Get returns the loop for a scope, creating one via the resolver when
// configured.
func (r *Router) Get(scope string) (Agent, error) {
	r.mu.RLock()
	ag, ok := r.agents[scope]
	resolver := r.resolver
	r.mu.RUnlock()

	if ok {
		return ag, nil
	}
	if resolver == nil {
		return nil, fmt.Errorf("no agent for scope: %s", scope)
	}

	created, err := resolver(scope)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have resolved the same scope concurrently.
	if existing, ok := r.agents[scope]; ok {
		return existing, nil
	}
	r.agents[scope] = created
	return created, nil
}

// Remove drops a scope's loop, stopping any outstanding run first.
func (r *Router) Remove(scope string) {
	r.mu.Lock()
	ag, ok := r.agents[scope]
	delete(r.agents, scope)
	r.mu.Unlock()
	if ok {
		ag.Stop()
	}
}

// List returns all registered scopes.
func (r *Router) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scopes := make([]string, 0, len(r.agents))
	for scope := range r.agents {
		scopes = append(scopes, scope)
	}
	return scopes
}

// AgentInfo is lightweight metadata about one loop instance.
type AgentInfo struct {
	Scope     string `json:"scope"`
	IsRunning bool   `json:"isRunning"`
	RunID     string `json:"runId,omitempty"`
	Phase     string `json:"phase,omitempty"`
}

// ListInfo returns metadata for all registered loops.
func (r *Router) ListInfo() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]AgentInfo, 0, len(r.agents))
	for scope, ag := range r.agents {
		st := ag.State()
		infos = append(infos, AgentInfo{
			Scope:     scope,
			IsRunning: ag.IsRunning(),
			RunID:     st.RunID,
			Phase:     string(st.Phase),
		})
	}
	return infos
}

// ActiveRun tracks an in-flight run so it can be stopped by ID.
type ActiveRun struct {
	RunID     string
	Scope     string
	StartedAt time.Time
	agent     Agent
}

// RegisterRun records an in-flight run for later aborting.
func (r *Router) RegisterRun(runID, scope string, ag Agent) {
	r.activeRuns.Store(runID, &ActiveRun{
		RunID:     runID,
		Scope:     scope,
		StartedAt: time.Now(),
		agent:     ag,
	})
}

// UnregisterRun removes a finished run from tracking.
func (r *Router) UnregisterRun(runID string) {
	r.activeRuns.Delete(runID)
}

// AbortRun stops a single run by ID. Returns false when no such run is
// tracked; stopping is idempotent either way.
func (r *Router) AbortRun(runID string) bool {
	val, ok := r.activeRuns.Load(runID)
	if !ok {
		return false
	}
	run := val.(*ActiveRun)
	run.agent.Stop()
	r.activeRuns.Delete(runID)
	return true
}

// AbortRunsForScope stops all in-flight runs for a scope and returns their
// IDs.
func (r *Router) AbortRunsForScope(scope string) []string {
	var aborted []string
	r.activeRuns.Range(func(key, val any) bool {
		run := val.(*ActiveRun)
		if run.Scope == scope {
			run.agent.Stop()
			r.activeRuns.Delete(key)
			aborted = append(aborted, run.RunID)
		}
		return true
	})
	return aborted
}

// FindRun returns tracking info for an in-flight run.
func (r *Router) FindRun(runID string) (*ActiveRun, bool) {
	val, ok := r.activeRuns.Load(runID)
	if !ok {
		return nil, false
	}
	return val.(*ActiveRun), true
}

// Agent returns the loop the run belongs to.
func (ar *ActiveRun) Agent() Agent { return ar.agent }
