// Package methods implements the RPC method groups registered on the
// gateway's method router.
package methods

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/webpilot/internal/agent"
	"github.com/nextlevelbuilder/webpilot/internal/config"
	"github.com/nextlevelbuilder/webpilot/internal/gateway"
	"github.com/nextlevelbuilder/webpilot/internal/store"
	"github.com/nextlevelbuilder/webpilot/pkg/protocol"
)

// RunMethods handles run.start, run.stop, run.state and run.history.
type RunMethods struct {
	agents     *agent.Router
	runs       store.RunStore
	classifier *agent.Classifier
}

func NewRunMethods(agents *agent.Router, runs store.RunStore, classifier *agent.Classifier) *RunMethods {
	return &RunMethods{agents: agents, runs: runs, classifier: classifier}
}

// Register adds run methods to the router.
func (m *RunMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodRunStart, m.handleStart)
	router.Register(protocol.MethodRunStop, m.handleStop)
	router.Register(protocol.MethodRunState, m.handleState)
	router.Register(protocol.MethodRunHistory, m.handleHistory)
}

type runStartParams struct {
	Task          string `json:"task"`
	Scope         string `json:"scope"`
	TargetID      string `json:"targetId"`
	MaxIterations int    `json:"maxIterations"`
}

func (m *RunMethods) handleStart(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params runStartParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid params: "+err.Error()))
		return
	}

	if params.Task == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "task is required"))
		return
	}
	params.Scope = config.NormalizeScope(params.Scope)

	if m.classifier != nil && !m.classifier.NeedsAgent(params.Task) {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrFailedPrecondition,
			"task does not look like a browser task"))
		return
	}

	loop, err := m.agents.Get(params.Scope)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrNotFound, err.Error()))
		return
	}
	if loop.IsRunning() {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrFailedPrecondition,
			"a run is already in progress for scope "+params.Scope))
		return
	}

	runID := uuid.NewString()
	m.agents.RegisterRun(runID, params.Scope, loop)

	// Run asynchronously; lifecycle events reach the client via the event
	// bus. The response acknowledges that the run was accepted.
	go func() {
		defer m.agents.UnregisterRun(runID)

		final, err := loop.Run(context.Background(), agent.RunRequest{
			Task:          params.Task,
			TargetID:      params.TargetID,
			RunID:         runID,
			MaxIterations: params.MaxIterations,
		})
		if err != nil {
			slog.Warn("run rejected", "run_id", runID, "scope", params.Scope, "error", err)
			return
		}
		m.persist(params.Scope, final)
	}()

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"runId":  runID,
		"scope":  params.Scope,
		"status": "started",
	}))
}

// persist writes the terminal state of a run to the store.
func (m *RunMethods) persist(scope string, final agent.RunState) {
	if m.runs == nil {
		return
	}

	toolCalls, err := json.Marshal(final.ToolCalls)
	if err != nil {
		toolCalls = []byte("[]")
	}
	rec := &store.RunRecord{
		RunID:       final.RunID,
		Scope:       scope,
		Task:        final.Task,
		Phase:       string(final.Phase),
		Iterations:  final.Iterations,
		Result:      final.Result,
		FailReason:  final.FailReason,
		ToolCalls:   toolCalls,
		CreatedAt:   final.CreatedAt,
		CompletedAt: final.CompletedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.runs.SaveRun(ctx, rec); err != nil {
		slog.Error("persist run failed", "run_id", final.RunID, "error", err)
	}
}

func (m *RunMethods) handleStop(_ context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		RunID string `json:"runId"`
		Scope string `json:"scope"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid params: "+err.Error()))
		return
	}
	if params.RunID == "" && params.Scope == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "runId or scope is required"))
		return
	}

	var stoppedIDs []string
	if params.RunID != "" {
		if m.agents.AbortRun(params.RunID) {
			stoppedIDs = append(stoppedIDs, params.RunID)
		}
	} else {
		stoppedIDs = m.agents.AbortRunsForScope(params.Scope)
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"ok":      true,
		"stopped": len(stoppedIDs) > 0,
		"runIds":  stoppedIDs,
	}))
}

func (m *RunMethods) handleState(_ context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		RunID string `json:"runId"`
		Scope string `json:"scope"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid params: "+err.Error()))
		return
	}

	// An in-flight run ID resolves directly to its loop. Otherwise the
	// scope's loop reports whatever run it holds (possibly a finished one).
	if params.RunID != "" {
		if run, ok := m.agents.FindRun(params.RunID); ok {
			client.SendResponse(protocol.NewOKResponse(req.ID, run.Agent().State()))
			return
		}
		if m.runs != nil {
			rec, err := m.runs.GetRun(context.Background(), params.RunID)
			if err == nil {
				client.SendResponse(protocol.NewOKResponse(req.ID, rec))
				return
			}
		}
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrNotFound, "no such run: "+params.RunID))
		return
	}

	params.Scope = config.NormalizeScope(params.Scope)
	loop, err := m.agents.Get(params.Scope)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrNotFound, err.Error()))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, loop.State()))
}

func (m *RunMethods) handleHistory(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		Scope string `json:"scope"`
		Limit int    `json:"limit"`
	}
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid params: "+err.Error()))
			return
		}
	}

	if m.runs == nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrUnavailable, "run history is not enabled"))
		return
	}

	runs, err := m.runs.ListRuns(ctx, params.Scope, params.Limit)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, err.Error()))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"runs": runs,
	}))
}
