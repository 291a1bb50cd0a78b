package core

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/hupe1980/assistants/logging"
)

// ToolContext is the per-call facade handed to tool implementations. It
// accumulates EventActions (state delta, transfer, escalation, artifact
// sizes) which the flow merges into the function response event.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	ctx            context.Context

	mu      sync.Mutex
	actions EventActions

	*loggerAdapter
}

// NewToolContext binds a tool context to a run and a function call id.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// WithContext overrides the cancellation context seen by the tool, typically
// to apply a per-call timeout.
func (tc *ToolContext) WithContext(ctx context.Context) *ToolContext {
	tc.ctx = ctx
	return tc
}

// Context returns the call context, falling back to the run context.
func (tc *ToolContext) Context() context.Context {
	if tc.ctx != nil {
		return tc.ctx
	}
	return tc.runCtx.Context
}

// SessionID returns the session the tool runs in.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// RunID returns the run id.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// FunctionCallID returns the id of the call being served.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the name of the calling agent.
func (tc *ToolContext) AgentName() string { return tc.runCtx.Agent.Name }

// Logger returns the run logger.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// GetState reads staged or persisted session state.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.runCtx.GetState(k) }

// SetState stages a state mutation visible to later calls in the same run.
func (tc *ToolContext) SetState(k string, v any) {
	tc.runCtx.SetState(k, v)
	tc.recordDelta(k, v)
}

// UpdateState performs an atomic read-modify-write of a state key.
func (tc *ToolContext) UpdateState(k string, fn func(cur any, ok bool) any) any {
	v := tc.runCtx.UpdateState(k, fn)
	tc.recordDelta(k, v)

	return v
}

func (tc *ToolContext) recordDelta(k string, v any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.actions.StateDelta == nil {
		tc.actions.StateDelta = map[string]any{}
	}

	tc.actions.StateDelta[k] = v
}

// TransferToAgent asks the flow to hand control to another agent.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.mu.Lock()
	tc.actions.TransferToAgent = &name
	tc.mu.Unlock()

	tc.LogInfo("tool.transfer.request", "from_agent", tc.AgentName(), "to_agent", name, "function_call_id", tc.functionCallID)
}

// Escalate flags the response event for escalation.
func (tc *ToolContext) Escalate() {
	b := true

	tc.mu.Lock()
	tc.actions.Escalate = &b
	tc.mu.Unlock()

	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
}

// SaveArtifact persists bytes and records the artifact size.
func (tc *ToolContext) SaveArtifact(id string, data []byte) error {
	if tc.runCtx.ArtifactStore == nil {
		return fmt.Errorf("artifact store not configured")
	}

	if err := tc.runCtx.ArtifactStore.Save(tc.SessionID(), id, data); err != nil {
		return err
	}

	tc.mu.Lock()
	if tc.actions.ArtifactDelta == nil {
		tc.actions.ArtifactDelta = map[string]int{}
	}
	tc.actions.ArtifactDelta[id] = len(data)
	tc.mu.Unlock()

	return nil
}

// LoadArtifact retrieves a persisted artifact.
func (tc *ToolContext) LoadArtifact(id string) ([]byte, error) {
	if tc.runCtx.ArtifactStore == nil {
		return nil, fmt.Errorf("artifact store not configured")
	}

	return tc.runCtx.ArtifactStore.Get(tc.SessionID(), id)
}

// ListArtifacts lists artifact ids of the session.
func (tc *ToolContext) ListArtifacts() ([]string, error) {
	if tc.runCtx.ArtifactStore == nil {
		return nil, fmt.Errorf("artifact store not configured")
	}

	return tc.runCtx.ArtifactStore.List(tc.SessionID())
}

// SearchMemory recalls session notes matching q.
func (tc *ToolContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if tc.runCtx.MemoryStore == nil {
		return nil, fmt.Errorf("memory store not configured")
	}

	return tc.runCtx.MemoryStore.Search(tc.SessionID(), q, limit)
}

// ListMemory returns all session notes in insertion order.
func (tc *ToolContext) ListMemory() ([]SearchResult, error) {
	if tc.runCtx.MemoryStore == nil {
		return nil, fmt.Errorf("memory store not configured")
	}

	return tc.runCtx.MemoryStore.List(tc.SessionID())
}

// StoreMemory appends a note to the session memory.
func (tc *ToolContext) StoreMemory(content string, md map[string]any) error {
	if tc.runCtx.MemoryStore == nil {
		return fmt.Errorf("memory store not configured")
	}

	return tc.runCtx.MemoryStore.Store(tc.SessionID(), content, md)
}

// Actions returns a copy of the accumulated actions.
func (tc *ToolContext) Actions() EventActions {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	a := tc.actions
	if tc.actions.StateDelta != nil {
		a.StateDelta = maps.Clone(tc.actions.StateDelta)
	}

	return a
}

// ApplyActions merges the accumulated actions into ev.
func (tc *ToolContext) ApplyActions(ev *Event) {
	a := tc.Actions()

	if len(a.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, a.StateDelta)
	}

	if len(a.ArtifactDelta) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		maps.Copy(ev.Actions.ArtifactDelta, a.ArtifactDelta)
	}

	if a.TransferToAgent != nil {
		ev.Actions.TransferToAgent = a.TransferToAgent
	}

	if a.Escalate != nil {
		ev.Actions.Escalate = a.Escalate
	}
}

// NewDetachedToolContext builds a ToolContext outside of any agent run, for
// surfaces that call tools directly. State written by the tool is staged on
// the returned context; ApplyActions or Session.ApplyStateDelta persist it.
func NewDetachedToolContext(ctx context.Context, sess *Session, agentName string, opts RunContextOptions) *ToolContext {
	rc := NewRunContext(ctx, sess.ID, NewID(), AgentInfo{Name: agentName}, Content{}, nil, nil, sess, opts)
	return NewToolContext(rc, NewID())
}

// NewToolContextForTest builds a ToolContext backed by a bare RunContext.
// Tools can be exercised directly without a runner.
func NewToolContextForTest(ctx context.Context, sessionID string, opts RunContextOptions) *ToolContext {
	return NewDetachedToolContext(ctx, NewSession("test", "test", sessionID), "test", opts)
}
