package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/hupe1980/assistants/logging"
)

// DefaultMaxTransferDepth bounds how many agent-to-agent hand-offs a single
// run may perform.
const DefaultMaxTransferDepth = 3

// ErrTransferDepthExceeded is returned when a hand-off would exceed the
// configured delegation depth.
var ErrTransferDepthExceeded = errors.New("maximum delegation depth exceeded")

// RunContext is the mutable per-run scope handed to Agent.Run. It carries the
// cancellation context, identifiers, the user's input, the emit/resume
// channels shared with the runner, backing stores and a session snapshot.
//
// SetState stages values in StateDelta; EmitEvent attaches the staged delta
// (and artifact ids) to the outgoing event and clears the buffers.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	Agent            AgentInfo
	UserContent      Content
	Emit             chan<- Event
	Resume           <-chan struct{}
	SessionStore     SessionStore
	ArtifactStore    ArtifactStore
	MemoryStore      MemoryStore
	Limiter          *ModelLimiter
	Session          *Session
	StateDelta       map[string]any
	Artifacts        []string
	Branch           string

	// TransferDepth counts hand-offs already performed in this run.
	TransferDepth    int
	MaxTransferDepth int

	mu sync.Mutex
	*loggerAdapter
}

// RunContextOptions groups the optional collaborators of a RunContext.
type RunContextOptions struct {
	MaxModelCalls    int
	MaxTransferDepth int
	SessionStore     SessionStore
	ArtifactStore    ArtifactStore
	MemoryStore      MemoryStore
	Logger           logging.Logger
}

// NewRunContext constructs a RunContext with empty staging buffers.
func NewRunContext(
	ctx context.Context,
	sessionID, runID string,
	agent AgentInfo,
	userContent Content,
	emit chan<- Event,
	resume <-chan struct{},
	sess *Session,
	opts RunContextOptions,
) *RunContext {
	maxDepth := opts.MaxTransferDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxTransferDepth
	}

	return &RunContext{
		Context:          ctx,
		SessionID:        sessionID,
		RunID:            runID,
		Agent:            agent,
		UserContent:      userContent,
		Emit:             emit,
		Resume:           resume,
		Session:          sess,
		SessionStore:     opts.SessionStore,
		ArtifactStore:    opts.ArtifactStore,
		MemoryStore:      opts.MemoryStore,
		Limiter:          NewModelLimiter(opts.MaxModelCalls),
		StateDelta:       map[string]any{},
		Artifacts:        []string{},
		MaxTransferDepth: maxDepth,
		loggerAdapter:    newLoggerAdapter(opts.Logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error of the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged value if present, else the session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	rc.mu.Lock()
	v, ok := rc.StateDelta[k]
	rc.mu.Unlock()

	if ok {
		return v, true
	}

	if rc.Session != nil {
		return rc.Session.GetState(k)
	}

	return nil, false
}

// SetState stages a state mutation.
func (rc *RunContext) SetState(k string, v any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.StateDelta[k] = v
}

// UpdateState atomically replaces the value of k with fn(current) and returns
// the new value. Concurrent tool calls use it for read-modify-write updates.
func (rc *RunContext) UpdateState(k string, fn func(cur any, ok bool) any) any {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	cur, ok := rc.StateDelta[k]
	if !ok && rc.Session != nil {
		cur, ok = rc.Session.GetState(k)
	}

	next := fn(cur, ok)
	rc.StateDelta[k] = next

	return next
}

// AddArtifact stages an artifact id for the next emitted event.
func (rc *RunContext) AddArtifact(id string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.Artifacts = append(rc.Artifacts, id)
}

// SaveArtifact stores bytes and stages the id.
func (rc *RunContext) SaveArtifact(id string, data []byte) error {
	if rc.ArtifactStore == nil {
		return fmt.Errorf("artifact store not configured")
	}

	if err := rc.ArtifactStore.Save(rc.SessionID, id, data); err != nil {
		return err
	}

	rc.AddArtifact(id)

	return nil
}

// SearchMemory queries the memory store for this session.
func (rc *RunContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if rc.MemoryStore == nil {
		return []SearchResult{}, nil
	}

	return rc.MemoryStore.Search(rc.SessionID, q, limit)
}

// RefreshSession reloads the session snapshot from the store.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	s, err := rc.SessionStore.Get(rc.SessionID)
	if err != nil {
		return err
	}

	rc.Session = s

	return nil
}

// History returns the filtered conversation history of the session snapshot.
func (rc *RunContext) History() []Event {
	if rc.Session == nil {
		return nil
	}

	return rc.Session.ConversationHistory()
}

// WithAgent derives a context for a different agent sharing the same
// channels, stores and limiter.
func (rc *RunContext) WithAgent(info AgentInfo) *RunContext {
	c := rc.derive(rc.Emit, rc.Resume, rc.Branch)
	c.Agent = info

	return c
}

// Transfer derives a context for a hand-off to the named agent. It fails
// once the run has reached its delegation depth.
func (rc *RunContext) Transfer(info AgentInfo) (*RunContext, error) {
	if rc.TransferDepth >= rc.MaxTransferDepth {
		return nil, fmt.Errorf("%w (%d) transferring to %s", ErrTransferDepthExceeded, rc.MaxTransferDepth, info.Name)
	}

	c := rc.WithAgent(info)
	c.TransferDepth = rc.TransferDepth + 1

	return c, nil
}

// NewChildContext derives a context for a nested execution path with its own
// channels and empty staging buffers.
func (rc *RunContext) NewChildContext(emit chan<- Event, resume <-chan struct{}, branch string) *RunContext {
	if branch == "" {
		branch = rc.Branch
	}

	return rc.derive(emit, resume, branch)
}

func (rc *RunContext) derive(emit chan<- Event, resume <-chan struct{}, branch string) *RunContext {
	return &RunContext{
		Context:          rc.Context,
		SessionID:        rc.SessionID,
		RunID:            rc.RunID,
		Agent:            rc.Agent,
		UserContent:      rc.UserContent,
		Emit:             emit,
		Resume:           resume,
		SessionStore:     rc.SessionStore,
		ArtifactStore:    rc.ArtifactStore,
		MemoryStore:      rc.MemoryStore,
		Limiter:          rc.Limiter,
		Session:          rc.Session,
		StateDelta:       map[string]any{},
		Artifacts:        []string{},
		Branch:           branch,
		TransferDepth:    rc.TransferDepth,
		MaxTransferDepth: rc.MaxTransferDepth,
		loggerAdapter:    rc.loggerAdapter,
	}
}

// EmitEvent attaches staged state and artifacts to ev and sends it.
func (rc *RunContext) EmitEvent(ev Event) error {
	rc.mu.Lock()
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}

	if len(rc.Artifacts) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}
		for _, id := range rc.Artifacts {
			if _, ok := ev.Actions.ArtifactDelta[id]; !ok {
				ev.Actions.ArtifactDelta[id] = 1
			}
		}
	}

	rc.StateDelta = map[string]any{}
	rc.Artifacts = []string{}
	rc.mu.Unlock()

	if ev.Branch == "" {
		ev.Branch = rc.Branch
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	return nil
}

// WaitForResume blocks until the runner signals or the context is cancelled.
func (rc *RunContext) WaitForResume() error {
	if rc.Resume == nil {
		return nil
	}

	select {
	case <-rc.Resume:
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}
