package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/assistants/agent"
	"github.com/hupe1980/assistants/artifact"
	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/memory"
	"github.com/hupe1980/assistants/session"
)

// Options holds dependency and configuration overrides passed to New.
type Options struct {
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run.
	MaxModelCalls int
	// MaxTransferDepth bounds agent-to-agent hand-offs per run.
	MaxTransferDepth int

	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore
	Logger        logging.Logger
}

// Runner drives the root agent: it records the user message, hands the agent
// a RunContext, persists every non-partial event with its state delta and
// streams events to the caller. Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent

	eventBufferSize  int
	maxModelCalls    int
	maxTransferDepth int

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	logger        logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(a core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize:  100,
		MaxModelCalls:    100,
		MaxTransferDepth: core.DefaultMaxTransferDepth,
		SessionStore:     session.NewInMemoryStore(),
		ArtifactStore:    artifact.NewInMemoryStore(),
		MemoryStore:      memory.NewInMemoryStore(),
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		agent:            a,
		eventBufferSize:  opts.EventBufferSize,
		maxModelCalls:    opts.MaxModelCalls,
		maxTransferDepth: opts.MaxTransferDepth,
		sessionStore:     opts.SessionStore,
		artifactStore:    opts.ArtifactStore,
		memoryStore:      opts.MemoryStore,
		logger:           opts.Logger,
		activeRuns:       make(map[string]context.CancelFunc),
	}
}

// Agent returns the root agent.
func (r *Runner) Agent() core.Agent { return r.agent }

// SessionStore returns the backing session store.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// Run starts an asynchronous run. The event channel closes when the run is
// over; the error channel carries at most one terminal error. A missing
// session is reported synchronously and wraps core.ErrSessionNotFound.
func (r *Runner) Run(ctx context.Context, sessionID string, userContent core.Content) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.sessionStore.Get(sessionID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	userEvent := core.NewUserContentEvent(runID, userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	sess.AddEvent(userEvent)

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	runCtx := core.NewRunContext(ctx, sessionID, runID, agent.Info(r.agent), userContent, agentEmit, resumeCh, sess, core.RunContextOptions{
		MaxModelCalls:    r.maxModelCalls,
		MaxTransferDepth: r.maxTransferDepth,
		SessionStore:     r.sessionStore,
		ArtifactStore:    r.artifactStore,
		MemoryStore:      r.memoryStore,
		Logger:           r.logger,
	})

	r.logger.Info("runner.run.start", "run_id", runID, "session_id", sessionID, "agent", r.agent.Name())

	agentErr := make(chan error, 1)

	go func() {
		defer close(agentEmit)
		agentErr <- r.runAgent(runCtx)
	}()

	go func() {
		defer func() {
			cancel()

			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()

			close(eventsCh)
			close(errorsCh)
		}()

		if err := r.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh); err != nil {
			cancel()

			for range agentEmit { //nolint:revive // let the agent goroutine exit
			}

			<-agentErr
			errorsCh <- err

			return
		}

		if err := <-agentErr; err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				err = fmt.Errorf("run %s cancelled: %w", runID, err)
			}

			r.logger.Error("runner.run.error", "run_id", runID, "error", err.Error())
			errorsCh <- fmt.Errorf("agent execution failed: %w", err)

			return
		}

		r.logger.Info("runner.run.complete", "run_id", runID, "model_calls", runCtx.Limiter.Count())
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel cancels an active run by id.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

func (r *Runner) runAgent(runCtx *core.RunContext) error {
	if err := r.agent.Start(runCtx); err != nil {
		return err
	}

	defer func() {
		if err := r.agent.Stop(runCtx); err != nil {
			r.logger.Warn("runner.agent.stop_failed", "agent", r.agent.Name(), "error", err.Error())
		}
	}()

	return r.agent.Run(runCtx)
}

// processEvents persists and forwards agent events until the agent closes
// its emit channel. A persistence failure ends the run.
func (r *Runner) processEvents(
	runCtx *core.RunContext,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
) error {
	for ev := range agentEmit {
		if !ev.IsPartial() {
			if err := r.persist(sessionID, ev); err != nil {
				return err
			}
		}

		select {
		case <-runCtx.Done():
			// keep draining so the agent observes cancellation on its own
		case eventsCh <- ev:
		}

		if !ev.IsPartial() {
			select {
			case resumeCh <- struct{}{}:
			default:
			}
		}
	}

	return nil
}

func (r *Runner) persist(sessionID string, ev core.Event) error {
	if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
		return fmt.Errorf("failed to append event to session: %w", err)
	}

	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	r.logger.Debug("runner.event.persisted",
		"session_id", sessionID,
		"event_id", ev.ID,
		"author", ev.Author,
		"branch", ev.Branch,
		"state_keys", len(ev.Actions.StateDelta),
		"artifacts", len(ev.Actions.ArtifactDelta),
	)

	if t := ev.Actions.TransferToAgent; t != nil && *t != "" {
		r.logger.Info("runner.event.transfer", "session_id", sessionID, "to_agent", *t)
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		r.logger.Warn("runner.event.escalate", "session_id", sessionID, "author", ev.Author)
	}

	return nil
}
