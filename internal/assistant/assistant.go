// Package assistant wraps a root agent in the session handling every
// assistant shares: one long-lived session per process, a single retry when
// the session has vanished, and string replies that never carry an error.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/runner"
	"github.com/hupe1980/assistants/session"
)

// Replies used when a query produced no usable answer.
const (
	NoResponse    = "No response received."
	ErrorReplyFmt = "I apologize, but I encountered an error: %v"
)

// Identity names the application, user and initial session of an assistant.
type Identity struct {
	AppName   string
	UserID    string
	SessionID string
	// SessionPrefix is used to derive fresh session ids on Reset. Defaults
	// to SessionID.
	SessionPrefix string
}

// Options configures an Assistant.
type Options struct {
	Logger logging.Logger
	// SessionStore defaults to an in-memory store.
	SessionStore core.SessionStore
	// RunnerOptions are passed to runner.New.
	RunnerOptions []func(o *runner.Options)
	// OnEvent observes every event of a query, partial ones included.
	OnEvent func(ev core.Event)
	// QueryTimeout bounds a single query; zero means no limit.
	QueryTimeout time.Duration
}

// Assistant is the session/runner shim around one root agent. It is safe
// for concurrent use, although queries on the same session interleave their
// history.
type Assistant struct {
	agent    core.Agent
	runner   *runner.Runner
	store    core.SessionStore
	identity Identity
	logger   logging.Logger
	onEvent  func(ev core.Event)
	timeout  time.Duration

	mu        sync.RWMutex
	sessionID string
}

// New creates the assistant and its initial session.
func New(a core.Agent, id Identity, optFns ...func(o *Options)) (*Assistant, error) {
	opts := Options{
		Logger:       logging.NoOpLogger{},
		SessionStore: session.NewInMemoryStore(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if id.SessionPrefix == "" {
		id.SessionPrefix = id.SessionID
	}

	runnerOpts := append([]func(o *runner.Options){func(o *runner.Options) {
		o.SessionStore = opts.SessionStore
		o.Logger = opts.Logger
	}}, opts.RunnerOptions...)

	asst := &Assistant{
		agent:     a,
		runner:    runner.New(a, runnerOpts...),
		store:     opts.SessionStore,
		identity:  id,
		logger:    opts.Logger,
		onEvent:   opts.OnEvent,
		timeout:   opts.QueryTimeout,
		sessionID: id.SessionID,
	}

	if err := asst.createSession(id.SessionID); err != nil {
		return nil, err
	}

	asst.logger.Info("assistant.initialized", "agent", a.Name(), "app", id.AppName, "session_id", id.SessionID)

	return asst, nil
}

// Name returns the root agent name.
func (a *Assistant) Name() string { return a.agent.Name() }

// Agent returns the root agent.
func (a *Assistant) Agent() core.Agent { return a.agent }

// Runner returns the underlying runner.
func (a *Assistant) Runner() *runner.Runner { return a.runner }

// SessionID returns the current session id.
func (a *Assistant) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.sessionID
}

// Query sends text to the agent and returns its reply. Failures are folded
// into an apology string.
func (a *Assistant) Query(ctx context.Context, text string) string {
	reply, err := a.Ask(ctx, text)
	if err != nil {
		a.logger.Error("assistant.query.error", "agent", a.Name(), "error", err.Error())
		return fmt.Sprintf(ErrorReplyFmt, err)
	}

	if reply == "" {
		return NoResponse
	}

	return reply
}

// Ask runs one query and returns the concatenated text of the reply events.
// A missing session is recreated and the query retried once.
func (a *Assistant) Ask(ctx context.Context, text string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	sessionID := a.SessionID()

	reply, err := a.run(ctx, sessionID, text)
	if errors.Is(err, core.ErrSessionNotFound) {
		a.logger.Warn("assistant.session.recreate", "session_id", sessionID)

		if cerr := a.createSession(sessionID); cerr != nil {
			return "", cerr
		}

		reply, err = a.run(ctx, sessionID, text)
	}

	return reply, err
}

func (a *Assistant) run(ctx context.Context, sessionID, text string) (string, error) {
	_, events, errs, err := a.runner.Run(ctx, sessionID, core.NewTextContent(core.RoleUser, text))
	if err != nil {
		return "", err
	}

	var parts []string

	for ev := range events {
		if a.onEvent != nil {
			a.onEvent(ev)
		}

		if ev.IsPartial() || ev.Author == core.RoleUser {
			continue
		}

		if t := strings.TrimSpace(ev.Text()); t != "" {
			parts = append(parts, t)
		}
	}

	if err := <-errs; err != nil {
		return "", err
	}

	return strings.Join(parts, "\n\n"), nil
}

// Reset starts a new conversation under a fresh session id.
func (a *Assistant) Reset() (string, error) {
	id := fmt.Sprintf("%s_%s", a.identity.SessionPrefix, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])

	if err := a.createSession(id); err != nil {
		return "", err
	}

	a.mu.Lock()
	a.sessionID = id
	a.mu.Unlock()

	a.logger.Info("assistant.session.reset", "agent", a.Name(), "session_id", id)

	return id, nil
}

func (a *Assistant) createSession(id string) error {
	if _, err := a.store.Create(a.identity.AppName, a.identity.UserID, id); err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}

	return nil
}
