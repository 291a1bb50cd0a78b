package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/artifact"
	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/memory"
	"github.com/hupe1980/assistants/runner"
	"github.com/hupe1980/assistants/session"
)

// ToolContext returns a ToolContext with in-memory memory and artifact
// stores, suitable for calling tool functions directly.
func ToolContext(t testing.TB) *core.ToolContext {
	t.Helper()

	return core.NewToolContextForTest(context.Background(), "test-session", core.RunContextOptions{
		MemoryStore:   memory.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
	})
}

// Result is the outcome of RunAgent.
type Result struct {
	Events  []core.Event
	Text    string // text of the last final response
	Session *core.Session
}

// RunAgent sends text to a through a fresh runner and session and waits for
// the run to finish. optFns may replace stores or limits.
func RunAgent(t testing.TB, a core.Agent, text string, optFns ...func(o *runner.Options)) Result {
	t.Helper()

	store := session.NewInMemoryStore()
	_, err := store.Create("test_app", "test_user", "test-session")
	require.NoError(t, err)

	opts := append([]func(o *runner.Options){func(o *runner.Options) { o.SessionStore = store }}, optFns...)
	r := runner.New(a, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, events, errs, err := r.Run(ctx, "test-session", core.NewTextContent(core.RoleUser, text))
	require.NoError(t, err)

	var res Result

	for ev := range events {
		res.Events = append(res.Events, ev)

		if ev.IsFinalResponse() && ev.Text() != "" {
			res.Text = ev.Text()
		}
	}

	require.NoError(t, <-errs)

	res.Session, err = r.SessionStore().Get("test-session")
	require.NoError(t, err)

	return res
}

// FunctionResponses returns every tool response of the run keyed by tool
// name, in call order.
func (r Result) FunctionResponses() map[string][]core.FunctionResponse {
	out := map[string][]core.FunctionResponse{}

	for _, ev := range r.Events {
		for _, fr := range ev.FunctionResponses() {
			out[fr.Name] = append(out[fr.Name], fr)
		}
	}

	return out
}
