package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/agent"
	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/session"
	"github.com/hupe1980/assistants/tool"
)

func drain(t *testing.T, events <-chan core.Event, errs <-chan error) ([]core.Event, error) {
	t.Helper()

	var out []core.Event
	for ev := range events {
		out = append(out, ev)
	}

	return out, <-errs
}

func TestRunner_PersistsEventsAndState(t *testing.T) {
	counter := tool.NewFunctionTool("count", "Increment a counter", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		n := tc.UpdateState("count", func(cur any, ok bool) any {
			if !ok {
				return 1
			}
			return cur.(int) + 1
		})
		return n, nil
	})

	m := model.NewScriptedModel(
		model.Call("count", nil),
		model.Call("count", nil),
		model.Say("Counted twice."),
	)

	a := agent.NewModelAgent("counter", m, func(o *agent.ModelAgentOptions) {
		o.Tools = []tool.Tool{counter}
	})

	store := session.NewInMemoryStore()
	_, err := store.Create("app", "user", "s1")
	require.NoError(t, err)

	r := New(a, func(o *Options) { o.SessionStore = store })

	runID, events, errs, err := r.Run(context.Background(), "s1", core.NewTextContent(core.RoleUser, "count twice"))
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	got, runErr := drain(t, events, errs)
	require.NoError(t, runErr)
	require.Len(t, got, 5)
	assert.Equal(t, "Counted twice.", got[4].Text())

	sess, err := store.Get("s1")
	require.NoError(t, err)

	// user message + 5 agent events
	assert.Len(t, sess.Events(), 6)

	count, ok := sess.GetState("count")
	require.True(t, ok)
	assert.Equal(t, 2, count)

	// The second tool call saw the first call's persisted state.
	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Len(t, reqs[2].Contents, 5)
}

func TestRunner_UnknownSession(t *testing.T) {
	r := New(agent.NewModelAgent("a", model.NewScriptedModel()))

	_, _, _, err := r.Run(context.Background(), "nope", core.NewTextContent(core.RoleUser, "hi"))
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestRunner_AgentError(t *testing.T) {
	m := model.NewScriptedModel(model.Turn{Err: assert.AnError})
	r := New(agent.NewModelAgent("a", m))

	_, err := r.SessionStore().Create("app", "user", "s1")
	require.NoError(t, err)

	_, events, errs, err := r.Run(context.Background(), "s1", core.NewTextContent(core.RoleUser, "hi"))
	require.NoError(t, err)

	_, runErr := drain(t, events, errs)
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, assert.AnError)
}

func TestRunner_Cancel(t *testing.T) {
	started := make(chan struct{})

	slow := tool.NewFunctionTool("slow", "Blocks until cancelled", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		close(started)
		<-tc.Context().Done()
		return nil, tc.Context().Err()
	})

	a := agent.NewModelAgent("a", model.NewScriptedModel(model.Call("slow", nil)), func(o *agent.ModelAgentOptions) {
		o.Tools = []tool.Tool{slow}
		o.ToolTimeout = 0
	})

	r := New(a)
	_, err := r.SessionStore().Create("app", "user", "s1")
	require.NoError(t, err)

	runID, events, errs, err := r.Run(context.Background(), "s1", core.NewTextContent(core.RoleUser, "hi"))
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("tool did not start")
	}

	require.NoError(t, r.Cancel(runID))

	_, runErr := drain(t, events, errs)
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, context.Canceled)

	assert.Error(t, r.Cancel(runID), "finished runs are forgotten")
}
