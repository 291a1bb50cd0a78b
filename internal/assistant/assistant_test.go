package assistant

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/agent"
	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/session"
)

var testIdentity = Identity{AppName: "test_app", UserID: "default_user", SessionID: "test_session"}

func newAssistant(t *testing.T, m model.Model, optFns ...func(o *Options)) *Assistant {
	t.Helper()

	a := agent.NewModelAgent("tester", m)

	asst, err := New(a, testIdentity, optFns...)
	require.NoError(t, err)

	return asst
}

func TestQuery_Reply(t *testing.T) {
	asst := newAssistant(t, model.NewScriptedModel(model.Say("It is sunny.")))

	assert.Equal(t, "It is sunny.", asst.Query(context.Background(), "weather?"))
	assert.Equal(t, "tester", asst.Name())
}

func TestQuery_EmptyReply(t *testing.T) {
	asst := newAssistant(t, model.NewScriptedModel(model.Say("")))

	assert.Equal(t, NoResponse, asst.Query(context.Background(), "hello"))
}

func TestQuery_ErrorReply(t *testing.T) {
	asst := newAssistant(t, model.NewScriptedModel(model.Turn{Err: errors.New("quota exhausted")}))

	reply := asst.Query(context.Background(), "hello")
	assert.True(t, strings.HasPrefix(reply, "I apologize, but I encountered an error: "), reply)
	assert.Contains(t, reply, "quota exhausted")
}

func TestQuery_RecreatesMissingSession(t *testing.T) {
	store := session.NewInMemoryStore()
	asst := newAssistant(t, model.NewScriptedModel(model.Say("back again")), func(o *Options) {
		o.SessionStore = store
	})

	require.NoError(t, store.Delete("test_session"))

	assert.Equal(t, "back again", asst.Query(context.Background(), "hi"))

	sess, err := store.Get("test_session")
	require.NoError(t, err)
	assert.Len(t, sess.Events(), 2)
}

func TestAsk_QueryTimeout(t *testing.T) {
	slow := model.NewScriptedModel().WithFallback(func(model.Request) model.Turn {
		time.Sleep(100 * time.Millisecond)
		return model.Say("too late")
	})

	asst := newAssistant(t, slow, func(o *Options) { o.QueryTimeout = 10 * time.Millisecond })

	_, err := asst.Ask(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReset(t *testing.T) {
	store := session.NewInMemoryStore()
	asst := newAssistant(t, model.NewScriptedModel(), func(o *Options) { o.SessionStore = store })

	id, err := asst.Reset()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "test_session_"))
	assert.Len(t, id, len("test_session_")+8)
	assert.Equal(t, id, asst.SessionID())

	_, err = store.Get(id)
	require.NoError(t, err)
}

func TestQuery_ObservesEvents(t *testing.T) {
	var seen []core.Event

	asst := newAssistant(t, model.NewScriptedModel(model.Say("ok")), func(o *Options) {
		o.OnEvent = func(ev core.Event) { seen = append(seen, ev) }
	})

	asst.Query(context.Background(), "hi")
	require.Len(t, seen, 1)
	assert.Equal(t, "ok", seen[0].Text())
}

func TestRunREPL(t *testing.T) {
	asst := newAssistant(t, model.NewScriptedModel())
	initial := asst.SessionID()

	in := strings.NewReader("hello\n\nreset\nreport quantum computing\nreport\nQUIT\nnever sent\n")
	var out bytes.Buffer

	err := RunREPL(context.Background(), asst, in, PlainPrinter{W: &out}, REPLOptions{
		Prompt:       "> ",
		Banner:       []string{"Ask me anything"},
		Goodbye:      "Goodbye!",
		ResetMessage: "Conversation reset!",
		Commands: map[string]Command{
			"report": func(_ context.Context, args string) (string, error) {
				if args == "" {
					return "", errors.New("Please specify a topic for the report")
				}
				return "report on " + args, nil
			},
		},
	})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "Ask me anything")
	assert.Contains(t, got, "[tester] You said: hello")
	assert.Contains(t, got, "[SUCCESS] Conversation reset!")
	assert.Contains(t, got, "[tester] report on quantum computing")
	assert.Contains(t, got, "[ERROR] Please specify a topic for the report")
	assert.Contains(t, got, "[SUCCESS] Goodbye!")
	assert.NotContains(t, got, "never sent")
	assert.NotEqual(t, initial, asst.SessionID())
}

func TestRunREPL_EOF(t *testing.T) {
	asst := newAssistant(t, model.NewScriptedModel())

	var out bytes.Buffer
	require.NoError(t, RunREPL(context.Background(), asst, strings.NewReader(""), PlainPrinter{W: &out}, REPLOptions{Goodbye: "Bye"}))
	assert.Contains(t, out.String(), "[SUCCESS] Bye")
}
