package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/core"
)

func collect(t *testing.T, m Model, req Request) (Response, error) {
	t.Helper()

	respCh, errCh := m.Generate(context.Background(), req)

	var last Response
	for r := range respCh {
		last = r
	}

	return last, <-errCh
}

func TestScriptedModel_ReplaysTurns(t *testing.T) {
	m := NewScriptedModel(
		Call("get_forecast", map[string]any{"location": "Oslo", "days": 3}),
		Say("Sunny all week."),
	)

	req := Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, "Forecast?")}}

	first, err := collect(t, m, req)
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", first.FinishReason)

	calls := core.Event{Content: &first.Content}.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_forecast", calls[0].Name)
	assert.JSONEq(t, `{"location":"Oslo","days":3}`, calls[0].Arguments)

	second, err := collect(t, m, req)
	require.NoError(t, err)
	assert.Equal(t, "Sunny all week.", second.Content.Text())

	assert.Len(t, m.Requests(), 2)
}

func TestScriptedModel_FallbackEcho(t *testing.T) {
	m := NewScriptedModel()

	resp, err := collect(t, m, Request{Contents: []core.Content{core.NewTextContent(core.RoleUser, "ping")}})
	require.NoError(t, err)
	assert.Equal(t, "You said: ping", resp.Content.Text())

	resp, err = collect(t, m, Request{Contents: []core.Content{
		core.NewTextContent(core.RoleUser, "ping"),
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{Response: "pong"}}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content.Text())
}

func TestScriptedModel_Error(t *testing.T) {
	boom := errors.New("rate limited")
	m := NewScriptedModel(Turn{Err: boom})

	_, err := collect(t, m, Request{})
	assert.ErrorIs(t, err, boom)
}
