package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/model"
)

const toolUseMessage = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-20241022",
  "content": [
    {"type": "text", "text": "Let me check."},
    {"type": "tool_use", "id": "toolu_1", "name": "get_ticket", "input": {"ticket_id": "TKT-1"}}
  ],
  "stop_reason": "tool_use",
  "stop_sequence": null,
  "usage": {"input_tokens": 3, "output_tokens": 4}
}`

func TestModel_GenerateToolUse(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, toolUseMessage)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
		o.MaxRetries = 0
	})

	respCh, errCh := m.Generate(context.Background(), model.Request{
		Instructions: "You are a support assistant.",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, "Status of TKT-1?")},
		Stream:       true,
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "get_ticket",
				Description: "Get ticket",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"ticket_id": map[string]any{"type": "string"}},
					"required":   []string{"ticket_id"},
				},
			},
		}},
	})

	var responses []model.Response
	for r := range respCh {
		responses = append(responses, r)
	}
	require.NoError(t, <-errCh)
	require.Len(t, responses, 1)

	ev := core.Event{Content: &responses[0].Content}
	assert.Equal(t, "Let me check.", ev.Text())

	calls := ev.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.JSONEq(t, `{"ticket_id":"TKT-1"}`, calls[0].Arguments)
	assert.Equal(t, "tool_use", responses[0].FinishReason)

	system, _ := captured["system"].([]any)
	require.Len(t, system, 1)
	tools, _ := captured["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "Get ticket", tools[0].(map[string]any)["description"])
}

func TestBuildMessages_GroupsToolResults(t *testing.T) {
	c1 := core.FunctionCall{ID: "a", Name: "web_search", Arguments: `{"query":"x"}`}
	c2 := core.FunctionCall{ID: "b", Name: "analyze_data", Arguments: `{"data":"y"}`}

	msgs := buildMessages([]core.Content{
		core.NewTextContent(core.RoleUser, "do both"),
		{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: c1}, core.FunctionCallPart{FunctionCall: c2}}},
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "a", Response: "r1"}}}},
		{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "b", Response: "r2"}}}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[2].Role))
	assert.Len(t, msgs[2].Content, 2)
}
