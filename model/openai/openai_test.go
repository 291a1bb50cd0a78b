package openai

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

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "get_current_weather", "arguments": "{\"location\":\"Paris\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestModel_GenerateToolCall(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, toolCallCompletion)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
		o.MaxRetries = 0
	})

	req := model.Request{
		Instructions: "You are a weather assistant.",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, "Weather in Paris?")},
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "get_current_weather",
				Description: "Get current weather",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{"location": map[string]any{"type": "string"}}},
			},
		}},
	}

	respCh, errCh := m.Generate(context.Background(), req)

	var responses []model.Response
	for r := range respCh {
		responses = append(responses, r)
	}
	require.NoError(t, <-errCh)
	require.Len(t, responses, 1)

	calls := core.Event{Content: &responses[0].Content}.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "get_current_weather", calls[0].Name)
	assert.JSONEq(t, `{"location":"Paris"}`, calls[0].Arguments)
	assert.Equal(t, int64(15), responses[0].Usage.TotalTokens)

	msgs, _ := captured["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	tools, _ := captured["tools"].([]any)
	assert.Len(t, tools, 1)
}

func TestBuildMessages_ToolRoundTrip(t *testing.T) {
	call := core.FunctionCall{ID: "call_9", Name: "get_forecast", Arguments: `{"location":"Oslo"}`}

	req := model.Request{
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, "Forecast for Oslo"),
			{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: call}}},
			{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "call_9", Name: "get_forecast", Response: "Sunny"}}}},
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 3)
	require.NotNil(t, msgs[1].OfAssistant)
	assert.Len(t, msgs[1].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[2].OfTool)
	assert.Equal(t, "call_9", msgs[2].OfTool.ToolCallID)
}

func TestFinalPartsOrdersByIndex(t *testing.T) {
	parts := finalParts("hi", map[int64]*pendingCall{
		1: {id: "b", name: "second"},
		0: {id: "a", name: "first"},
	})

	require.Len(t, parts, 3)
	assert.Equal(t, "first", parts[1].(core.FunctionCallPart).FunctionCall.Name)
	assert.Equal(t, "second", parts[2].(core.FunctionCallPart).FunctionCall.Name)
}
