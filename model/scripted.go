package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/assistants/core"
)

// Turn is one scripted model reply: text, tool calls, or both.
type Turn struct {
	Text  string
	Calls []core.FunctionCall
	Err   error
}

// Say returns a text-only turn.
func Say(text string) Turn { return Turn{Text: text} }

// Call returns a turn requesting a single tool call with JSON encoded args.
func Call(name string, args map[string]any) Turn {
	return Turn{Calls: []core.FunctionCall{NewCall(name, args)}}
}

// NewCall builds a function call with a fresh id.
func NewCall(name string, args map[string]any) core.FunctionCall {
	raw, _ := json.Marshal(args)
	return core.FunctionCall{ID: "call_" + core.NewID()[:8], Name: name, Arguments: string(raw)}
}

// Responder computes a turn from the request once the script is exhausted.
type Responder func(req Request) Turn

// ScriptedModel replays queued turns in order. It records every request so
// tests can assert on instructions, history and tool definitions. Once the
// queue is empty the fallback responder is used, which echoes the last user
// message by default.
type ScriptedModel struct {
	mu       sync.Mutex
	name     string
	turns    []Turn
	requests []Request
	fallback Responder
}

// NewScriptedModel creates a model that replays turns.
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{name: "scripted", turns: turns, fallback: Echo}
}

// WithFallback replaces the responder used after the script runs out.
func (m *ScriptedModel) WithFallback(r Responder) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fallback = r

	return m
}

// Enqueue appends turns to the script.
func (m *ScriptedModel) Enqueue(turns ...Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, turns...)
}

// Requests returns a copy of the recorded requests.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	copy(out, m.requests)

	return out
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)

	var turn Turn
	if len(m.turns) > 0 {
		turn = m.turns[0]
		m.turns = m.turns[1:]
	} else {
		turn = m.fallback(req)
	}
	m.mu.Unlock()

	go func() {
		defer close(out)
		defer close(errCh)

		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}

		if turn.Err != nil {
			errCh <- turn.Err
			return
		}

		parts := make([]core.Part, 0, len(turn.Calls)+1)
		if turn.Text != "" {
			parts = append(parts, core.TextPart{Text: turn.Text})
		}

		for _, c := range turn.Calls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: c})
		}

		finish := "stop"
		if len(turn.Calls) > 0 {
			finish = "tool_calls"
		}

		out <- Response{
			ID:           core.NewID(),
			Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
			FinishReason: finish,
		}
	}()

	return out, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Name: m.name, Provider: "scripted", SupportsTools: true}
}

// Echo answers with the last user message, or summarises the latest tool
// results when the previous turn called tools.
func Echo(req Request) Turn {
	for i := len(req.Contents) - 1; i >= 0; i-- {
		c := req.Contents[i]

		switch c.Role {
		case core.RoleTool:
			var lines []string
			for _, p := range c.Parts {
				if fr, ok := p.(core.FunctionResponsePart); ok {
					lines = append(lines, ToolResponseText(fr.FunctionResponse))
				}
			}
			return Say(strings.Join(lines, "\n"))
		case core.RoleUser:
			return Say(fmt.Sprintf("You said: %s", c.Text()))
		}
	}

	return Say("Hello! How can I help?")
}
