package flow

import (
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/tool"
)

type execTool struct {
	name     string
	delay    time.Duration
	result   any
	panicMsg any
}

func (et *execTool) Name() string               { return et.name }
func (et *execTool) Description() string        { return "exec tool" }
func (et *execTool) Parameters() map[string]any { return map[string]any{} }
func (et *execTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	if et.delay > 0 {
		select {
		case <-time.After(et.delay):
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		}
	}

	if et.panicMsg != nil {
		panic(et.panicMsg)
	}

	return et.result, nil
}

func registry(tools ...tool.Tool) map[string]tool.Tool {
	r := map[string]tool.Tool{}
	for _, t := range tools {
		r[t.Name()] = t
	}
	return r
}

func collectEmit(out *[]core.Event) func(core.Event) error {
	return func(ev core.Event) error {
		*out = append(*out, ev)
		return nil
	}
}

func TestParallelExecutor_PreservesOrder(t *testing.T) {
	rc, _ := newTestRunContext(t, 0)
	agent := &testAgent{}

	reg := registry(
		&execTool{name: "slow", delay: 30 * time.Millisecond, result: "slow"},
		&execTool{name: "fast", result: "fast"},
	)

	calls := []core.FunctionCall{{ID: "1", Name: "slow"}, {ID: "2", Name: "fast"}}

	var emitted []core.Event

	returned := NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}).
		Execute(rc, agent, reg, calls, collectEmit(&emitted))

	if len(emitted) != 2 || len(returned) != 2 {
		t.Fatalf("expected 2 events, got %d/%d", len(emitted), len(returned))
	}

	if emitted[0].FunctionResponses()[0].ID != "1" || emitted[1].FunctionResponses()[0].ID != "2" {
		t.Fatalf("order not preserved")
	}
}

func TestParallelExecutor_PanicAndUnknownTool(t *testing.T) {
	rc, _ := newTestRunContext(t, 0)
	agent := &testAgent{}

	reg := registry(&execTool{name: "boom", panicMsg: "kaputt"})
	calls := []core.FunctionCall{{ID: "1", Name: "boom"}, {ID: "2", Name: "missing"}}

	var emitted []core.Event

	NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}).
		Execute(rc, agent, reg, calls, collectEmit(&emitted))

	if len(emitted) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitted))
	}

	if msg := emitted[0].FunctionResponses()[0].Error; !strings.Contains(msg, "panic recovered: kaputt") {
		t.Fatalf("unexpected panic error %q", msg)
	}

	if msg := emitted[1].FunctionResponses()[0].Error; !strings.Contains(msg, tool.CodeNotFound) {
		t.Fatalf("unexpected not-found error %q", msg)
	}
}

func TestParallelExecutor_ToolTimeout(t *testing.T) {
	rc, _ := newTestRunContext(t, 0)
	agent := &testAgent{toolTimeout: 20 * time.Millisecond}

	reg := registry(&execTool{name: "stuck", delay: time.Second})

	var emitted []core.Event

	NewParallelFunctionExecutor(FunctionExecutorConfig{}).
		Execute(rc, agent, reg, []core.FunctionCall{{ID: "1", Name: "stuck"}}, collectEmit(&emitted))

	if len(emitted) != 1 {
		t.Fatalf("expected 1 event, got %d", len(emitted))
	}

	if msg := emitted[0].FunctionResponses()[0].Error; !strings.Contains(msg, "deadline exceeded") {
		t.Fatalf("expected deadline error, got %q", msg)
	}
}
