package flow

import (
	"errors"
	"fmt"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/tool"
)

// ErrNoResponse is returned when the model closes its stream without a
// final response.
var ErrNoResponse = errors.New("model returned no response")

// BaseFlow is the request -> model -> tools loop with pluggable processors.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
	transfer           bool
}

// NewBaseFlow creates a flow without processors.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:    agent,
		executor: NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor; registration order is
// execution order.
func (f *BaseFlow) AddRequestProcessor(p RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, p)
}

// AddResponseProcessor appends a processor applied to every model response.
func (f *BaseFlow) AddResponseProcessor(p ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, p)
}

// SetExecutor replaces the function executor.
func (f *BaseFlow) SetExecutor(e FunctionExecutor) { f.executor = e }

// Run loops model turns until a final response or a hand-off.
func (f *BaseFlow) Run(runCtx *core.RunContext) error {
	for {
		last, err := f.runOnce(runCtx)
		if err != nil {
			return err
		}

		if target := last.Actions.TransferToAgent; target != nil {
			runCtx.LogInfo("agent.transfer", "from_agent", f.agent.Name(), "to_agent", *target, "depth", runCtx.TransferDepth+1)
			return f.agent.TransferToAgent(runCtx, *target)
		}

		if len(last.FunctionResponses()) > 0 {
			continue
		}

		return nil
	}
}

// tools returns the callable tool set for this turn including the transfer
// tool when hand-offs are possible.
func (f *BaseFlow) tools() []tool.Tool {
	tools := f.agent.Tools()

	if !f.transfer {
		return tools
	}

	targets := f.agent.TransferTargets()
	if len(targets) == 0 {
		return tools
	}

	names := make([]string, len(targets))
	for i, a := range targets {
		names[i] = a.Name()
	}

	return append(tools, tool.NewTransferToAgentTool(names...))
}

// runOnce performs one model turn plus the tool calls it requested and
// returns the last emitted event.
func (f *BaseFlow) runOnce(runCtx *core.RunContext) (*core.Event, error) {
	if err := runCtx.Limiter.Increment(); err != nil {
		return nil, err
	}

	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			return nil, fmt.Errorf("refresh session: %w", err)
		}
	}

	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}

	for _, p := range f.requestProcessors {
		if err := p.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s failed: %w", p.Name(), err)
		}
	}

	tools := f.tools()
	registry := make(map[string]tool.Tool, len(tools))

	for _, t := range tools {
		registry[t.Name()] = t
		req.Tools = append(req.Tools, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	final, err := f.generate(runCtx, *req)
	if err != nil {
		return nil, err
	}

	calls := final.FunctionCalls()
	if len(calls) == 0 {
		return final, nil
	}

	responses := f.executor.Execute(runCtx, f.agent, registry, calls, func(ev core.Event) error {
		if err := runCtx.EmitEvent(ev); err != nil {
			return err
		}
		return runCtx.WaitForResume()
	})

	if err := runCtx.Err(); err != nil {
		return nil, err
	}

	if len(responses) == 0 {
		return nil, fmt.Errorf("no function responses emitted for %d calls", len(calls))
	}

	last := responses[len(responses)-1]

	for _, r := range responses {
		if r.Actions.TransferToAgent != nil {
			last = r
			break
		}
	}

	return &last, nil
}

// generate streams one model call into events and returns the final one.
func (f *BaseFlow) generate(runCtx *core.RunContext, req model.Request) (*core.Event, error) {
	respCh, errCh := f.agent.Model().Generate(runCtx.Context, req)

	drain := func() {
		go func() {
			for range respCh { //nolint:revive // drain so the provider can exit
			}
		}()
	}

	var final *core.Event

	for resp := range respCh {
		for _, p := range f.responseProcessors {
			if err := p.ProcessResponse(runCtx, &resp, f.agent); err != nil {
				drain()
				return nil, fmt.Errorf("response processor %s failed: %w", p.Name(), err)
			}
		}

		ev := core.NewEvent(runCtx.RunID, f.agent.Name())
		content := resp.Content
		ev.Content = &content

		if resp.Partial {
			partial := true
			ev.Partial = &partial

			if err := runCtx.EmitEvent(ev); err != nil {
				drain()
				return nil, err
			}

			continue
		}

		if len(ev.FunctionCalls()) == 0 {
			complete := true
			ev.TurnComplete = &complete

			if key := f.agent.OutputKey(); key != "" {
				runCtx.SetState(key, ev.Text())
			}
		}

		if err := runCtx.EmitEvent(ev); err != nil {
			drain()
			return nil, err
		}

		if err := runCtx.WaitForResume(); err != nil {
			drain()
			return nil, err
		}

		final = &ev
	}

	if err := <-errCh; err != nil {
		runCtx.LogError("agent.model.error", "agent", f.agent.Name(), "model", f.agent.Model().Info().Name, "error", err.Error())
		return nil, err
	}

	if final == nil {
		return nil, ErrNoResponse
	}

	return final, nil
}
