// Package flow implements the model/tool loop that drives a ModelAgent: build
// a request through processors, call the model, execute requested tools,
// feed the results back and repeat until the model produces a final answer
// or hands control to another agent.
package flow

import (
	"time"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/tool"
)

// Flow runs one agent turn to completion. Events are emitted through the
// RunContext and each non-partial event waits for the runner's resume signal.
type Flow interface {
	Run(runCtx *core.RunContext) error
}

// FlowAgent is the view of an agent that flows need.
type FlowAgent interface {
	Name() string
	Description() string
	Model() model.Model
	ResolveInstructions(runCtx *core.RunContext) (string, error)
	// Tools returns registered tools in registration order.
	Tools() []tool.Tool
	IsStreamingEnabled() bool
	IsTransferEnabled() bool
	OutputKey() string
	MaxHistoryMessages() int
	ToolTimeout() time.Duration
	// TransferTargets lists agents this agent may hand off to.
	TransferTargets() []core.Agent
	TransferToAgent(runCtx *core.RunContext, agentName string) error
}

// RequestProcessor mutates the model request before it is sent.
type RequestProcessor interface {
	Name() string
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor inspects or mutates a model response before emission.
type ResponseProcessor interface {
	Name() string
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
