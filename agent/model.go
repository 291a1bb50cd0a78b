package agent

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/flow"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/tool"
)

// ModelAgentOptions configures a ModelAgent. Use functional options with
// NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction        Instruction
	Description        string
	EnableStreaming    bool
	ToolTimeout        time.Duration
	OutputKey          string
	MaxHistoryMessages int
	AllowTransfer      bool
	Tools              []tool.Tool
}

// ModelAgent is the tool-calling agent: a model, an instruction, an ordered
// tool set and optional sub-agents it can hand the conversation to.
//
// Defaults:
//   - non-streaming responses
//   - 15 second tool timeout
//   - 20 message history window
//   - transfers enabled (only effective with a parent or sub-agents)
type ModelAgent struct {
	BaseAgent

	llm                model.Model
	instruction        Instruction
	enableStreaming    bool
	toolTimeout        time.Duration
	outputKey          string
	maxHistoryMessages int
	allowTransfer      bool

	toolsMu sync.RWMutex
	tools   []tool.Tool
}

// NewModelAgent creates a model agent.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		ToolTimeout:        15 * time.Second,
		MaxHistoryMessages: 20,
		AllowTransfer:      true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		enableStreaming:    opts.EnableStreaming,
		toolTimeout:        opts.ToolTimeout,
		outputKey:          opts.OutputKey,
		maxHistoryMessages: opts.MaxHistoryMessages,
		allowTransfer:      opts.AllowTransfer,
	}
	a.bind(a)

	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}

	a.RegisterTools(opts.Tools...)

	return a
}

// RegisterTool adds a tool. A tool whose name is already registered replaces
// the earlier one in place, so registering the same set twice is a no-op.
func (a *ModelAgent) RegisterTool(t tool.Tool) {
	a.toolsMu.Lock()
	defer a.toolsMu.Unlock()

	for i, existing := range a.tools {
		if existing.Name() == t.Name() {
			a.tools[i] = t
			return
		}
	}

	a.tools = append(a.tools, t)
}

// RegisterTools adds several tools in order.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool removes a tool and reports whether it was registered.
func (a *ModelAgent) UnregisterTool(name string) bool {
	a.toolsMu.Lock()
	defer a.toolsMu.Unlock()

	i := slices.IndexFunc(a.tools, func(t tool.Tool) bool { return t.Name() == name })
	if i < 0 {
		return false
	}

	a.tools = slices.Delete(a.tools, i, i+1)

	return true
}

// HasTool reports whether a tool is registered.
func (a *ModelAgent) HasTool(name string) bool {
	_, ok := a.GetTool(name)
	return ok
}

// GetTool retrieves a tool by name.
func (a *ModelAgent) GetTool(name string) (tool.Tool, bool) {
	a.toolsMu.RLock()
	defer a.toolsMu.RUnlock()

	for _, t := range a.tools {
		if t.Name() == name {
			return t, true
		}
	}

	return nil, false
}

// Tools returns the registered tools in registration order.
func (a *ModelAgent) Tools() []tool.Tool {
	a.toolsMu.RLock()
	defer a.toolsMu.RUnlock()

	return slices.Clone(a.tools)
}

// Model returns the language model.
func (a *ModelAgent) Model() model.Model { return a.llm }

// IsStreamingEnabled reports whether partial responses are requested.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// IsTransferEnabled reports whether the agent may hand off control.
func (a *ModelAgent) IsTransferEnabled() bool { return a.allowTransfer }

// OutputKey is the session state key the final answer is stored under.
func (a *ModelAgent) OutputKey() string { return a.outputKey }

// MaxHistoryMessages bounds the conversation window sent to the model.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// ToolTimeout bounds a single tool call.
func (a *ModelAgent) ToolTimeout() time.Duration { return a.toolTimeout }

// ResolveInstructions returns the raw instruction; the flow renders it.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// TransferTargets lists the agents reachable by transfer_to_agent: the
// sub-agents, plus the parent and its other children when the parent is a
// model agent. Children of a ParallelAgent stay on their own branch.
func (a *ModelAgent) TransferTargets() []core.Agent {
	if !a.allowTransfer {
		return nil
	}

	targets := a.SubAgents()

	if parent, ok := a.Parent().(*ModelAgent); ok && parent != nil {
		targets = append(targets, parent)

		for _, peer := range parent.SubAgents() {
			if peer.Name() != a.Name() {
				targets = append(targets, peer)
			}
		}
	}

	return targets
}

// TransferToAgent runs the named agent of this hierarchy in place of the
// current one. The hand-off counts against the run's delegation depth.
func (a *ModelAgent) TransferToAgent(runCtx *core.RunContext, agentName string) error {
	target := Root(a).FindAgent(agentName)
	if target == nil {
		return fmt.Errorf("agent '%s' not found in hierarchy", agentName)
	}

	childCtx, err := runCtx.Transfer(Info(target))
	if err != nil {
		return err
	}

	return target.Run(childCtx)
}

// Run drives the agent through the flow chosen for its capabilities.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "run", runCtx.RunID, "depth", runCtx.TransferDepth)

	fl := flow.SelectFlow(a)

	runCtx.LogDebug("agent.flow.selected", "agent", a.Name(), "flow", fmt.Sprintf("%T", fl))

	if err := fl.Run(runCtx); err != nil {
		runCtx.LogError("agent.flow.error", "agent", a.Name(), "error", err.Error())
		return fmt.Errorf("agent %s: %w", a.Name(), err)
	}

	runCtx.LogDebug("agent.run.complete", "agent", a.Name())

	return nil
}
