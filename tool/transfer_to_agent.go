package tool

import (
	"fmt"
	"slices"

	"github.com/hupe1980/assistants/core"
)

// TransferToAgentName is the reserved name of the delegation tool.
const TransferToAgentName = "transfer_to_agent"

type transferToAgentTool struct {
	targets []string
}

// NewTransferToAgentTool builds the delegation tool. When targets is not empty
// the agent argument is restricted to those names.
func NewTransferToAgentTool(targets ...string) Tool {
	return &transferToAgentTool{targets: targets}
}

func (t *transferToAgentTool) Name() string { return TransferToAgentName }

func (t *transferToAgentTool) Description() string {
	return "Transfer control to another agent by name. Use when another agent is better suited to handle the request."
}

func (t *transferToAgentTool) Parameters() map[string]any {
	agent := StringParam("Target agent name")
	if len(t.targets) > 0 {
		agent = EnumParam("Target agent name", t.targets...)
	}

	return Object(map[string]any{"agent": agent}, "agent")
}

func (t *transferToAgentTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	name := String(args, "agent", "")
	if name == "" {
		return nil, NewToolError(TransferToAgentName, "field 'agent' must be a non-empty string", CodeValidation)
	}

	if len(t.targets) > 0 && !slices.Contains(t.targets, name) {
		return nil, NewToolError(TransferToAgentName, fmt.Sprintf("unknown agent %q", name), CodeValidation)
	}

	tc.TransferToAgent(name)

	return fmt.Sprintf("Transferred to %s.", name), nil
}
