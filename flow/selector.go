package flow

// SingleAgentFlow runs a standalone agent: no transfers, no delegation.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates a flow with instruction and content processors.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	f := NewBaseFlow(agent)

	f.AddRequestProcessor(NewInstructionsProcessor())
	f.AddRequestProcessor(NewContentsProcessor())

	return &SingleAgentFlow{BaseFlow: f}
}

// MultiAgentFlow additionally offers the transfer_to_agent tool and lists
// the reachable agents in the instructions.
type MultiAgentFlow struct{ *BaseFlow }

// NewMultiAgentFlow creates a transfer-capable flow.
func NewMultiAgentFlow(agent FlowAgent) *MultiAgentFlow {
	f := NewBaseFlow(agent)
	f.transfer = true

	f.AddRequestProcessor(NewInstructionsProcessor())
	f.AddRequestProcessor(NewTransferInstructionsProcessor())
	f.AddRequestProcessor(NewContentsProcessor())

	return &MultiAgentFlow{BaseFlow: f}
}

// SelectFlow picks SingleAgentFlow for isolated agents and MultiAgentFlow
// when the agent may transfer control.
func SelectFlow(agent FlowAgent) Flow {
	if !agent.IsTransferEnabled() || len(agent.TransferTargets()) == 0 {
		return NewSingleAgentFlow(agent)
	}

	return NewMultiAgentFlow(agent)
}
