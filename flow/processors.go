package flow

import (
	"fmt"
	"strings"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/internal/util"
	"github.com/hupe1980/assistants/model"
)

// InstructionsProcessor resolves the agent instruction and renders it as a
// template over the session state.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.Name(), "length", len(instructions))

	if runCtx.Session == nil {
		req.Instructions = instructions
		return nil
	}

	rendered, err := util.RenderTemplate(instructions, runCtx.Session.StateSnapshot())
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	req.Instructions = rendered

	return nil
}

// ContentsProcessor assembles the conversation history visible to the agent.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest fills req.Contents from the session history. Events from
// sibling branches are hidden and the window is capped at the agent's
// MaxHistoryMessages.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	events := runCtx.History()

	visible := make([]core.Event, 0, len(events))
	for _, ev := range events {
		if len(ev.Content.Parts) == 0 || !branchVisible(ev.Branch, runCtx.Branch) {
			continue
		}
		visible = append(visible, ev)
	}

	if limit := agent.MaxHistoryMessages(); limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]

		// Tool results cut off from their call confuse providers.
		for len(visible) > 0 && visible[0].Content.Role == core.RoleTool {
			visible = visible[1:]
		}
	}

	contents := make([]core.Content, 0, len(visible))
	for _, ev := range visible {
		contents = append(contents, *ev.Content)
	}

	req.Contents = contents

	return nil
}

// branchVisible reports whether an event on branch is part of current's
// lineage.
func branchVisible(branch, current string) bool {
	if branch == "" || branch == current {
		return true
	}

	return strings.HasPrefix(current, branch+".")
}

// TransferInstructionsProcessor appends the list of agents this agent may
// hand off to, so the model knows when transfer_to_agent applies.
type TransferInstructionsProcessor struct{}

// NewTransferInstructionsProcessor creates the processor.
func NewTransferInstructionsProcessor() *TransferInstructionsProcessor {
	return &TransferInstructionsProcessor{}
}

// Name returns the processor's identifier.
func (p *TransferInstructionsProcessor) Name() string { return "transfer_instructions" }

// ProcessRequest extends req.Instructions with the transfer targets.
func (p *TransferInstructionsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, agent FlowAgent) error {
	targets := agent.TransferTargets()
	if len(targets) == 0 {
		return nil
	}

	var sb strings.Builder

	sb.WriteString(req.Instructions)

	if req.Instructions != "" {
		sb.WriteString("\n\n")
	}

	sb.WriteString("You can hand the conversation to one of these agents with the transfer_to_agent tool when it is better suited:\n")

	for _, a := range targets {
		fmt.Fprintf(&sb, "- %s: %s\n", a.Name(), a.Description())
	}

	req.Instructions = strings.TrimRight(sb.String(), "\n")

	return nil
}
