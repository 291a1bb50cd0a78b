package agent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/assistants/core"
)

// ErrAlreadyAttached is returned by SetSubAgents when a child already has a
// different parent.
var ErrAlreadyAttached = errors.New("agent already has a parent")

// BaseAgent bundles lifecycle (Start/Stop), hierarchy management and identity.
// Embed it in concrete agents, call bind from the constructor and supply a
// Run method to satisfy core.Agent. Exported methods are goroutine-safe.
type BaseAgent struct {
	name        string
	description string

	mu        sync.Mutex
	active    int
	self      core.Agent // the concrete agent embedding this BaseAgent
	parent    core.Agent
	subAgents []core.Agent
}

// NewBaseAgent constructs a BaseAgent with a generated description.
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// bind records the concrete agent so hierarchy lookups return it instead of
// the embedded BaseAgent.
func (b *BaseAgent) bind(self core.Agent) { b.self = self }

// Name returns the agent name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns what the agent is for. Parents show it to the model
// when offering transfers.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// Start registers an active run. An agent may serve several sessions at
// once; Start fails only when the run context is already cancelled.
func (b *BaseAgent) Start(runCtx *core.RunContext) error {
	if err := runCtx.Err(); err != nil {
		return fmt.Errorf("start agent %s: %w", b.name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.active++

	return nil
}

// Stop ends an active run. It fails if no run is active.
func (b *BaseAgent) Stop(_ *core.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active == 0 {
		return errors.New("agent is not running")
	}

	b.active--

	return nil
}

// Running reports whether at least one run is active.
func (b *BaseAgent) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.active > 0
}

type parentSetter interface {
	attach(parent core.Agent) error
	detach()
}

// SetSubAgents replaces the child set. Previous children are detached; a new
// child that already belongs to another parent is rejected.
func (b *BaseAgent) SetSubAgents(children ...core.Agent) error {
	self := b.self
	if self == nil {
		return fmt.Errorf("agent %s is not bound to a concrete implementation", b.name)
	}

	b.mu.Lock()
	previous := b.subAgents
	b.mu.Unlock()

	for _, child := range previous {
		if s, ok := child.(parentSetter); ok {
			s.detach()
		}
	}

	attached := make([]core.Agent, 0, len(children))

	for _, child := range children {
		if s, ok := child.(parentSetter); ok {
			if err := s.attach(self); err != nil {
				for _, c := range attached {
					c.(parentSetter).detach()
				}

				return fmt.Errorf("sub-agent %s: %w", child.Name(), err)
			}
		}

		attached = append(attached, child)
	}

	b.mu.Lock()
	b.subAgents = attached
	b.mu.Unlock()

	return nil
}

func (b *BaseAgent) attach(parent core.Agent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.parent != nil && b.parent != parent {
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, b.parent.Name())
	}

	b.parent = parent

	return nil
}

func (b *BaseAgent) detach() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.parent = nil
}

// Parent returns the parent agent or nil for a root.
func (b *BaseAgent) Parent() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.parent
}

// SubAgents returns a copy of the child agents.
func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]core.Agent, len(b.subAgents))
	copy(result, b.subAgents)

	return result
}

// FindAgent performs a depth-first search of the subtree rooted at this
// agent, itself included.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	if b.name == name {
		return b.self
	}

	for _, child := range b.SubAgents() {
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}

	return nil
}

// Root walks up the parent chain.
func Root(a core.Agent) core.Agent {
	for a.Parent() != nil {
		a = a.Parent()
	}

	return a
}

// Info returns the AgentInfo of a.
func Info(a core.Agent) core.AgentInfo {
	switch a.(type) {
	case *ModelAgent:
		return core.AgentInfo{Name: a.Name(), Type: "model"}
	case *ParallelAgent:
		return core.AgentInfo{Name: a.Name(), Type: "parallel"}
	default:
		return core.AgentInfo{Name: a.Name(), Type: "custom"}
	}
}
