package core

// Agent is the unit of execution driven by the runner. Agents emit events
// through the RunContext and wait for the runner's resume signal after each
// non-partial event so persistence stays ordered.
//
// Sub-agent wiring follows a single-parent rule: an agent may only be
// attached to one parent.
type Agent interface {
	Name() string
	Description() string
	Start(runCtx *RunContext) error
	Stop(runCtx *RunContext) error
	Run(runCtx *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent.
type AgentInfo struct{ Name, Type string }
