// Package orchestrator is the multi-agent task coordinator. A coordinator
// agent delegates to four specialists (research, analysis, code, report)
// through transfer_to_agent. In fan-out mode every specialist works on the
// task at once and the answers are concatenated.
package orchestrator

import (
	"net/http"
	"time"

	"github.com/hupe1980/assistants/agent"
	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/internal/config"
	"github.com/hupe1980/assistants/internal/research"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/runner"
	"github.com/hupe1980/assistants/tool"
)

const (
	CoordinatorName = "task_coordinator"
	FanoutName      = "task_fanout"
	AppName         = "multi_agent_orchestrator_app"
	UserID          = "default_user"
	SessionID       = "orchestrator_session"
	Description     = "Coordinates a team of specialized agents to complete complex tasks"

	// MaxDelegationDepth bounds hand-offs between agents per task.
	MaxDelegationDepth = 3
	// TaskTimeout bounds one task end to end.
	TaskTimeout = 300 * time.Second
)

// Specialist names.
const (
	ResearchAgentName = "research_agent"
	AnalysisAgentName = "analysis_agent"
	CodeAgentName     = "code_agent"
	ReportAgentName   = "report_agent"
)

// CoordinatorInstruction is the system prompt of the coordinator.
const CoordinatorInstruction = `You are the coordinator of a team of specialized AI agents.

Your team includes:
1. research_agent - Gathers information from various sources
2. analysis_agent - Analyzes data and provides insights
3. code_agent - Writes and reviews code
4. report_agent - Creates comprehensive reports

Your responsibilities:
1. Understand the user's request and break it into subtasks
2. Delegate subtasks to the appropriate specialized agents
3. Coordinate the work between agents
4. Synthesize results from multiple agents
5. Present a cohesive final result to the user

When given a complex task:
1. Analyze what needs to be done
2. Determine which agents are needed
3. Delegate by calling transfer_to_agent with the specialist's name
4. Monitor progress and handle any issues
5. Compile and present the final result

Always explain your coordination process to the user.`

// Specialist instructions.
const (
	ResearchInstruction = `You are a research specialist. Your job is to gather information, search for data, and provide comprehensive research findings. You excel at finding relevant information and synthesizing multiple sources. Use web_search to find sources.`

	AnalysisInstruction = `You are a data analysis specialist. Your job is to analyze information, identify patterns, draw insights, and make recommendations based on data. You excel at statistical analysis and finding meaningful insights. Use analyze_data for figures (general, statistical or trend).`

	CodeInstruction = `You are a software development specialist. Your job is to write code, review existing code, suggest improvements, and solve programming challenges. You excel at multiple programming languages and best practices. Use generate_code for a starting skeleton, then complete it.`

	ReportInstruction = `You are a documentation and reporting specialist. Your job is to create clear, well-structured reports, documentation, and presentations. You excel at organizing information and communicating clearly. Use format_report to lay out the final document.`
)

// Identity is the session identity used by the CLI.
var Identity = assistant.Identity{AppName: AppName, UserID: UserID, SessionID: SessionID}

// NewToolkitFromConfig backs web_search with the configured search chain.
func NewToolkitFromConfig(cfg *config.Config, logger logging.Logger) *Toolkit {
	client := &http.Client{Timeout: cfg.HTTP.Timeout}

	return NewToolkit(func(o *ToolkitOptions) {
		o.Searcher = research.NewSearcherFromConfig(cfg, client, logger)
		o.Logger = logger
	})
}

// NewSpecialists builds fresh instances of the four specialists. An agent
// belongs to one parent, so every coordinator needs its own set.
func NewSpecialists(m model.Model, tk *Toolkit) []core.Agent {
	return []core.Agent{
		specialist(ResearchAgentName, "Gathers information from various sources", ResearchInstruction, m, tk.WebSearchTool()),
		specialist(AnalysisAgentName, "Analyzes data and provides insights", AnalysisInstruction, m, tk.AnalyzeDataTool()),
		specialist(CodeAgentName, "Writes and reviews code", CodeInstruction, m, tk.GenerateCodeTool()),
		specialist(ReportAgentName, "Creates comprehensive reports", ReportInstruction, m, tk.FormatReportTool()),
	}
}

func specialist(name, description, instruction string, m model.Model, t tool.Tool) *agent.ModelAgent {
	return agent.NewModelAgent(name, m, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(instruction)
		o.Description = description
		o.Tools = []tool.Tool{t}
	})
}

// NewAgent assembles the coordinator with its specialists as sub-agents.
func NewAgent(m model.Model, tk *Toolkit) (*agent.ModelAgent, error) {
	coordinator := agent.NewModelAgent(CoordinatorName, m, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(CoordinatorInstruction)
		o.Description = Description
	})

	if err := coordinator.SetSubAgents(NewSpecialists(m, tk)...); err != nil {
		return nil, err
	}

	return coordinator, nil
}

// NewFanoutAgent runs every specialist on the task concurrently and joins
// their answers into one message.
func NewFanoutAgent(m model.Model, tk *Toolkit) (*agent.ParallelAgent, error) {
	return agent.NewParallelAgent(FanoutName, NewSpecialists(m, tk), func(o *agent.ParallelAgentOptions) {
		o.Description = "Sends the task to every specialist at once"
		o.Timeout = TaskTimeout
		o.Aggregate = true
	})
}

// AssistantOptions applies the delegation depth and task timeout.
func AssistantOptions(o *assistant.Options) {
	o.QueryTimeout = TaskTimeout
	o.RunnerOptions = append(o.RunnerOptions, func(ro *runner.Options) {
		ro.MaxTransferDepth = MaxDelegationDepth
	})
}

// REPLOptions returns the interactive loop settings.
func REPLOptions() assistant.REPLOptions {
	return assistant.REPLOptions{
		Prompt: "[Orchestrator] Task: ",
		Banner: []string{
			"This orchestrator coordinates multiple specialized agents:",
			"  - Research Agent - Information gathering",
			"  - Analysis Agent - Data analysis and insights",
			"  - Code Agent - Software development",
			"  - Report Agent - Documentation and reporting",
			"",
			"Give me a complex task and I'll coordinate the team to complete it!",
			"",
			"Examples:",
			"  - Research AI trends and create a summary report",
			"  - Analyze customer data and suggest improvements",
			"  - Write a Python script to analyze log files",
			"",
			"Type 'quit' or 'exit' to stop.",
		},
		Goodbye:      "Goodbye! Great working with the team!",
		ResetMessage: "Conversation reset!",
	}
}
