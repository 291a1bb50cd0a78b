// Package research is the research assistant: it searches the web, reads
// articles, keeps findings in session memory and writes Markdown reports.
package research

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/assistants/agent"
	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/model"
)

const (
	AgentName      = "research_assistant"
	AppName        = "research_assistant_app"
	UserID         = "default_user"
	SessionID      = "research_session"
	Description    = "An expert research assistant that searches the web, analyzes content, and generates comprehensive research reports."
	MaxHistory     = 15
	DefaultSources = 5
)

// Instruction is the system prompt of the research assistant.
const Instruction = `You are an expert research assistant that helps users find, analyze, and synthesize information.

Your capabilities:
- Search the web for relevant information using the search_web tool
- Extract and read full articles from URLs using the extract_article_content tool
- Save important findings using the save_finding tool
- Turn the collected findings into a report using generate_report and store it with save_report

When conducting research:
1. Start by searching for relevant sources on the topic
2. Review the search results and identify the most promising sources
3. Extract content from 3-5 high-quality sources
4. As you read, save key findings and insights using save_finding
5. Synthesize the information into a coherent response
6. Always cite your sources with URLs
7. Be objective and present multiple perspectives when relevant

Guidelines:
- Prioritize credible sources (educational institutions, government sites, reputable publications)
- Cross-reference information across multiple sources
- Note when sources contradict each other
- Be clear about what is fact vs. opinion
- Save specific, actionable findings rather than vague statements`

// Identity is the session identity used by the CLI.
var Identity = assistant.Identity{AppName: AppName, UserID: UserID, SessionID: SessionID}

// NewAgent assembles the research agent.
func NewAgent(m model.Model, tk *Toolkit) *agent.ModelAgent {
	return agent.NewModelAgent(AgentName, m, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(Instruction)
		o.Description = Description
		o.MaxHistoryMessages = MaxHistory
		o.Tools = tk.Tools()
	})
}

// ReportPrompt asks the agent to research topic and save a report.
func ReportPrompt(topic string, numSources int, filename string) string {
	return fmt.Sprintf(`Please conduct comprehensive research on the topic: "%s"

Follow these steps:
1. Search for reliable sources on this topic (aim for %d sources)
2. Extract and read content from the most promising sources
3. Save key findings as you discover them using save_finding
4. Call generate_report for the topic with your executive summary
5. Save the report with save_report using the filename "%s"
6. Reply with the report

Focus on factual information from credible sources.`, topic, numSources, filename)
}

// ReportCommand implements the REPL command "report <topic>".
func ReportCommand(asst *assistant.Assistant) assistant.Command {
	return func(ctx context.Context, topic string) (string, error) {
		if topic == "" {
			return "", errors.New("Please specify a topic for the report")
		}

		name := topic
		if r := []rune(name); len(r) > 30 {
			name = string(r[:30])
		}

		return asst.Query(ctx, ReportPrompt(topic, DefaultSources, SanitizeFilename("research-"+name))), nil
	}
}

// REPLOptions returns the interactive loop settings.
func REPLOptions(asst *assistant.Assistant) assistant.REPLOptions {
	return assistant.REPLOptions{
		Prompt: "\n[Research] You: ",
		Banner: []string{
			"Ask me to research any topic!",
			"Examples:",
			"  - Research the latest developments in quantum computing",
			"  - What are the environmental impacts of electric vehicles?",
			"  - Compare different approaches to renewable energy",
			"",
			"Type 'report <topic>' to generate a full research report",
			"Type 'quit' or 'exit' to stop.",
		},
		Goodbye:      "Goodbye! Happy researching!",
		ResetMessage: "Research context cleared!",
		Commands:     map[string]assistant.Command{"report": ReportCommand(asst)},
	}
}
