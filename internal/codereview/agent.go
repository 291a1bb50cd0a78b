// Package codereview is the code review assistant. Its tools measure a
// source file (line counts, structure, complexity) and flag common issues;
// the model turns the measurements into a review.
//
// Go files are parsed with go/parser. Python files are scanned line by line.
// Other languages get line counts and the language independent checks.
package codereview

import (
	"fmt"

	"github.com/hupe1980/assistants/agent"
	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/internal/config"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/model"
)

const (
	AgentName   = "code_reviewer"
	AppName     = "code_review_app"
	UserID      = "default_user"
	SessionID   = "code_review_session"
	Description = "An expert code reviewer that analyzes code quality, detects issues, and suggests improvements."
	MaxHistory  = 20
)

// Instruction is the system prompt of the code reviewer.
const Instruction = `You are an expert code reviewer that helps developers write better code.

Your capabilities:
- Analyze code structure and quality using analyze_code
- Check code complexity and metrics using check_code_metrics
- Detect potential bugs and issues using detect_issues
- Suggest improvements and best practices

When reviewing code:
1. Start by analyzing the overall structure and style
2. Check for common issues, bugs, and security vulnerabilities
3. Evaluate code complexity and maintainability
4. Suggest specific improvements with examples
5. Explain WHY each issue matters
6. Be constructive and educational in your feedback
7. Prioritize issues by severity (critical, major, minor)

Focus on:
- Code readability and maintainability
- Performance optimizations
- Security best practices
- Design patterns and architecture
- Testing and error handling`

// Identity is the session identity used by the CLI.
var Identity = assistant.Identity{AppName: AppName, UserID: UserID, SessionID: SessionID}

// NewToolkitFromConfig builds a Toolkit logging through logger. The reviewer
// has no configurable backends.
func NewToolkitFromConfig(_ *config.Config, logger logging.Logger) *Toolkit {
	return NewToolkit(func(o *ToolkitOptions) { o.Logger = logger })
}

// NewAgent assembles the code review agent.
func NewAgent(m model.Model, tk *Toolkit) *agent.ModelAgent {
	return agent.NewModelAgent(AgentName, m, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(Instruction)
		o.Description = Description
		o.MaxHistoryMessages = MaxHistory
		o.Tools = tk.Tools()
	})
}

// ReviewPrompt asks for a full review of one file.
func ReviewPrompt(path string) string {
	return fmt.Sprintf(`Please perform a comprehensive code review of the file: %s

Follow these steps:
1. Use analyze_code to understand the structure
2. Use check_code_metrics to evaluate complexity
3. Use detect_issues to find problems
4. Provide a detailed review with:
   - Summary of the code
   - Issues found (grouped by severity)
   - Specific suggestions for improvement
   - Overall code quality assessment`, path)
}
