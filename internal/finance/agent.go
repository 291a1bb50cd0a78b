// Package finance is the personal finance assistant. It records income and
// expenses, tracks budgets and savings goals and summarises spending, all
// kept in a local SQLite database.
package finance

import (
	"fmt"

	"github.com/hupe1980/assistants/agent"
	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/internal/config"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/model"
)

const (
	AgentName   = "finance_assistant"
	AppName     = "finance_assistant_app"
	UserID      = "default_user"
	SessionID   = "finance_session"
	Description = "A helpful personal finance assistant that tracks expenses, manages budgets, and helps achieve financial goals."
	MaxHistory  = 20
)

// Instruction is the system prompt of the finance assistant.
const Instruction = `You are a helpful personal finance assistant that helps users manage their money wisely.

Your capabilities:
- Track income and expenses using add_transaction
- View spending summaries and analysis using get_spending_summary
- Create and manage budgets using manage_budget
- Track financial goals using manage_goal
- Analyze spending patterns using analyze_spending_patterns
- Provide financial insights and recommendations

When helping users:
1. Be conversational and friendly
2. Extract transaction details from natural language (amount, category, description)
3. Provide clear spending insights
4. Offer practical budgeting advice
5. Help users stay on track with their financial goals
6. Be encouraging and supportive about financial progress

Transaction categories include:
- Food & Dining (groceries, restaurants, coffee shops)
- Transportation (gas, parking, public transit, ride-sharing)
- Shopping (clothing, electronics, general shopping)
- Entertainment (movies, concerts, hobbies, streaming services)
- Bills & Utilities (rent, electricity, water, internet, phone)
- Healthcare (medical, pharmacy, insurance)
- Income (salary, freelance, investments, gifts)
- Savings (emergency fund, investments, goals)
- Other

Always be positive and help users make good financial decisions!`

// Identity is the session identity used by the CLI.
var Identity = assistant.Identity{AppName: AppName, UserID: UserID, SessionID: SessionID}

// NewToolkitFromConfig opens the finance database below the data directory.
// The caller closes the toolkit.
func NewToolkitFromConfig(cfg *config.Config, logger logging.Logger) (*Toolkit, error) {
	store, err := Open(cfg.FinanceDBPath())
	if err != nil {
		return nil, fmt.Errorf("finance store: %w", err)
	}

	return NewToolkit(store, func(o *ToolkitOptions) { o.Logger = logger }), nil
}

// NewAgent assembles the finance agent.
func NewAgent(m model.Model, tk *Toolkit) *agent.ModelAgent {
	return agent.NewModelAgent(AgentName, m, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(Instruction)
		o.Description = Description
		o.MaxHistoryMessages = MaxHistory
		o.Tools = tk.Tools()
	})
}

// REPLOptions returns the interactive loop settings.
func REPLOptions() assistant.REPLOptions {
	return assistant.REPLOptions{
		Prompt: "\nYou: ",
		Banner: []string{
			"I can help you manage your finances!",
			"Examples:",
			"  - I spent $45 on groceries",
			"  - Show me my spending this month",
			"  - Create a $500 budget for food",
			"  - I want to save $5000 for vacation",
			"",
			"Type 'quit' or 'exit' to stop.",
		},
		Goodbye:      "Goodbye! Keep up the good financial habits!",
		ResetMessage: "Conversation reset!",
	}
}
