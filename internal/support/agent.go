// Package support is the customer support assistant. It answers from a
// vector knowledge base and hands unresolved issues to humans through a
// ticket system kept in bbolt.
package support

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/assistants/agent"
	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/internal/config"
	"github.com/hupe1980/assistants/internal/knowledge"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/model"
)

const (
	AgentName   = "support_assistant"
	AppName     = "support_assistant_app"
	UserID      = "default_user"
	SessionID   = "support_session"
	Description = "An intelligent customer support assistant with knowledge base access and ticket management."
	MaxHistory  = 20
)

// Instruction is the system prompt of the support assistant.
const Instruction = `You are a helpful customer support assistant.

Your capabilities:
- Search the knowledge base for answers using search_knowledge_base
- Create support tickets using create_ticket
- Update ticket status using update_ticket
- View ticket information using get_ticket

When helping customers:
1. First search the knowledge base for relevant information
2. Provide clear, friendly, and helpful responses
3. If you cannot help, create a support ticket for human review
4. Always be polite and empathetic
5. Ask clarifying questions if needed

Knowledge base contains:
- Product documentation
- FAQs
- Troubleshooting guides
- Policy information`

// Identity is the session identity used by the CLI.
var Identity = assistant.Identity{AppName: AppName, UserID: UserID, SessionID: SessionID}

// NewEmbedder returns the embedder named by cfg.Support.EmbeddingProvider.
func NewEmbedder(cfg *config.Config) (knowledge.Embedder, error) {
	switch strings.ToLower(cfg.Support.EmbeddingProvider) {
	case "", "hashing":
		return knowledge.NewHashingEmbedder(), nil
	case "openai":
		if cfg.Model.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai embeddings: missing api key")
		}

		return knowledge.NewOpenAIEmbedder(func(o *knowledge.OpenAIEmbedderOptions) {
			o.APIKey = cfg.Model.OpenAIAPIKey
			o.Model = cfg.Support.EmbeddingModel

			if cfg.Model.Provider == config.ProviderOpenAI {
				o.BaseURL = cfg.Model.BaseURL
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Support.EmbeddingProvider)
	}
}

// NewVectorStore opens Postgres with pgvector when a database URL is
// configured and the local SQLite store otherwise.
func NewVectorStore(ctx context.Context, cfg *config.Config) (knowledge.VectorStore, error) {
	if cfg.Support.DatabaseURL != "" {
		return knowledge.OpenPGVector(ctx, cfg.Support.DatabaseURL)
	}

	return knowledge.OpenSQLite(cfg.VectorDBPath())
}

// NewKnowledgeBase opens the configured knowledge base and fills it when
// empty, first from the knowledge directory and then from DefaultArticles.
func NewKnowledgeBase(ctx context.Context, cfg *config.Config, logger logging.Logger) (*knowledge.Base, error) {
	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	store, err := NewVectorStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	kb := knowledge.New(store, embedder, func(o *knowledge.BaseOptions) { o.Logger = logger })

	if err := Seed(ctx, kb, cfg.KnowledgeDir()); err != nil {
		_ = kb.Close()
		return nil, err
	}

	return kb, nil
}

// Seed loads dir into an empty knowledge base and falls back to
// DefaultArticles when dir has nothing to offer.
func Seed(ctx context.Context, kb *knowledge.Base, dir string) error {
	if _, err := kb.LoadIfEmpty(ctx, dir); err != nil {
		return fmt.Errorf("loading knowledge directory: %w", err)
	}

	n, err := kb.Count(ctx)
	if err != nil {
		return err
	}

	if n == 0 {
		return kb.Add(ctx, DefaultArticles...)
	}

	return nil
}

// NewToolkitFromConfig opens the knowledge base and ticket store. The caller
// closes the toolkit.
func NewToolkitFromConfig(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Toolkit, error) {
	kb, err := NewKnowledgeBase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	tickets, err := OpenTicketStore(cfg.TicketsDBPath(), nil)
	if err != nil {
		_ = kb.Close()
		return nil, fmt.Errorf("ticket store: %w", err)
	}

	return NewToolkit(kb, tickets, func(o *ToolkitOptions) {
		o.Logger = logger

		if cfg.Support.TopK > 0 {
			o.TopK = cfg.Support.TopK
		}
	}), nil
}

// NewAgent assembles the support agent.
func NewAgent(m model.Model, tk *Toolkit) *agent.ModelAgent {
	return agent.NewModelAgent(AgentName, m, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(Instruction)
		o.Description = Description
		o.MaxHistoryMessages = MaxHistory
		o.Tools = tk.Tools()
	})
}

// REPLOptions returns the interactive loop settings. The support loop has
// no reset command.
func REPLOptions() assistant.REPLOptions {
	return assistant.REPLOptions{
		Prompt: "\n[Support] You: ",
		Banner: []string{
			"How can I help you today?",
			"I can answer questions from our knowledge base and create support tickets.",
			"",
			"Type 'quit' or 'exit' to stop.",
		},
		Goodbye: "Goodbye! Have a great day!",
	}
}
