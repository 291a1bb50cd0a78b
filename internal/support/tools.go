package support

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/internal/knowledge"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/tool"
)

const (
	// DefaultTopK is the number of articles returned by a search.
	DefaultTopK = 3
	// snippetLength caps the article text shown per result, in characters.
	snippetLength = 300
	timeLayout    = "2006-01-02T15:04:05"
)

// ToolkitOptions configures a Toolkit.
type ToolkitOptions struct {
	TopK int
	// MaxDistance drops search hits at or beyond this cosine distance.
	// Distance 1 means the article shares nothing with the query.
	MaxDistance float64
	Logger      logging.Logger
}

// Toolkit exposes the knowledge base and ticket tools.
type Toolkit struct {
	kb      *knowledge.Base
	tickets *TicketStore
	opts    ToolkitOptions
}

// NewToolkit creates a Toolkit.
func NewToolkit(kb *knowledge.Base, tickets *TicketStore, optFns ...func(o *ToolkitOptions)) *Toolkit {
	opts := ToolkitOptions{TopK: DefaultTopK, MaxDistance: 1, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Toolkit{kb: kb, tickets: tickets, opts: opts}
}

// Tickets returns the ticket store.
func (tk *Toolkit) Tickets() *TicketStore { return tk.tickets }

// Close closes the ticket store and the knowledge base.
func (tk *Toolkit) Close() error {
	return errors.Join(tk.tickets.Close(), tk.kb.Close())
}

// Tools returns search_knowledge_base, create_ticket, get_ticket and
// update_ticket.
func (tk *Toolkit) Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"search_knowledge_base",
			"Search the knowledge base for product information, FAQs, and troubleshooting guides.",
			tool.Object(map[string]any{
				"query": tool.StringParam("Search query"),
				"top_k": tool.IntParam(fmt.Sprintf("Number of results to return (default %d)", tk.opts.TopK)),
			}, "query"),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.SearchKnowledgeBase(tc.Context(), tool.String(args, "query", ""), tool.Int(args, "top_k", tk.opts.TopK)), nil
			},
		),
		tool.NewFunctionTool(
			"create_ticket",
			"Create a new support ticket for issues that need human review.",
			tool.Object(map[string]any{
				"subject":        tool.StringParam("Ticket subject"),
				"description":    tool.StringParam("Detailed description of the issue"),
				"priority":       tool.StringParam("Priority level: " + strings.Join(Priorities, ", ") + " (default medium)"),
				"customer_email": tool.StringParam("Optional customer email"),
			}, "subject", "description"),
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return tk.CreateTicket(
					tool.String(args, "subject", ""),
					tool.String(args, "description", ""),
					tool.String(args, "priority", "medium"),
					tool.String(args, "customer_email", ""),
				), nil
			},
		),
		tool.NewFunctionTool(
			"get_ticket",
			"Get information about an existing support ticket.",
			tool.Object(map[string]any{
				"ticket_id": tool.StringParam("Ticket ID (format: TKT-YYYYMMDDHHMMSS)"),
			}, "ticket_id"),
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return tk.GetTicket(tool.String(args, "ticket_id", "")), nil
			},
		),
		tool.NewFunctionTool(
			"update_ticket",
			"Update a ticket's status or add notes.",
			tool.Object(map[string]any{
				"ticket_id": tool.StringParam("Ticket ID"),
				"status":    tool.StringParam("New status (optional): " + strings.Join(Statuses, ", ")),
				"note":      tool.StringParam("Note to add (optional)"),
			}, "ticket_id"),
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return tk.UpdateTicket(
					tool.String(args, "ticket_id", ""),
					tool.String(args, "status", ""),
					tool.String(args, "note", ""),
				), nil
			},
		),
	}
}

// SearchKnowledgeBase lists the articles closest to query.
func (tk *Toolkit) SearchKnowledgeBase(ctx context.Context, query string, topK int) string {
	if strings.TrimSpace(query) == "" {
		return "Error: query is required"
	}

	if topK <= 0 {
		topK = tk.opts.TopK
	}

	results, err := tk.kb.Search(ctx, query, topK)
	if err != nil {
		tk.opts.Logger.Error("support.knowledge.search.failed", "error", err.Error())
		return fmt.Sprintf("Error searching knowledge base: %v", err)
	}

	hits := results[:0]

	for _, r := range results {
		if r.Distance < tk.opts.MaxDistance {
			hits = append(hits, r)
		}
	}

	if len(hits) == 0 {
		return "No relevant information found in knowledge base for your query."
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Found %d relevant articles:\n\n", len(hits))

	for i, r := range hits {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, snippet(r.Text))

		if source := r.Metadata["source"]; source != "" {
			fmt.Fprintf(&sb, "   Source: %s\n", source)
		}

		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// CreateTicket opens a ticket for human follow-up.
func (tk *Toolkit) CreateTicket(subject, description, priority, email string) string {
	subject = strings.TrimSpace(subject)
	description = strings.TrimSpace(description)

	if subject == "" || description == "" {
		return "Error: subject and description are required"
	}

	priority = strings.ToLower(strings.TrimSpace(priority))
	if priority == "" {
		priority = "medium"
	}

	if !ValidPriority(priority) {
		return fmt.Sprintf("Error: invalid priority %q. Use one of: %s", priority, strings.Join(Priorities, ", "))
	}

	t := &Ticket{
		Subject:       subject,
		Description:   description,
		Priority:      priority,
		CustomerEmail: strings.TrimSpace(email),
	}

	if err := tk.tickets.Create(t); err != nil {
		tk.opts.Logger.Error("support.ticket.create.failed", "error", err.Error())
		return fmt.Sprintf("Error creating ticket: %v", err)
	}

	tk.opts.Logger.Info("support.ticket.created", "ticket_id", t.ID, "priority", priority)

	return fmt.Sprintf("Support ticket %s created successfully with %s priority. A team member will review it soon.", t.ID, priority)
}

// GetTicket describes a ticket and its notes.
func (tk *Toolkit) GetTicket(id string) string {
	t, err := tk.tickets.Get(id)
	if err != nil {
		return tk.ticketError(id, "getting", err)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Ticket %s:\n", t.ID)
	fmt.Fprintf(&sb, "  Subject: %s\n", t.Subject)
	fmt.Fprintf(&sb, "  Status: %s\n", t.Status)
	fmt.Fprintf(&sb, "  Priority: %s\n", t.Priority)
	fmt.Fprintf(&sb, "  Created: %s\n", t.CreatedAt.Format(timeLayout))

	if t.CustomerEmail != "" {
		fmt.Fprintf(&sb, "  Customer: %s\n", t.CustomerEmail)
	}

	fmt.Fprintf(&sb, "  Description: %s\n", t.Description)

	if len(t.Notes) > 0 {
		sb.WriteString("\n  Notes:\n")

		for _, n := range t.Notes {
			fmt.Fprintf(&sb, "    - %s: %s\n", n.Timestamp.Format(timeLayout), n.Note)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// UpdateTicket changes a ticket's status and/or appends a note.
func (tk *Toolkit) UpdateTicket(id, status, note string) string {
	changes, err := tk.tickets.Update(id, TicketUpdate{Status: status, Note: note})
	if err != nil {
		return tk.ticketError(id, "updating", err)
	}

	if len(changes) == 0 {
		return fmt.Sprintf("No updates made to ticket %s", id)
	}

	tk.opts.Logger.Info("support.ticket.updated", "ticket_id", id, "changes", strings.Join(changes, ", "))

	return fmt.Sprintf("Ticket %s updated: %s", id, strings.Join(changes, ", "))
}

func (tk *Toolkit) ticketError(id, verb string, err error) string {
	if errors.Is(err, ErrTicketNotFound) {
		return fmt.Sprintf("Ticket %s not found.", id)
	}

	tk.opts.Logger.Error("support.ticket."+verb+".failed", "ticket_id", id, "error", err.Error())

	return fmt.Sprintf("Error %s ticket: %v", verb, err)
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")

	r := []rune(text)
	if len(r) <= snippetLength {
		return text
	}

	return string(r[:snippetLength]) + "..."
}
