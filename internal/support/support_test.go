package support

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/internal/config"
	"github.com/hupe1980/assistants/internal/knowledge"
	"github.com/hupe1980/assistants/internal/testutil"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/tool"
)

var testNow = time.Date(2024, time.May, 20, 12, 0, 0, 0, time.UTC)

func newTicketStore(t *testing.T) *TicketStore {
	t.Helper()

	s, err := OpenTicketStore(filepath.Join(t.TempDir(), "tickets", "tickets.db"), func() time.Time { return testNow })
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func newTestToolkit(t *testing.T) *Toolkit {
	t.Helper()

	ctx := context.Background()

	store, err := knowledge.OpenSQLite(":memory:")
	require.NoError(t, err)

	kb := knowledge.New(store, knowledge.NewHashingEmbedder())
	t.Cleanup(func() { _ = kb.Close() })

	require.NoError(t, Seed(ctx, kb, filepath.Join(t.TempDir(), "no-knowledge")))

	return NewToolkit(kb, newTicketStore(t))
}

func TestTicketStore_CreateAndCollide(t *testing.T) {
	s := newTicketStore(t)

	first := &Ticket{Subject: "a", Description: "b", Priority: "low"}
	require.NoError(t, s.Create(first))
	assert.Equal(t, "TKT-20240520120000", first.ID)
	assert.Equal(t, StatusOpen, first.Status)

	second := &Ticket{Subject: "c", Description: "d", Priority: "high"}
	require.NoError(t, s.Create(second))
	assert.Equal(t, "TKT-20240520120000-2", second.ID)

	got, err := s.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Subject)
	assert.Empty(t, got.Notes)
	assert.True(t, got.CreatedAt.Equal(testNow))

	tickets, err := s.List()
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, second.ID, tickets[1].ID)

	_, err = s.Get("TKT-1")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	_, err = s.Update("TKT-1", TicketUpdate{Status: StatusClosed})
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestTicketStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.db")

	s, err := OpenTicketStore(path, func() time.Time { return testNow })
	require.NoError(t, err)

	tk := &Ticket{Subject: "s", Description: "d", Priority: "medium"}
	require.NoError(t, s.Create(tk))
	require.NoError(t, s.Close())

	s, err = OpenTicketStore(path, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "medium", got.Priority)
}

func TestToolkit_SearchKnowledgeBase(t *testing.T) {
	tk := newTestToolkit(t)
	ctx := context.Background()

	out := tk.SearchKnowledgeBase(ctx, "I can't remember my password, how do I reset it?", 1)
	assert.True(t, strings.HasPrefix(out, "Found 1 relevant articles:\n\n1. How do I reset my password?"), out)
	assert.Contains(t, out, "   Source: faq-account.md")

	out = tk.SearchKnowledgeBase(ctx, "when will my express shipping arrive", 0)
	assert.Contains(t, out, "1. How long does shipping take?")

	assert.Equal(t, "No relevant information found in knowledge base for your query.", tk.SearchKnowledgeBase(ctx, "zebra xylophone", 3))
	assert.Equal(t, "Error: query is required", tk.SearchKnowledgeBase(ctx, " ", 3))
}

func TestToolkit_SearchTruncates(t *testing.T) {
	tk := newTestToolkit(t)
	ctx := context.Background()

	long := "Warranty coverage " + strings.Repeat("details ", 60)
	require.NoError(t, tk.kb.Add(ctx, knowledge.Document{ID: "warranty", Text: long}))

	out := tk.SearchKnowledgeBase(ctx, "warranty coverage", 1)
	assert.Contains(t, out, "1. Warranty coverage details")
	assert.True(t, strings.HasSuffix(out, "..."), out)
	assert.NotContains(t, out, "Source:")
}

func TestToolkit_Tickets(t *testing.T) {
	tk := newTestToolkit(t)

	assert.Equal(t,
		"Support ticket TKT-20240520120000 created successfully with high priority. A team member will review it soon.",
		tk.CreateTicket("Login broken", "Cannot log in since the update", "HIGH", "jane@example.com"))

	assert.Contains(t, tk.CreateTicket("x", "y", "urgent", ""), `Error: invalid priority "urgent"`)
	assert.Equal(t, "Error: subject and description are required", tk.CreateTicket("", "y", "", ""))

	id := "TKT-20240520120000"

	assert.Equal(t, "No updates made to ticket "+id, tk.UpdateTicket(id, "pending", ""))
	assert.Equal(t, "Ticket "+id+" updated: status changed to resolved, note added", tk.UpdateTicket(id, "Resolved", "Password reset done"))

	assert.Equal(t, strings.Join([]string{
		"Ticket " + id + ":",
		"  Subject: Login broken",
		"  Status: resolved",
		"  Priority: high",
		"  Created: 2024-05-20T12:00:00",
		"  Customer: jane@example.com",
		"  Description: Cannot log in since the update",
		"",
		"  Notes:",
		"    - 2024-05-20T12:00:00: Password reset done",
	}, "\n"), tk.GetTicket(id))

	assert.Equal(t, "Ticket TKT-404 not found.", tk.GetTicket("TKT-404"))
	assert.Equal(t, "Ticket TKT-404 not found.", tk.UpdateTicket("TKT-404", "closed", ""))
}

func TestNewToolkitFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	tk, err := NewToolkitFromConfig(context.Background(), cfg, logging.NoOpLogger{})
	require.NoError(t, err)
	defer tk.Close()

	n, err := tk.kb.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(DefaultArticles), n)
	assert.FileExists(t, cfg.TicketsDBPath())
	assert.FileExists(t, cfg.VectorDBPath())

	cfg.Support.EmbeddingProvider = "word2vec"
	_, err = NewEmbedder(cfg)
	assert.Error(t, err)
}

func TestNewAgent_Idempotent(t *testing.T) {
	tk := newTestToolkit(t)
	m := model.NewScriptedModel()

	first := NewAgent(m, tk)
	second := NewAgent(m, tk)

	assert.Equal(t, []string{"search_knowledge_base", "create_ticket", "get_ticket", "update_ticket"}, tool.Names(first.Tools()))
	assert.Equal(t, tool.Names(first.Tools()), tool.Names(second.Tools()))
	assert.Empty(t, REPLOptions().ResetMessage)
}

func TestAgent_AnswersFromKnowledgeBase(t *testing.T) {
	m := model.NewScriptedModel(
		model.Call("search_knowledge_base", map[string]any{"query": "refund policy"}),
		model.Say("You can get a refund within 30 days."),
	)

	res := testutil.RunAgent(t, NewAgent(m, newTestToolkit(t)), "Can I get my money back?")

	responses := res.FunctionResponses()["search_knowledge_base"]
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Text(), "What is your refund policy?")
	assert.Equal(t, "You can get a refund within 30 days.", res.Text)
}
