package memory

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/assistants/core"
)

type storedMemory struct {
	id       string
	content  string
	lower    string
	metadata map[string]any
	created  time.Time
}

// InMemoryStore keeps append-only notes per session.
//
// Search is a case-insensitive keyword match: every query term found in a
// note adds to its score, notes without any hit are skipped and ties keep
// insertion order. An empty query matches everything.
type InMemoryStore struct {
	mu      sync.RWMutex
	storage map[string][]storedMemory // sessionID -> notes in insertion order
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{storage: make(map[string][]storedMemory)}
}

// Store appends a note.
func (m *InMemoryStore) Store(sessionID, content string, metadata map[string]any) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("memory content must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	notes := m.storage[sessionID]
	m.storage[sessionID] = append(notes, storedMemory{
		id:       fmt.Sprintf("mem_%d", len(notes)+1),
		content:  content,
		lower:    strings.ToLower(content),
		metadata: maps.Clone(metadata),
		created:  time.Now().UTC(),
	})

	return nil
}

// Search returns up to limit notes ranked by the number of matching terms.
// A limit below one returns every hit.
func (m *InMemoryStore) Search(sessionID, query string, limit int) ([]core.SearchResult, error) {
	terms := strings.Fields(strings.ToLower(query))

	m.mu.RLock()
	notes := m.storage[sessionID]
	results := make([]core.SearchResult, 0, len(notes))

	for _, n := range notes {
		hits := 0
		for _, term := range terms {
			if strings.Contains(n.lower, term) {
				hits++
			}
		}

		if len(terms) > 0 && hits == 0 {
			continue
		}

		score := 1.0
		if len(terms) > 0 {
			score = float64(hits) / float64(len(terms))
		}

		results = append(results, toResult(n, score))
	}
	m.mu.RUnlock()

	slices.SortStableFunc(results, func(a, b core.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// List returns every note of the session in insertion order.
func (m *InMemoryStore) List(sessionID string) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	notes := m.storage[sessionID]
	out := make([]core.SearchResult, len(notes))

	for i, n := range notes {
		out[i] = toResult(n, 1)
	}

	return out, nil
}

// Clear drops all notes of the session.
func (m *InMemoryStore) Clear(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.storage, sessionID)

	return nil
}

func toResult(n storedMemory, score float64) core.SearchResult {
	md := maps.Clone(n.metadata)
	if md == nil {
		md = map[string]any{}
	}

	md["created_at"] = n.created.Format(time.RFC3339)

	return core.SearchResult{ID: n.id, Content: n.content, Score: score, Metadata: md}
}
