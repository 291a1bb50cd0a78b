package core

// SessionStore persists sessions and their evolving state / event history.
// Get, AppendEvent and ApplyDelta return ErrSessionNotFound for unknown ids.
type SessionStore interface {
	Create(appName, userID, sessionID string) (*Session, error)
	Get(sessionID string) (*Session, error)
	AppendEvent(sessionID string, event Event) error
	ApplyDelta(sessionID string, delta map[string]any) error
	Delete(sessionID string) error
}

// ArtifactStore persists binary artifacts scoped by session.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Get(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
}

// MemoryStore keeps per-session notes and answers recall queries.
type MemoryStore interface {
	Store(sessionID, content string, metadata map[string]any) error
	Search(sessionID, query string, limit int) ([]SearchResult, error)
	List(sessionID string) ([]SearchResult, error)
	Clear(sessionID string) error
}

// SearchResult is a recalled memory item with a relevance score.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}
