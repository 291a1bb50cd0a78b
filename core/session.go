package core

import (
	"errors"
	"maps"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by SessionStore.Get (and friends) for an
// unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Session is a conversation container keyed by app name, user id and session
// id. It tracks mutable key/value state plus an ordered event history and is
// safe for concurrent access.
//
// Contract:
//   - State mutations update the Updated timestamp
//   - Events returns a copy so callers cannot mutate history
//   - ConversationHistory keeps user/assistant/tool roles and drops partials
type Session struct {
	ID      string         `json:"id"`
	AppName string         `json:"app_name"`
	UserID  string         `json:"user_id"`
	State   map[string]any `json:"state"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`

	events []Event
	mu     sync.RWMutex
}

// NewSession creates an empty session.
func NewSession(appName, userID, id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:      id,
		AppName: appName,
		UserID:  userID,
		State:   map[string]any{},
		Created: now,
		Updated: now,
	}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.State[key]

	return v, ok
}

// StateSnapshot returns a copy of the state map.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.State)
}

// SetState sets a single key.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.State[key] = value
	s.Updated = time.Now().UTC()
}

// ApplyStateDelta merges delta into State.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	if len(delta) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.State, delta)
	s.Updated = time.Now().UTC()
}

// AddEvent appends an event to the history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, ev)
	s.Updated = time.Now().UTC()
}

// Events returns a copy of the full event history.
func (s *Session) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)

	return out
}

// ConversationHistory returns the events suitable as model context.
func (s *Session) ConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Event, 0, len(s.events))

	for _, ev := range s.events {
		if ev.Content == nil || ev.IsPartial() {
			continue
		}

		switch ev.Content.Role {
		case RoleUser, RoleAssistant, RoleTool:
			res = append(res, ev)
		}
	}

	return res
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &Session{
		ID:      s.ID,
		AppName: s.AppName,
		UserID:  s.UserID,
		State:   make(map[string]any, len(s.State)),
		Created: s.Created,
		Updated: s.Updated,
		events:  make([]Event, len(s.events)),
	}

	maps.Copy(c.State, s.State)
	copy(c.events, s.events)

	return c
}
