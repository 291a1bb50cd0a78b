package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrTicketNotFound is returned for unknown ticket ids.
var ErrTicketNotFound = errors.New("ticket not found")

var ticketsBucket = []byte("tickets")

// Ticket statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Statuses lists the valid ticket statuses.
var Statuses = []string{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

// Priorities lists the valid ticket priorities.
var Priorities = []string{"low", "medium", "high", "critical"}

// Note is a timestamped remark on a ticket.
type Note struct {
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
}

// Ticket is a support request awaiting a human.
type Ticket struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	Description   string    `json:"description"`
	Priority      string    `json:"priority"`
	Status        string    `json:"status"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Notes         []Note    `json:"notes"`
}

// TicketUpdate describes changes applied by TicketStore.Update. Empty fields
// are left alone.
type TicketUpdate struct {
	Status string
	Note   string
}

// TicketStore persists tickets as JSON values in a bbolt bucket keyed by id.
type TicketStore struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenTicketStore opens (or creates) the ticket database at path.
func OpenTicketStore(path string, now func() time.Time) (*TicketStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ticket directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening ticket database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ticketsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	if now == nil {
		now = time.Now
	}

	return &TicketStore{db: db, now: now}, nil
}

// Create stores a new open ticket and fills in its id and timestamps. Ids
// are TKT-YYYYMMDDHHMMSS; tickets created within the same second get a
// numeric suffix.
func (s *TicketStore) Create(t *Ticket) error {
	now := s.now()
	base := "TKT-" + now.Format("20060102150405")

	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(ticketsBucket)

		id := base
		for n := 2; bkt.Get([]byte(id)) != nil; n++ {
			id = fmt.Sprintf("%s-%d", base, n)
		}

		t.ID = id
		t.Status = StatusOpen
		t.CreatedAt = now
		t.UpdatedAt = now

		if t.Notes == nil {
			t.Notes = []Note{}
		}

		return putTicket(bkt, t)
	})
}

// Get loads a ticket.
func (s *TicketStore) Get(id string) (*Ticket, error) {
	var t Ticket

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(ticketsBucket).Get([]byte(strings.TrimSpace(id)))
		if raw == nil {
			return ErrTicketNotFound
		}

		return json.Unmarshal(raw, &t)
	})
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// Update applies u to the ticket and returns the descriptions of the
// changes made. Unknown statuses are ignored.
func (s *TicketStore) Update(id string, u TicketUpdate) ([]string, error) {
	var changes []string

	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(ticketsBucket)

		raw := bkt.Get([]byte(strings.TrimSpace(id)))
		if raw == nil {
			return ErrTicketNotFound
		}

		var t Ticket
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}

		now := s.now()

		if status := strings.ToLower(strings.TrimSpace(u.Status)); ValidStatus(status) {
			t.Status = status
			changes = append(changes, "status changed to "+status)
		}

		if note := strings.TrimSpace(u.Note); note != "" {
			t.Notes = append(t.Notes, Note{Timestamp: now, Note: note})
			changes = append(changes, "note added")
		}

		t.UpdatedAt = now

		return putTicket(bkt, &t)
	})
	if err != nil {
		return nil, err
	}

	return changes, nil
}

// List returns all tickets ordered by id, which is creation order.
func (s *TicketStore) List() ([]Ticket, error) {
	var tickets []Ticket

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(ticketsBucket).ForEach(func(_, v []byte) error {
			var t Ticket
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}

			tickets = append(tickets, t)

			return nil
		})
	})

	return tickets, err
}

// Close closes the database.
func (s *TicketStore) Close() error {
	return s.db.Close()
}

func putTicket(bkt *bolt.Bucket, t *Ticket) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}

	return bkt.Put([]byte(t.ID), raw)
}

// ValidStatus reports whether s is one of Statuses.
func ValidStatus(s string) bool {
	return slices.Contains(Statuses, s)
}

// ValidPriority reports whether p is one of Priorities.
func ValidPriority(p string) bool {
	return slices.Contains(Priorities, p)
}
