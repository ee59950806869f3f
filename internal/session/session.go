// Package session keeps per-conversation state between turns: the message
// history sent to the model and the task proposal awaiting confirmation.
package session

import (
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chris/tasky/internal/llm"
)

const DefaultCapacity = 4096

// Proposal is a task the agent suggested and the user has not yet
// confirmed. DueDate is an RFC 3339 string as produced by the agent.
type Proposal struct {
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	DueDate          string `json:"due_date,omitempty"`
	Status           string `json:"status"`
	AssistantMessage string `json:"assistant_message"`
}

type Session struct {
	Messages []llm.Message
	Proposal *Proposal
}

// Store holds sessions by key. Implementations must be safe for concurrent
// use; concurrent writes to one key are last-write-wins.
type Store interface {
	Get(key string) (Session, bool)
	Set(key string, s Session)
	Delete(key string)
}

// MemoryStore is a process-local Store. Once capacity is reached the least
// recently used session is evicted. Nothing survives a restart.
type MemoryStore struct {
	cache *lru.Cache[string, Session]
}

func NewMemoryStore(capacity int) (*MemoryStore, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.New[string, Session](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

// Get returns a copy of the stored session, so callers may append to its
// history without touching the stored value.
func (m *MemoryStore) Get(key string) (Session, bool) {
	s, ok := m.cache.Get(key)
	if !ok {
		return Session{}, false
	}
	return clone(s), true
}

func (m *MemoryStore) Set(key string, s Session) {
	m.cache.Add(key, clone(s))
}

func (m *MemoryStore) Delete(key string) {
	m.cache.Remove(key)
}

func (m *MemoryStore) Len() int {
	return m.cache.Len()
}

func clone(s Session) Session {
	out := Session{Messages: slices.Clone(s.Messages)}
	if s.Proposal != nil {
		p := *s.Proposal
		out.Proposal = &p
	}
	return out
}

// Key picks the session key for a turn: the session id when given, else
// the user id.
func Key(sessionID, userID string) string {
	if sessionID != "" {
		return sessionID
	}
	return userID
}
