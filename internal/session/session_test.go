package session

import (
	"testing"

	"github.com/chris/tasky/internal/llm"
)

func newTestStore(t *testing.T, capacity int) *MemoryStore {
	t.Helper()
	s, err := NewMemoryStore(capacity)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	return s
}

func TestMemoryStore_SetGetDelete(t *testing.T) {
	s := newTestStore(t, 10)

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected empty store")
	}

	s.Set("k", Session{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "rapat besok"}},
		Proposal: &Proposal{Title: "Rapat", DueDate: "2026-05-05T09:00:00Z", Status: "pending"},
	})

	got, ok := s.Get("k")
	if !ok {
		t.Fatal("expected session")
	}
	if len(got.Messages) != 1 || got.Proposal == nil || got.Proposal.Title != "Rapat" {
		t.Errorf("unexpected session: %+v", got)
	}

	s.Delete("k")
	if _, ok := s.Get("k"); ok {
		t.Error("expected session deleted")
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := newTestStore(t, 10)
	s.Set("k", Session{Proposal: &Proposal{Title: "Meeting"}})

	got, _ := s.Get("k")
	got.Proposal.Title = "Changed"
	got.Messages = append(got.Messages, llm.Message{Role: llm.RoleUser, Content: "x"})

	again, _ := s.Get("k")
	if again.Proposal.Title != "Meeting" {
		t.Errorf("expected stored proposal untouched, got %q", again.Proposal.Title)
	}
	if len(again.Messages) != 0 {
		t.Errorf("expected stored history untouched, got %d messages", len(again.Messages))
	}
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s := newTestStore(t, 2)
	s.Set("a", Session{})
	s.Set("b", Session{})
	s.Get("a")
	s.Set("c", Session{})

	if _, ok := s.Get("b"); ok {
		t.Error("expected b evicted")
	}
	if _, ok := s.Get("a"); !ok {
		t.Error("expected a kept")
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", s.Len())
	}
}

func TestKey(t *testing.T) {
	if got := Key("sess-1", "user-1"); got != "sess-1" {
		t.Errorf("expected session id, got %q", got)
	}
	if got := Key("", "user-1"); got != "user-1" {
		t.Errorf("expected user id fallback, got %q", got)
	}
}
