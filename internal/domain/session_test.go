// File: internal/domain/session_test.go
package domain

import (
	"strings"
	"testing"
)

func TestNewChatSessionDefaults(t *testing.T) {
	s := NewChatSession()

	if !strings.HasPrefix(s.ID, "chat-") {
		t.Errorf("expected id with chat- prefix, got %q", s.ID)
	}
	if s.Title != DefaultChatTitle {
		t.Errorf("expected default title %q, got %q", DefaultChatTitle, s.Title)
	}
	if len(s.Messages) != 0 {
		t.Errorf("expected empty message list, got %d messages", len(s.Messages))
	}
	if s.CreatedAt == 0 {
		t.Error("expected CreatedAt to be set")
	}
}

func TestUserTurnCount(t *testing.T) {
	s := &ChatSession{Messages: []Message{
		{Role: RoleUser, Text: "one"},
		{Role: RoleModel, Text: "reply"},
		{Role: RoleUser, Text: "two"},
		{Role: RoleModel},
	}}

	if got := s.UserTurnCount(); got != 2 {
		t.Errorf("expected 2 user turns, got %d", got)
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	original := &ChatSession{
		ID:    "chat-1",
		Title: "Original",
		Messages: []Message{
			{Role: RoleModel, Text: "hi", GroundingChunks: []GroundingChunk{{URI: "https://a", Title: "A"}}},
		},
	}

	clone := original.Clone()
	clone.Title = "Changed"
	clone.Messages[0].Text = "changed"
	clone.Messages[0].GroundingChunks[0].URI = "https://b"

	if original.Title != "Original" {
		t.Error("clone shares title with original")
	}
	if original.Messages[0].Text != "hi" {
		t.Error("clone shares message slice with original")
	}
	if original.Messages[0].GroundingChunks[0].URI != "https://a" {
		t.Error("clone shares grounding chunks with original")
	}
}

func TestSortedSessionsNewestFirst(t *testing.T) {
	h := NewChatHistory()
	h.Sessions["chat-1"] = &ChatSession{ID: "chat-1", CreatedAt: 100}
	h.Sessions["chat-2"] = &ChatSession{ID: "chat-2", CreatedAt: 300}
	h.Sessions["chat-3"] = &ChatSession{ID: "chat-3", CreatedAt: 200}

	sorted := h.SortedSessions()
	want := []string{"chat-2", "chat-3", "chat-1"}
	for i, id := range want {
		if sorted[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, sorted[i].ID)
		}
	}
}

func TestSortedSessionsTieBreakOnID(t *testing.T) {
	h := NewChatHistory()
	h.Sessions["chat-100"] = &ChatSession{ID: "chat-100", CreatedAt: 50}
	h.Sessions["chat-200"] = &ChatSession{ID: "chat-200", CreatedAt: 50}

	sorted := h.SortedSessions()
	if sorted[0].ID != "chat-200" || sorted[1].ID != "chat-100" {
		t.Errorf("expected id tie-break descending, got %s then %s", sorted[0].ID, sorted[1].ID)
	}
}

func TestHistoryActive(t *testing.T) {
	h := NewChatHistory()
	if h.Active() != nil {
		t.Error("empty history should have no active session")
	}

	s := NewChatSession()
	h.Sessions[s.ID] = s
	h.ActiveChatID = s.ID
	if h.Active() != s {
		t.Error("expected active session to be returned")
	}

	h.ActiveChatID = "chat-gone"
	if h.Active() != nil {
		t.Error("dangling active id should yield nil")
	}
}
