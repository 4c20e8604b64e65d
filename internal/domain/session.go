// File: internal/domain/session.go
package domain

import (
	"fmt"
	"sort"
	"time"
)

// DefaultChatTitle is the title of a session before one is generated.
const DefaultChatTitle = "New Chat"

// ChatSession is one independent conversation: an ordered message log plus a
// mutable title. Messages are append-only except for in-place mutation of the
// trailing streaming message and truncation during regeneration.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"` // unix milliseconds, used for list ordering
}

// NewChatSession creates an empty session with a generation-time-derived id.
func NewChatSession() *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:        fmt.Sprintf("chat-%d", now.UnixNano()),
		Title:     DefaultChatTitle,
		Messages:  []Message{},
		CreatedAt: now.UnixMilli(),
	}
}

// UserTurnCount counts user-authored turns, the quantity the guest quota is
// computed from.
func (s *ChatSession) UserTurnCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the session.
func (s *ChatSession) Clone() *ChatSession {
	out := &ChatSession{
		ID:        s.ID,
		Title:     s.Title,
		Messages:  make([]Message, len(s.Messages)),
		CreatedAt: s.CreatedAt,
	}
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}

// ChatHistory is the full persisted state for one identity.
//
// Invariant: whenever Sessions is non-empty, ActiveChatID references an
// existing entry. An empty history with no active id is only valid before the
// history has been touched.
type ChatHistory struct {
	ActiveChatID string                  `json:"activeChatId"`
	Sessions     map[string]*ChatSession `json:"sessions"`
}

// NewChatHistory returns an empty history.
func NewChatHistory() *ChatHistory {
	return &ChatHistory{Sessions: map[string]*ChatSession{}}
}

// Active returns the active session, or nil when none exists.
func (h *ChatHistory) Active() *ChatSession {
	if h.ActiveChatID == "" {
		return nil
	}
	return h.Sessions[h.ActiveChatID]
}

// SortedSessions returns sessions in display order: newest first, id as a
// tie-breaker so ordering is stable.
func (h *ChatHistory) SortedSessions() []*ChatSession {
	out := make([]*ChatSession, 0, len(h.Sessions))
	for _, s := range h.Sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Clone returns a deep copy of the history.
func (h *ChatHistory) Clone() *ChatHistory {
	out := &ChatHistory{
		ActiveChatID: h.ActiveChatID,
		Sessions:     make(map[string]*ChatSession, len(h.Sessions)),
	}
	for id, s := range h.Sessions {
		out.Sessions[id] = s.Clone()
	}
	return out
}
