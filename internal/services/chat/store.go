// File: internal/services/chat/store.go
package chat

import (
	"context"
	"sync"

	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/repository/history"
)

// SessionStore owns every ChatSession. It holds the current identity's
// ChatHistory in memory and mirrors the full serialized state to the durable
// repository on every change.
//
// All access is serialized by one mutex; background streaming and polling
// operations only touch state through MutateActiveMessages, whose guard drops
// mutations whose target session is no longer active.
type SessionStore struct {
	mu       sync.Mutex
	repo     history.HistoryRepository
	logger   Logger
	identity string
	history  *domain.ChatHistory
}

func NewSessionStore(repo history.HistoryRepository, logger Logger) *SessionStore {
	return &SessionStore{
		repo:    repo,
		logger:  logger,
		history: domain.NewChatHistory(),
	}
}

// UseIdentity loads the history for an identity key, replacing the in-memory
// state on a transition. Once a history has been touched it always holds at
// least one session; an absent or empty record gets a fresh session
// synthesized.
func (s *SessionStore) UseIdentity(ctx context.Context, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if identity == s.identity && s.history.Active() != nil {
		return
	}

	loaded, err := s.repo.Load(ctx, identity)
	if err != nil {
		s.logger.Error("failed to load history", "identity", identity, "error", err)
		loaded = nil
	}
	if loaded == nil {
		loaded = domain.NewChatHistory()
	}

	s.identity = identity
	s.history = loaded

	if len(s.history.Sessions) == 0 {
		session := domain.NewChatSession()
		s.history.Sessions[session.ID] = session
		s.history.ActiveChatID = session.ID
		s.persistLocked(ctx)
	} else if s.history.Active() == nil {
		// Repair a record whose active pointer went dangling.
		s.history.ActiveChatID = s.history.SortedSessions()[0].ID
		s.persistLocked(ctx)
	}
}

// Identity returns the identity key the store currently serves.
func (s *SessionStore) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Snapshot returns a deep copy of the full history for the rendering layer.
func (s *SessionStore) Snapshot() *domain.ChatHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Clone()
}

// ActiveChatID returns the identifier of the active session.
func (s *SessionStore) ActiveChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.ActiveChatID
}

// ActiveSession returns a deep copy of the active session, or nil when the
// history has not been touched yet.
func (s *SessionStore) ActiveSession() *domain.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active := s.history.Active(); active != nil {
		return active.Clone()
	}
	return nil
}

// SessionByID returns a deep copy of a session, active or not.
func (s *SessionStore) SessionByID(id string) *domain.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.history.Sessions[id]; ok {
		return session.Clone()
	}
	return nil
}

// CreateSession adds a fresh session and makes it active.
func (s *SessionStore) CreateSession(ctx context.Context) *domain.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := domain.NewChatSession()
	s.history.Sessions[session.ID] = session
	s.history.ActiveChatID = session.ID
	s.persistLocked(ctx)
	return session.Clone()
}

// SwitchTo makes an existing session active. A no-op for unknown ids.
func (s *SessionStore) SwitchTo(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.history.Sessions[id]; !ok {
		return false
	}
	if s.history.ActiveChatID == id {
		return true
	}
	s.history.ActiveChatID = id
	s.persistLocked(ctx)
	return true
}

// Delete removes a session. When the active one is deleted the next most
// recent session takes over; deleting the last session substitutes a fresh
// one so the history never ends up empty.
func (s *SessionStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.history.Sessions[id]; !ok {
		return
	}
	delete(s.history.Sessions, id)

	if s.history.ActiveChatID == id {
		if remaining := s.history.SortedSessions(); len(remaining) > 0 {
			s.history.ActiveChatID = remaining[0].ID
		} else {
			s.history.ActiveChatID = ""
		}
	}
	if s.history.ActiveChatID == "" {
		session := domain.NewChatSession()
		s.history.Sessions[session.ID] = session
		s.history.ActiveChatID = session.ID
	}
	s.persistLocked(ctx)
}

// MutateActiveMessages applies a pure transform to the active session's
// message list, but only when chatID still names the active session. A stale
// operation whose session was deleted or switched away from is silently
// dropped; that guard is what keeps concurrent streaming writes from landing
// in the wrong session.
func (s *SessionStore) MutateActiveMessages(ctx context.Context, chatID string, fn func([]domain.Message) []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history.ActiveChatID != chatID {
		s.logger.Debug("dropping stale mutation", "chat_id", chatID, "active_id", s.history.ActiveChatID)
		return
	}
	session, ok := s.history.Sessions[chatID]
	if !ok {
		s.logger.Debug("dropping mutation for deleted session", "chat_id", chatID)
		return
	}

	messages := make([]domain.Message, len(session.Messages))
	for i, m := range session.Messages {
		messages[i] = m.Clone()
	}
	session.Messages = fn(messages)
	s.persistLocked(ctx)
}

// SetTitle renames a session if it still exists. Title generation completes
// in the background, so the session may legitimately be gone or inactive by
// then; inactive is fine, gone is dropped.
func (s *SessionStore) SetTitle(ctx context.Context, chatID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.history.Sessions[chatID]
	if !ok {
		return
	}
	session.Title = title
	s.persistLocked(ctx)
}

// persistLocked mirrors the full history to durable storage in one write.
// Persistence failures are logged, never propagated: in-memory state stays
// authoritative for the session.
func (s *SessionStore) persistLocked(ctx context.Context) {
	if s.identity == "" {
		return
	}
	if err := s.repo.Save(ctx, s.identity, s.history); err != nil {
		s.logger.Error("failed to persist history", "identity", s.identity, "error", err)
	}
}
