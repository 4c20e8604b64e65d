// File: internal/services/chat/streaming.go
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/services/ai"
)

// TurnRequest describes one user turn to drive through the remote
// conversation.
type TurnRequest struct {
	ChatID      string
	Text        string
	Attachment  *domain.Attachment
	Instruction string
	// IsRegeneration marks a re-issued turn: the user message already sits at
	// the end of the session and must not be appended again.
	IsRegeneration bool
	// TitleHint is the clean prompt carried alongside a templated label.
	TitleHint string
}

// StreamingService drives one user turn through the remote conversation
// client: it appends the turn and a placeholder, concatenates incremental
// fragments into the trailing assistant message, and converts every failure
// into a terminal message. The exchange settles as success, stopped, or
// failed; the generating flag clears on all three paths.
type StreamingService struct {
	config   *Config
	store    *SessionStore
	provider ai.ConversationProvider
	titles   *TitleService
	flight   *Flight
	logger   Logger

	mu              sync.Mutex
	conv            ai.Conversation
	convChatID      string
	convInstruction string
}

func NewStreamingService(
	config *Config,
	store *SessionStore,
	provider ai.ConversationProvider,
	titles *TitleService,
	fl *Flight,
	logger Logger,
) *StreamingService {
	return &StreamingService{
		config:   config,
		store:    store,
		provider: provider,
		titles:   titles,
		flight:   fl,
		logger:   logger,
	}
}

// InvalidateConversation discards the open conversation context so the next
// send re-opens one. Called on session switches, identity transitions, and
// history truncation.
func (s *StreamingService) InvalidateConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = nil
	s.convChatID = ""
	s.convInstruction = ""
}

// StreamTurn runs the full exchange for one turn. It returns without doing
// anything when another exchange is already in flight. The onDelta callback
// feeds the transport; its errors are ignored since the session log, not the
// transport, is authoritative.
func (s *StreamingService) StreamTurn(ctx context.Context, req TurnRequest, onDelta func(string) error) {
	if !s.flight.begin() {
		return
	}
	defer s.flight.end()

	prior := s.messagesOf(req.ChatID)
	isFirstTurn := len(prior) == 0

	// On regeneration the transcript already ends with the turn being
	// re-sent. Seeding the re-opened conversation with it and then sending it
	// again would put the question in the remote context twice.
	seed := prior
	if req.IsRegeneration {
		if n := len(seed); n > 0 && seed[n-1].Role == domain.RoleUser {
			seed = seed[:n-1]
		}
	}

	userMessage := domain.Message{Role: domain.RoleUser, Text: req.Text, TitleHint: req.TitleHint}
	if req.Attachment != nil {
		userMessage.ImageURL = req.Attachment.DataURI()
	}

	s.store.MutateActiveMessages(ctx, req.ChatID, func(prev []domain.Message) []domain.Message {
		if !req.IsRegeneration {
			prev = append(prev, userMessage)
		}
		return append(prev, domain.Message{Role: domain.RoleModel})
	})

	if isFirstTurn && s.titles != nil {
		// Fire-and-forget; a failed title leaves the default in place.
		go s.titles.Generate(context.Background(), req.ChatID, userMessage)
	}

	conv := s.ensureConversation(req.ChatID, req.Instruction, seed)

	var buffer strings.Builder
	err := conv.SendStreaming(ctx, ai.MessageParts{Text: req.Text, Attachment: req.Attachment},
		func(fragment string) error {
			if s.flight.stopped() {
				return errStopped
			}
			buffer.WriteString(fragment)
			full := buffer.String()
			s.store.MutateActiveMessages(ctx, req.ChatID, replaceTrailingModelText(full))
			if onDelta != nil {
				_ = onDelta(fragment)
			}
			return nil
		})

	switch {
	case err == nil:
		s.logger.Info("stream settled", "chat_id", req.ChatID, "response_length", buffer.Len())
	case errors.Is(err, errStopped):
		// Whatever accumulated before the stop stays as the final message.
		s.logger.Info("stream stopped by user", "chat_id", req.ChatID, "partial_length", buffer.Len())
	default:
		s.logger.Error("stream failed", "chat_id", req.ChatID, "error", err)
		s.store.MutateActiveMessages(ctx, req.ChatID, replaceTrailingModelText(FailureText("sending message", err)))
		// The remote context is in an unknown state after a failure.
		s.InvalidateConversation()
	}
}

// ensureConversation reuses the open conversation when it still targets the
// same session and instruction, and re-opens one seeded with prior turns
// otherwise.
func (s *StreamingService) ensureConversation(chatID, instruction string, prior []domain.Message) ai.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv != nil && s.convChatID == chatID && s.convInstruction == instruction {
		return s.conv
	}
	s.conv = s.provider.OpenConversation(prior, instruction)
	s.convChatID = chatID
	s.convInstruction = instruction
	return s.conv
}

func (s *StreamingService) messagesOf(chatID string) []domain.Message {
	if session := s.store.SessionByID(chatID); session != nil {
		return session.Messages
	}
	return nil
}

// replaceTrailingModelText overwrites the trailing assistant message's text
// wholesale, so repeated writes are idempotent with respect to the
// accumulated buffer. The trailing-role check protects against a turn that
// settled while this write was queued.
func replaceTrailingModelText(text string) func([]domain.Message) []domain.Message {
	return func(prev []domain.Message) []domain.Message {
		if len(prev) == 0 {
			return prev
		}
		last := len(prev) - 1
		if prev[last].Role != domain.RoleModel {
			return prev
		}
		prev[last].Text = text
		return prev
	}
}
