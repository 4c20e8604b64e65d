// File: internal/services/chat_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lunahq/luna/internal/config"
	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/repository/history"
	"github.com/lunahq/luna/internal/services/chat"
	"github.com/lunahq/luna/internal/services/persona"
)

// Boundary errors the transport layer maps to status codes. Internally every
// remote failure settles as an assistant message; these only signal requests
// that were refused before any state changed.
var (
	ErrGenerationInFlight = errors.New("a response is already being generated")
	ErrGuestLimitReached  = errors.New("guest message limit reached")
	ErrEmptyPrompt        = errors.New("prompt is empty")
)

const (
	studyPromptTemplate = "Please provide a clear and concise explanation of the following topic, " +
		"suitable for someone studying it. Structure the explanation logically, starting with a " +
		"high-level overview and then covering the key concepts. Topic: %q"

	codePromptTemplate = "You are an expert code reviewer. Analyze the following code for bugs, " +
		"style issues, and potential improvements. Provide specific, actionable feedback with " +
		"corrected code examples where appropriate. Code:\n```\n%s\n```"

	debugSessionTitle = "Error Debug Session"

	debugPromptTemplate = `An unexpected runtime error has occurred within the application. Your task is to analyze the following error details and provide a diagnosis and a potential solution.

**Error Details:**
- **Message:** %s
- **Stack Trace:**
` + "```\n%s\n```" + `

Based on this information, please provide:
1.  **A likely cause of the error** in simple terms.
2.  **A suggested code fix** or the area of the code to investigate.
3.  **Advice for the user** on how to proceed.`
)

// ChatService is the orchestrator's public surface. It owns session state
// through the store, routes prompts through the streaming service or the
// action dispatcher, and enforces the guest quota and single-flight rule at
// the boundary.
//
// A nil remote client (setup failure at startup) is permanent for the
// process lifetime: every send surfaces the same explanatory assistant
// message instead of calling out.
type ChatService struct {
	chatConfig *chat.Config
	store      *chat.SessionStore
	streaming  *chat.StreamingService
	actions    *chat.ActionService
	flight     *chat.Flight
	personas   *persona.Service
	setupErr   error
	logger     Logger
}

func NewChatService(
	cfg *config.Config,
	historyRepo history.HistoryRepository,
	aiService *AIService,
	setupErr error,
	personas *persona.Service,
) *ChatService {
	logger := NewLogger("chat")

	chatConfig := chat.DefaultConfig()
	chatConfig.GuestMessageLimit = cfg.GuestMessageLimit

	fl := chat.NewFlight()
	store := chat.NewSessionStore(historyRepo, logger)

	s := &ChatService{
		chatConfig: chatConfig,
		store:      store,
		flight:     fl,
		personas:   personas,
		setupErr:   setupErr,
		logger:     logger,
	}

	if setupErr != nil {
		logger.Error("remote client unavailable, sends will surface the setup failure", "error", setupErr)
		return s
	}

	titles := chat.NewTitleService(chatConfig, aiService, store, logger)
	s.streaming = chat.NewStreamingService(chatConfig, store, aiService, titles, fl, logger)
	s.actions = chat.NewActionService(chatConfig, store, aiService, aiService, aiService, titles, fl, logger)
	return s
}

// Bootstrap loads (or synthesizes) the history for an identity and returns a
// snapshot of it. Called on login, logout, and account switch.
func (s *ChatService) Bootstrap(ctx context.Context, identity string) *domain.ChatHistory {
	s.store.UseIdentity(ctx, identity)
	s.streamingInvalidate()
	return s.store.Snapshot()
}

// History returns a snapshot of the identity's full history.
func (s *ChatService) History(ctx context.Context, identity string) *domain.ChatHistory {
	s.store.UseIdentity(ctx, identity)
	return s.store.Snapshot()
}

// Messages returns the active session's message list.
func (s *ChatService) Messages(ctx context.Context, identity string) []domain.Message {
	s.store.UseIdentity(ctx, identity)
	if session := s.store.ActiveSession(); session != nil {
		return session.Messages
	}
	return nil
}

// Session returns a copy of one session, nil when unknown.
func (s *ChatService) Session(ctx context.Context, identity, chatID string) *domain.ChatSession {
	s.store.UseIdentity(ctx, identity)
	return s.store.SessionByID(chatID)
}

// ActiveChatID returns the id of the active session.
func (s *ChatService) ActiveChatID(ctx context.Context, identity string) string {
	s.store.UseIdentity(ctx, identity)
	return s.store.ActiveChatID()
}

// IsLoading reports whether a remote exchange is in flight.
func (s *ChatService) IsLoading() bool {
	return s.flight.Active()
}

// IsLocked reports whether the guest quota blocks further sends for this
// identity. Authenticated users are never locked.
func (s *ChatService) IsLocked(ctx context.Context, identity string) bool {
	s.store.UseIdentity(ctx, identity)
	authenticated := identity != domain.GuestIdentity
	turns := 0
	if session := s.store.ActiveSession(); session != nil {
		turns = session.UserTurnCount()
	}
	return chat.GuestLocked(authenticated, turns, s.chatConfig.GuestMessageLimit)
}

// StartNewChat creates a fresh session and activates it.
func (s *ChatService) StartNewChat(ctx context.Context, identity string) *domain.ChatSession {
	s.store.UseIdentity(ctx, identity)
	session := s.store.CreateSession(ctx)
	s.streamingInvalidate()
	s.logger.Info("new chat started", "identity", identity, "chat_id", session.ID)
	return session
}

// SwitchChat activates another session. Unknown ids are a no-op.
func (s *ChatService) SwitchChat(ctx context.Context, identity, chatID string) bool {
	s.store.UseIdentity(ctx, identity)
	if !s.store.SwitchTo(ctx, chatID) {
		return false
	}
	s.streamingInvalidate()
	return true
}

// DeleteChat removes a session. Deleting the active session activates the
// next most recent one; deleting the last session substitutes a fresh one.
func (s *ChatService) DeleteChat(ctx context.Context, identity, chatID string) {
	s.store.UseIdentity(ctx, identity)
	s.store.Delete(ctx, chatID)
	s.streamingInvalidate()
}

// StopGeneration asks the in-flight streaming exchange to finish at the next
// fragment boundary. Settled output up to that point is kept.
func (s *ChatService) StopGeneration() {
	s.flight.RequestStop()
}

// SendMessage runs one ordinary conversational turn. The attachment is
// optional; version selects the built-in assistant instruction when no
// custom persona is active. onDelta receives raw streamed fragments and may
// be nil.
func (s *ChatService) SendMessage(ctx context.Context, identity, text string, attachment *domain.Attachment, version string, onDelta func(string) error) error {
	if strings.TrimSpace(text) == "" && attachment == nil {
		return ErrEmptyPrompt
	}
	return s.sendPromptStreaming(ctx, identity, text, attachment, version, "", false, onDelta)
}

// StudyTopic forwards a templated explanation request through the ordinary
// streaming path. The raw topic rides along as the title hint.
func (s *ChatService) StudyTopic(ctx context.Context, identity, topic, version string, onDelta func(string) error) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrEmptyPrompt
	}
	prompt := fmt.Sprintf(studyPromptTemplate, topic)
	return s.sendPromptStreaming(ctx, identity, prompt, nil, version, topic, false, onDelta)
}

// CodeAssistant forwards a templated code-review request through the
// ordinary streaming path.
func (s *ChatService) CodeAssistant(ctx context.Context, identity, code, version string, onDelta func(string) error) error {
	if strings.TrimSpace(code) == "" {
		return ErrEmptyPrompt
	}
	prompt := fmt.Sprintf(codePromptTemplate, code)
	return s.sendPromptStreaming(ctx, identity, prompt, nil, version, "Code review", false, onDelta)
}

// DebugPrompt opens a fresh session titled for debugging, forces the
// advanced assistant instruction, and forwards the fault description as the
// first prompt. Used by the rendering layer's crash recovery path.
func (s *ChatService) DebugPrompt(ctx context.Context, identity, message, stack string, onDelta func(string) error) error {
	s.store.UseIdentity(ctx, identity)
	if s.flight.Active() {
		return ErrGenerationInFlight
	}

	session := s.store.CreateSession(ctx)
	s.store.SetTitle(ctx, session.ID, debugSessionTitle)
	s.streamingInvalidate()

	prompt := fmt.Sprintf(debugPromptTemplate, message, stack)
	if s.setupErr != nil {
		s.appendSetupFailure(ctx, session.ID, prompt, "")
		return nil
	}

	instruction := persona.BuiltinInstruction(persona.VersionAdvanced)
	s.streaming.StreamTurn(ctx, chat.TurnRequest{
		ChatID:      session.ID,
		Text:        prompt,
		Instruction: instruction,
		TitleHint:   debugSessionTitle,
	}, onDelta)
	return nil
}

// Regenerate drops everything after the last user turn and re-issues that
// turn. A no-op when nothing is in flight to regenerate or a generation is
// running.
func (s *ChatService) Regenerate(ctx context.Context, identity, version string, onDelta func(string) error) error {
	s.store.UseIdentity(ctx, identity)
	if s.flight.Active() {
		return ErrGenerationInFlight
	}

	session := s.store.ActiveSession()
	if session == nil {
		return nil
	}

	idx := -1
	for i := len(session.Messages) - 1; i >= 0; i-- {
		if session.Messages[i].Role == domain.RoleUser {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	userMessage := session.Messages[idx].Clone()
	chatID := session.ID

	// Keep the user turn, drop the responses after it.
	s.store.MutateActiveMessages(ctx, chatID, func(msgs []domain.Message) []domain.Message {
		if idx+1 > len(msgs) {
			return msgs
		}
		return msgs[:idx+1]
	})
	// The remote context still contains the dropped turns; rebuild it.
	s.streamingInvalidate()

	if s.setupErr != nil {
		s.store.MutateActiveMessages(ctx, chatID, func(msgs []domain.Message) []domain.Message {
			return append(msgs, domain.Message{Role: domain.RoleModel, Text: chat.SetupFailureText(s.setupErr)})
		})
		return nil
	}

	var attachment *domain.Attachment
	if userMessage.ImageURL != "" {
		if att, ok := domain.AttachmentFromDataURI(userMessage.ImageURL); ok {
			attachment = att
		}
	}

	s.streaming.StreamTurn(ctx, chat.TurnRequest{
		ChatID:         chatID,
		Text:           userMessage.Text,
		Attachment:     attachment,
		Instruction:    s.instructionFor(ctx, identity, version),
		IsRegeneration: true,
		TitleHint:      userMessage.TitleHint,
	}, onDelta)
	return nil
}

// GenerateImage runs the image action against the active session.
func (s *ChatService) GenerateImage(ctx context.Context, identity, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}
	chatID, err := s.beginAction(ctx, identity, fmt.Sprintf("Imagine: %q", prompt), prompt)
	if err != nil || chatID == "" {
		return err
	}
	s.actions.GenerateImage(ctx, chatID, prompt)
	return nil
}

// EditImage runs the image-edit action against the active session.
func (s *ChatService) EditImage(ctx context.Context, identity, prompt string, attachment domain.Attachment) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}
	chatID, err := s.beginAction(ctx, identity, fmt.Sprintf("Edit Image: %q", prompt), prompt)
	if err != nil || chatID == "" {
		return err
	}
	s.actions.EditImage(ctx, chatID, prompt, attachment)
	return nil
}

// GenerateVideo runs the long-polling video action against the active
// session.
func (s *ChatService) GenerateVideo(ctx context.Context, identity, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}
	chatID, err := s.beginAction(ctx, identity, fmt.Sprintf("Create Video: %q", prompt), prompt)
	if err != nil || chatID == "" {
		return err
	}
	s.actions.GenerateVideo(ctx, chatID, prompt)
	return nil
}

// SearchQuery runs the grounded search action against the active session.
func (s *ChatService) SearchQuery(ctx context.Context, identity, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyPrompt
	}
	chatID, err := s.beginAction(ctx, identity, fmt.Sprintf("Search: %q", query), query)
	if err != nil || chatID == "" {
		return err
	}
	s.actions.SearchQuery(ctx, chatID, query)
	return nil
}

func (s *ChatService) sendPromptStreaming(ctx context.Context, identity, text string, attachment *domain.Attachment, version, titleHint string, isRegeneration bool, onDelta func(string) error) error {
	s.store.UseIdentity(ctx, identity)
	if s.flight.Active() {
		return ErrGenerationInFlight
	}
	if s.IsLocked(ctx, identity) {
		return ErrGuestLimitReached
	}

	chatID := s.store.ActiveChatID()
	if s.setupErr != nil {
		s.appendSetupFailure(ctx, chatID, text, titleHint)
		return nil
	}

	s.streaming.StreamTurn(ctx, chat.TurnRequest{
		ChatID:         chatID,
		Text:           text,
		Attachment:     attachment,
		Instruction:    s.instructionFor(ctx, identity, version),
		IsRegeneration: isRegeneration,
		TitleHint:      titleHint,
	}, onDelta)
	return nil
}

// beginAction runs the shared pre-flight checks for dispatcher actions and
// returns the target session id, or empty when the setup failure was
// surfaced in place of the action.
func (s *ChatService) beginAction(ctx context.Context, identity, label, titleHint string) (string, error) {
	s.store.UseIdentity(ctx, identity)
	if s.flight.Active() {
		return "", ErrGenerationInFlight
	}
	if s.IsLocked(ctx, identity) {
		return "", ErrGuestLimitReached
	}

	chatID := s.store.ActiveChatID()
	if s.setupErr != nil {
		s.appendSetupFailure(ctx, chatID, label, titleHint)
		return "", nil
	}
	return chatID, nil
}

// appendSetupFailure records the attempted turn and the permanent setup
// failure as its response, so the conversation log shows what was tried.
func (s *ChatService) appendSetupFailure(ctx context.Context, chatID, userText, titleHint string) {
	s.store.MutateActiveMessages(ctx, chatID, func(msgs []domain.Message) []domain.Message {
		return append(msgs,
			domain.Message{Role: domain.RoleUser, Text: userText, TitleHint: titleHint},
			domain.Message{Role: domain.RoleModel, Text: chat.SetupFailureText(s.setupErr)},
		)
	})
}

func (s *ChatService) instructionFor(ctx context.Context, identity, version string) string {
	if s.personas == nil {
		return persona.BuiltinInstruction(version)
	}
	return s.personas.InstructionFor(ctx, identity, version)
}

func (s *ChatService) streamingInvalidate() {
	if s.streaming != nil {
		s.streaming.InvalidateConversation()
	}
}
