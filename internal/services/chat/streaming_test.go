// File: internal/services/chat/streaming_test.go
package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lunahq/luna/internal/domain"
	"github.com/lunahq/luna/internal/services/ai"
)

// fakeConversation replays scripted fragments, invoking afterFragment
// between deliveries so tests can interleave stop requests.
type fakeConversation struct {
	fragments     []string
	err           error
	afterFragment func(i int)
}

func (c *fakeConversation) SendStreaming(ctx context.Context, parts ai.MessageParts, onDelta func(string) error) error {
	for i, f := range c.fragments {
		if err := onDelta(f); err != nil {
			return err
		}
		if c.afterFragment != nil {
			c.afterFragment(i)
		}
	}
	return c.err
}

type fakeConversationProvider struct {
	conv        *fakeConversation
	opened      int
	lastInstr   string
	lastHistory []domain.Message
}

func (p *fakeConversationProvider) OpenConversation(history []domain.Message, systemInstruction string) ai.Conversation {
	p.opened++
	p.lastInstr = systemInstruction
	p.lastHistory = history
	return p.conv
}

func newStreamingFixture(t *testing.T, conv *fakeConversation) (*StreamingService, *SessionStore, *fakeConversationProvider, *Flight) {
	t.Helper()
	store, _ := newTestStore(t)
	provider := &fakeConversationProvider{conv: conv}
	fl := NewFlight()
	svc := NewStreamingService(DefaultConfig(), store, provider, nil, fl, nopLogger{})
	return svc, store, provider, fl
}

func TestStreamTurnAppendsUserAndAssistant(t *testing.T) {
	conv := &fakeConversation{fragments: []string{"Hel", "lo ", "there"}}
	svc, store, _, fl := newStreamingFixture(t, conv)
	chatID := store.ActiveChatID()

	var streamed strings.Builder
	svc.StreamTurn(context.Background(), TurnRequest{ChatID: chatID, Text: "hi"}, func(fragment string) error {
		streamed.WriteString(fragment)
		return nil
	})

	msgs := store.ActiveSession().Messages
	if len(msgs) != 2 {
		t.Fatalf("expected exactly 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Text != "hi" {
		t.Errorf("unexpected user message: %+v", msgs[0])
	}
	if msgs[1].Role != domain.RoleModel || msgs[1].Text != "Hello there" {
		t.Errorf("expected concatenated response, got %+v", msgs[1])
	}
	if streamed.String() != "Hello there" {
		t.Errorf("onDelta saw %q", streamed.String())
	}
	if fl.Active() {
		t.Error("flight must be released after the turn settles")
	}
}

func TestStreamTurnAttachmentCarriedOnUserMessage(t *testing.T) {
	conv := &fakeConversation{fragments: []string{"ok"}}
	svc, store, _, _ := newStreamingFixture(t, conv)
	chatID := store.ActiveChatID()

	att := &domain.Attachment{MimeType: "image/png", Data: "aGVsbG8="}
	svc.StreamTurn(context.Background(), TurnRequest{ChatID: chatID, Text: "what is this", Attachment: att}, nil)

	msgs := store.ActiveSession().Messages
	if msgs[0].ImageURL != att.DataURI() {
		t.Errorf("expected user message to carry attachment URI, got %q", msgs[0].ImageURL)
	}
}

func TestStreamTurnFailureSettlesAsAssistantMessage(t *testing.T) {
	remoteErr := errors.New("connection reset")
	conv := &fakeConversation{fragments: []string{"partial "}, err: remoteErr}
	svc, store, _, fl := newStreamingFixture(t, conv)
	chatID := store.ActiveChatID()

	svc.StreamTurn(context.Background(), TurnRequest{ChatID: chatID, Text: "hi"}, nil)

	msgs := store.ActiveSession().Messages
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	last := msgs[1]
	if last.Role != domain.RoleModel {
		t.Fatalf("expected trailing assistant message, got %+v", last)
	}
	if !strings.Contains(last.Text, "Sorry, something went wrong") || !strings.Contains(last.Text, "connection reset") {
		t.Errorf("failure should settle as explanatory text, got %q", last.Text)
	}
	if fl.Active() {
		t.Error("flight must be released after a failure")
	}
}

func TestStopKeepsPartialResponse(t *testing.T) {
	conv := &fakeConversation{fragments: []string{"alpha ", "beta ", "gamma"}}
	svc, store, _, fl := newStreamingFixture(t, conv)
	chatID := store.ActiveChatID()

	conv.afterFragment = func(i int) {
		if i == 0 {
			fl.RequestStop()
		}
	}

	svc.StreamTurn(context.Background(), TurnRequest{ChatID: chatID, Text: "go"}, nil)

	msgs := store.ActiveSession().Messages
	if got := msgs[len(msgs)-1].Text; got != "alpha " {
		t.Errorf("expected partial text preserved, got %q", got)
	}
	if fl.Active() || fl.stopped() {
		t.Error("flight flags must be cleared after a stop settles")
	}
}

func TestStreamTurnBusyFlightIsNoOp(t *testing.T) {
	conv := &fakeConversation{fragments: []string{"never"}}
	svc, store, _, fl := newStreamingFixture(t, conv)
	chatID := store.ActiveChatID()

	if !fl.begin() {
		t.Fatal("could not claim flight for test")
	}
	defer fl.end()

	svc.StreamTurn(context.Background(), TurnRequest{ChatID: chatID, Text: "hi"}, nil)

	if n := len(store.ActiveSession().Messages); n != 0 {
		t.Errorf("busy send must not mutate the session, got %d messages", n)
	}
}

func TestRegenerationAppendsOnlyPlaceholder(t *testing.T) {
	conv := &fakeConversation{fragments: []string{"better answer"}}
	svc, store, _, _ := newStreamingFixture(t, conv)
	chatID := store.ActiveChatID()

	// Session already holds the user turn; regeneration must not duplicate
	// it.
	store.MutateActiveMessages(context.Background(), chatID, func(msgs []domain.Message) []domain.Message {
		return append(msgs, domain.Message{Role: domain.RoleUser, Text: "question"})
	})

	svc.StreamTurn(context.Background(), TurnRequest{ChatID: chatID, Text: "question", IsRegeneration: true}, nil)

	msgs := store.ActiveSession().Messages
	if len(msgs) != 2 {
		t.Fatalf("expected [user, model], got %d messages", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[1].Text != "better answer" {
		t.Errorf("unexpected transcript: %+v", msgs)
	}
}

func TestRegenerationSeedExcludesResentTurn(t *testing.T) {
	conv := &fakeConversation{fragments: []string{"redone"}}
	svc, store, provider, _ := newStreamingFixture(t, conv)
	chatID := store.ActiveChatID()
	ctx := context.Background()

	// Transcript as it stands after truncating away the rejected answer: the
	// turn being re-sent is the trailing user message.
	store.MutateActiveMessages(ctx, chatID, func(msgs []domain.Message) []domain.Message {
		return append(msgs,
			domain.Message{Role: domain.RoleUser, Text: "first question"},
			domain.Message{Role: domain.RoleModel, Text: "first answer"},
			domain.Message{Role: domain.RoleUser, Text: "second question"},
		)
	})

	svc.StreamTurn(ctx, TurnRequest{ChatID: chatID, Text: "second question", IsRegeneration: true}, nil)

	// The re-sent turn travels as the new message, so the remote context must
	// be seeded without it.
	if got := len(provider.lastHistory); got != 2 {
		t.Fatalf("expected 2 seeded messages, got %d", got)
	}
	for _, m := range provider.lastHistory {
		if m.Text == "second question" {
			t.Fatal("regenerated turn must not appear in the seeded history")
		}
	}

	msgs := store.ActiveSession().Messages
	if len(msgs) != 4 || msgs[3].Text != "redone" {
		t.Errorf("unexpected transcript after regeneration: %+v", msgs)
	}
}

func TestConversationReuseAndInvalidation(t *testing.T) {
	conv := &fakeConversation{fragments: []string{"ok"}}
	svc, store, provider, _ := newStreamingFixture(t, conv)
	chatID := store.ActiveChatID()
	ctx := context.Background()

	svc.StreamTurn(ctx, TurnRequest{ChatID: chatID, Text: "one", Instruction: "be brief"}, nil)
	svc.StreamTurn(ctx, TurnRequest{ChatID: chatID, Text: "two", Instruction: "be brief"}, nil)
	if provider.opened != 1 {
		t.Errorf("same session and instruction should reuse the conversation, opened %d times", provider.opened)
	}

	// A changed instruction forces a re-open.
	svc.StreamTurn(ctx, TurnRequest{ChatID: chatID, Text: "three", Instruction: "be verbose"}, nil)
	if provider.opened != 2 {
		t.Errorf("instruction change should re-open, opened %d times", provider.opened)
	}

	svc.InvalidateConversation()
	svc.StreamTurn(ctx, TurnRequest{ChatID: chatID, Text: "four", Instruction: "be verbose"}, nil)
	if provider.opened != 3 {
		t.Errorf("invalidation should force a re-open, opened %d times", provider.opened)
	}
}

func TestStreamTurnToSwitchedAwaySessionDropsWrites(t *testing.T) {
	conv := &fakeConversation{fragments: []string{"late ", "write"}}
	svc, store, _, _ := newStreamingFixture(t, conv)
	original := store.ActiveChatID()
	ctx := context.Background()

	// The user switches away after the first fragment lands.
	conv.afterFragment = func(i int) {
		if i == 0 {
			store.CreateSession(ctx)
		}
	}

	svc.StreamTurn(ctx, TurnRequest{ChatID: original, Text: "hi"}, nil)

	// The user turn and placeholder landed before the switch; the fragment
	// that arrived afterwards must not.
	msgs := store.SessionByID(original).Messages
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages in original session, got %d", len(msgs))
	}
	if got := msgs[1].Text; got != "late " {
		// The first fragment is written before afterFragment switches away,
		// so the placeholder holds exactly that first write.
		t.Errorf("expected only the pre-switch fragment, got %q", got)
	}
	if n := len(store.ActiveSession().Messages); n != 0 {
		t.Errorf("new active session must stay untouched, got %d messages", n)
	}
}
