// File: internal/services/chat/title_test.go
package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lunahq/luna/internal/domain"
)

type fakeCompletion struct {
	response   string
	err        error
	lastPrompt string
}

func (f *fakeCompletion) GetCompletion(ctx context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.response, f.err
}

func TestGenerateSetsTrimmedTitle(t *testing.T) {
	store, _ := newTestStore(t)
	chatID := store.ActiveChatID()
	provider := &fakeCompletion{response: `  "Planning a Trip"  `}
	svc := NewTitleService(DefaultConfig(), provider, store, nopLogger{})

	svc.Generate(context.Background(), chatID, domain.Message{Role: domain.RoleUser, Text: "help me plan a trip to Kyoto"})

	if got := store.SessionByID(chatID).Title; got != "Planning a Trip" {
		t.Errorf("expected quotes and whitespace stripped, got %q", got)
	}
	if !strings.Contains(provider.lastPrompt, "help me plan a trip to Kyoto") {
		t.Errorf("prompt should embed the first message, got %q", provider.lastPrompt)
	}
}

func TestGeneratePrefersTitleHint(t *testing.T) {
	store, _ := newTestStore(t)
	chatID := store.ActiveChatID()
	provider := &fakeCompletion{response: "Sunset Painting"}
	svc := NewTitleService(DefaultConfig(), provider, store, nopLogger{})

	svc.Generate(context.Background(), chatID, domain.Message{
		Role:      domain.RoleUser,
		Text:      `Imagine: "a sunset over the sea"`,
		TitleHint: "a sunset over the sea",
	})

	if strings.Contains(provider.lastPrompt, "Imagine:") {
		t.Errorf("templated label leaked into the title prompt: %q", provider.lastPrompt)
	}
	if !strings.Contains(provider.lastPrompt, "a sunset over the sea") {
		t.Errorf("expected hint in prompt, got %q", provider.lastPrompt)
	}
}

func TestGenerateTruncatesLongSeeds(t *testing.T) {
	store, _ := newTestStore(t)
	chatID := store.ActiveChatID()
	provider := &fakeCompletion{response: "Long Prompt"}
	config := DefaultConfig()
	config.TitleMaxPromptRunes = 10
	svc := NewTitleService(config, provider, store, nopLogger{})

	svc.Generate(context.Background(), chatID, domain.Message{Role: domain.RoleUser, Text: strings.Repeat("x", 100)})

	if strings.Contains(provider.lastPrompt, strings.Repeat("x", 11)) {
		t.Errorf("seed was not truncated: %q", provider.lastPrompt)
	}
}

func TestGenerateFailureKeepsDefaultTitle(t *testing.T) {
	store, _ := newTestStore(t)
	chatID := store.ActiveChatID()
	provider := &fakeCompletion{err: errors.New("remote down")}
	svc := NewTitleService(DefaultConfig(), provider, store, nopLogger{})

	svc.Generate(context.Background(), chatID, domain.Message{Role: domain.RoleUser, Text: "hello"})

	if got := store.SessionByID(chatID).Title; got != domain.DefaultChatTitle {
		t.Errorf("failed generation must leave the default title, got %q", got)
	}
}

func TestGenerateEmptySeedSkipsRemoteCall(t *testing.T) {
	store, _ := newTestStore(t)
	chatID := store.ActiveChatID()
	provider := &fakeCompletion{response: "Should Not Happen"}
	svc := NewTitleService(DefaultConfig(), provider, store, nopLogger{})

	svc.Generate(context.Background(), chatID, domain.Message{Role: domain.RoleUser, Text: "   "})

	if provider.lastPrompt != "" {
		t.Error("empty seed should not reach the provider")
	}
}
