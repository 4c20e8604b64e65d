// File: internal/services/chat/title.go
package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lunahq/luna/internal/domain"
)

// TitleProvider is the secondary remote call the title generator runs on.
type TitleProvider interface {
	GetCompletion(ctx context.Context, prompt string) (string, error)
}

// TitleService derives a short session title from the first user turn. It is
// a fire-and-forget side job: failures are logged and the default title
// stays.
type TitleService struct {
	config   *Config
	provider TitleProvider
	store    *SessionStore
	logger   Logger
}

func NewTitleService(config *Config, provider TitleProvider, store *SessionStore, logger Logger) *TitleService {
	return &TitleService{config: config, provider: provider, store: store, logger: logger}
}

// Generate titles the session after its first turn. The clean prompt is read
// from the message's TitleHint when the turn carried a templated action
// label; no pattern matching against the rendered text is ever needed.
func (t *TitleService) Generate(ctx context.Context, chatID string, first domain.Message) {
	seed := first.TitleHint
	if seed == "" {
		seed = first.Text
	}
	seed = truncateRunes(strings.TrimSpace(seed), t.config.TitleMaxPromptRunes)
	if seed == "" {
		return
	}

	prompt := fmt.Sprintf("Generate a very short, concise title (4-5 words max) for a conversation starting with: %q", seed)
	title, err := t.provider.GetCompletion(ctx, prompt)
	if err != nil {
		t.logger.Warn("title generation failed", "chat_id", chatID, "error", err)
		return
	}

	title = strings.TrimSpace(strings.ReplaceAll(title, `"`, ""))
	if title == "" {
		return
	}
	t.store.SetTitle(ctx, chatID, title)
}

// truncateRunes shortens a UTF-8 string to maxLen runes without splitting a
// character.
func truncateRunes(input string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(input) <= maxLen {
		return input
	}
	var b strings.Builder
	count := 0
	for _, r := range input {
		if count >= maxLen {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}
