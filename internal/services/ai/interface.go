// File: internal/services/ai/interface.go
package ai

import (
	"context"

	"github.com/lunahq/luna/internal/domain"
)

// MessageParts is one outgoing user turn: text plus an optional inline image.
type MessageParts struct {
	Text       string
	Attachment *domain.Attachment
}

// Conversation is a stateful multi-turn exchange seeded with prior history.
// A stream is finite and not restartable; a fresh SendStreaming call must be
// made to resend. Successful turns extend the conversation's context.
type Conversation interface {
	SendStreaming(ctx context.Context, parts MessageParts, onDelta func(string) error) error
}

// ConversationProvider opens conversation contexts. A conversation must be
// re-opened whenever the active session, assistant version, or persona
// changes.
type ConversationProvider interface {
	OpenConversation(history []domain.Message, systemInstruction string) Conversation
}

// CompletionProvider handles one-shot, non-conversational completions.
type CompletionProvider interface {
	GetCompletion(ctx context.Context, prompt string) (string, error)
}

// ImageProvider handles image generation and editing. Both return
// render-ready data URIs.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
	EditImage(ctx context.Context, prompt string, att domain.Attachment) (string, error)
}

// VideoOperation is the observable state of a long-running video job.
type VideoOperation struct {
	ID       string
	Done     bool
	Failed   bool
	VideoURL string
}

// VideoProvider handles long-running video generation: submit, poll, then
// materialize the result as a renderable URI.
type VideoProvider interface {
	StartVideoGeneration(ctx context.Context, prompt string) (VideoOperation, error)
	GetVideoOperation(ctx context.Context, id string) (VideoOperation, error)
	FetchVideo(ctx context.Context, op VideoOperation) (string, error)
}

// SearchProvider handles grounded search, returning the answer text plus
// verbatim source citations.
type SearchProvider interface {
	SearchGrounded(ctx context.Context, query string) (string, []domain.GroundingChunk, error)
}

// Provider combines every remote capability the orchestrator relies on.
type Provider interface {
	ConversationProvider
	CompletionProvider
	ImageProvider
	VideoProvider
	SearchProvider
}
