// File: internal/services/ai/conversation.go
package ai

import (
	"context"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lunahq/luna/internal/domain"
)

// openaiConversation carries a multi-turn context client-side: the system
// instruction plus every replayable prior turn. Each successful stream
// extends the context with the exchanged pair, so the next send sees the
// full conversation.
type openaiConversation struct {
	client   *openai.Client
	config   *Config
	messages []openai.ChatCompletionMessage
}

func newOpenAIConversation(client *openai.Client, config *Config, history []domain.Message, systemInstruction string) *openaiConversation {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}
	for _, m := range history {
		// The remote history format only accepts plain text turns; media and
		// citation turns are excluded from replay.
		if !m.IsPlainText() || m.Text == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    roleFor(m.Role),
			Content: m.Text,
		})
	}
	return &openaiConversation{client: client, config: config, messages: messages}
}

func roleFor(r domain.Role) string {
	if r == domain.RoleModel {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}

func (c *openaiConversation) SendStreaming(ctx context.Context, parts MessageParts, onDelta func(string) error) error {
	userMessage := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if parts.Attachment != nil {
		content := []openai.ChatMessagePart{}
		if parts.Text != "" {
			content = append(content, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: parts.Text,
			})
		}
		content = append(content, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: parts.Attachment.DataURI(),
			},
		})
		userMessage.MultiContent = content
	} else {
		userMessage.Content = parts.Text
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.config.ChatModel,
		Messages:    append(append([]openai.ChatCompletionMessage{}, c.messages...), userMessage),
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
	})
	if err != nil {
		return NewStreamingError("open_stream", "failed to create stream", err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		response, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return NewStreamingError("recv", "stream receive error", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		reply.WriteString(delta)
		if onDelta != nil {
			if cbErr := onDelta(delta); cbErr != nil {
				// Cooperative cancellation: keep whatever context accumulated
				// so a later send still sees the truncated exchange.
				c.append(userMessage, reply.String())
				return cbErr
			}
		}
	}

	c.append(userMessage, reply.String())
	return nil
}

func (c *openaiConversation) append(userMessage openai.ChatCompletionMessage, reply string) {
	c.messages = append(c.messages, userMessage)
	if reply != "" {
		c.messages = append(c.messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: reply,
		})
	}
}
