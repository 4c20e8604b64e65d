// File: internal/services/ai/openai_provider.go
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lunahq/luna/internal/domain"
)

// OpenAIProvider implements Provider on an OpenAI-compatible API surface,
// delegating video generation and grounded search to the media client.
type OpenAIProvider struct {
	config *Config
	client *openai.Client
	media  *mediaClient
}

func NewOpenAIProvider(config *Config) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		media: &mediaClient{
			apiKey:      config.MediaAPIKey,
			baseURL:     config.MediaBaseURL,
			videoModel:  config.VideoModel,
			searchModel: config.SearchModel,
			httpClient:  &http.Client{Timeout: config.Timeout},
		},
	}
}

func (p *OpenAIProvider) OpenConversation(history []domain.Message, systemInstruction string) Conversation {
	return newOpenAIConversation(p.client, p.config, history, systemInstruction)
}

func (p *OpenAIProvider) GetCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.config.TitleModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.config.Temperature,
		TopP:        p.config.TopP,
	})
	if err != nil {
		return "", NewProviderError("completion", "failed to create completion", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", NewPayloadError("completion", "empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Model:          p.config.ImageModel,
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", NewProviderError("image", "failed to generate image", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", NewPayloadError("image", "response contained no image")
	}
	return fmt.Sprintf("data:image/png;base64,%s", resp.Data[0].B64JSON), nil
}

func (p *OpenAIProvider) EditImage(ctx context.Context, prompt string, att domain.Attachment) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(att.Data)
	if err != nil {
		return "", NewProviderError("image_edit", "attachment is not valid base64", err)
	}

	resp, err := p.client.CreateEditImage(ctx, openai.ImageEditRequest{
		Model:          p.config.ImageEditModel,
		Image:          openai.WrapReader(bytes.NewReader(raw), "attachment.png", att.MimeType),
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", NewProviderError("image_edit", "failed to edit image", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", NewPayloadError("image_edit", "response contained no image")
	}
	return fmt.Sprintf("data:image/png;base64,%s", resp.Data[0].B64JSON), nil
}

func (p *OpenAIProvider) StartVideoGeneration(ctx context.Context, prompt string) (VideoOperation, error) {
	return p.media.startVideo(ctx, prompt)
}

func (p *OpenAIProvider) GetVideoOperation(ctx context.Context, id string) (VideoOperation, error) {
	return p.media.getVideo(ctx, id)
}

func (p *OpenAIProvider) FetchVideo(ctx context.Context, op VideoOperation) (string, error) {
	return p.media.downloadVideo(ctx, op)
}

func (p *OpenAIProvider) SearchGrounded(ctx context.Context, query string) (string, []domain.GroundingChunk, error) {
	return p.media.searchGrounded(ctx, query)
}
