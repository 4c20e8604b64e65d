// File: internal/services/ai_service.go
package services

import (
	"github.com/lunahq/luna/internal/config"
	"github.com/lunahq/luna/internal/services/ai"
)

// AIService is the constructed remote client handed to the orchestrator.
// Construction fails when credentials are missing; that failure is permanent
// for the process lifetime and the orchestrator surfaces it on every action.
type AIService struct {
	ai.Provider
	config *ai.Config
	logger Logger
}

func NewAIService(cfg *config.Config) (*AIService, error) {
	aiConfig := ai.DefaultConfig()
	aiConfig.APIKey = cfg.AIAPIKey
	aiConfig.BaseURL = cfg.AIBaseURL
	aiConfig.ChatModel = cfg.ChatModel
	aiConfig.TitleModel = cfg.TitleModel
	aiConfig.ImageModel = cfg.ImageModel
	aiConfig.ImageEditModel = cfg.ImageEditModel
	aiConfig.MediaAPIKey = cfg.MediaAPIKey
	aiConfig.MediaBaseURL = cfg.MediaBaseURL
	aiConfig.VideoModel = cfg.VideoModel
	aiConfig.SearchModel = cfg.SearchModel

	if err := aiConfig.Validate(); err != nil {
		return nil, err
	}

	logger := NewLogger("ai")
	logger.Info("AI service initialized", "chat_model", aiConfig.ChatModel)

	return &AIService{
		Provider: ai.NewOpenAIProvider(aiConfig),
		config:   aiConfig,
		logger:   logger,
	}, nil
}
