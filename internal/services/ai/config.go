// File: internal/services/ai/config.go
package ai

import (
	"fmt"
	"time"
)

type Config struct {
	// Conversational endpoint
	APIKey    string
	BaseURL   string
	ChatModel string
	// TitleModel serves the short one-shot title completions.
	TitleModel string

	// Image endpoints
	ImageModel     string
	ImageEditModel string

	// Media surface (long-running video, grounded search)
	MediaAPIKey  string
	MediaBaseURL string
	VideoModel   string
	SearchModel  string

	// Model parameters
	Temperature float32
	TopP        float32

	// Performance
	Timeout time.Duration
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("AI_API_KEY is required")
	}
	if c.ChatModel == "" {
		return fmt.Errorf("CHAT_MODEL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:     5 * time.Minute,
		Temperature: 0.7,
		TopP:        0.9,
	}
}
