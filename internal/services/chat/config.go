// File: internal/services/chat/config.go
package chat

import (
	"fmt"
	"time"
)

type Config struct {
	// Guest quota: user-authored turns allowed before authentication is
	// required.
	GuestMessageLimit int

	// Title generation
	TitleMaxPromptRunes int

	// Video polling
	VideoPollInterval time.Duration
}

func (c *Config) Validate() error {
	if c.GuestMessageLimit <= 0 {
		return fmt.Errorf("guest_message_limit must be positive")
	}
	if c.TitleMaxPromptRunes <= 0 {
		return fmt.Errorf("title_max_prompt_runes must be positive")
	}
	if c.VideoPollInterval <= 0 {
		return fmt.Errorf("video_poll_interval must be positive")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		GuestMessageLimit:   5,
		TitleMaxPromptRunes: 300,
		VideoPollInterval:   10 * time.Second,
	}
}
