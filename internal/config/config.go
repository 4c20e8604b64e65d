// File: internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort   string
	JWTSecretKey string
	DatabasePath string

	// Conversational endpoint (streaming + title generation).
	AIAPIKey  string
	AIBaseURL string
	ChatModel string
	// TitleModel defaults to ChatModel when unset.
	TitleModel string

	// Image endpoints share the conversational credentials.
	ImageModel     string
	ImageEditModel string

	// Long-running video generation and grounded search live on a separate
	// media surface with its own credentials.
	MediaAPIKey  string
	MediaBaseURL string
	VideoModel   string
	SearchModel  string

	GuestMessageLimit int
	Environment       string
}

// Load reads configuration from environment variables or a .env file.
func Load() *Config {
	env := os.Getenv("ENV")
	if strings.ToLower(env) != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		JWTSecretKey:      getEnv("JWT_SECRET_KEY", ""),
		DatabasePath:      getEnv("DATABASE_PATH", "luna.db"),
		AIAPIKey:          getEnv("AI_API_KEY", ""),
		AIBaseURL:         getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:         getEnv("CHAT_MODEL", "gpt-4o-mini"),
		TitleModel:        getEnv("TITLE_MODEL", ""),
		ImageModel:        getEnv("IMAGE_MODEL", "dall-e-3"),
		ImageEditModel:    getEnv("IMAGE_EDIT_MODEL", "dall-e-2"),
		MediaAPIKey:       getEnv("MEDIA_API_KEY", ""),
		MediaBaseURL:      getEnv("MEDIA_BASE_URL", ""),
		VideoModel:        getEnv("VIDEO_MODEL", "veo-2.0-generate-001"),
		SearchModel:       getEnv("SEARCH_MODEL", ""),
		GuestMessageLimit: getEnvAsInt("GUEST_MESSAGE_LIMIT", 5),
		Environment:       env,
	}

	if cfg.TitleModel == "" {
		cfg.TitleModel = cfg.ChatModel
	}
	if cfg.MediaAPIKey == "" {
		cfg.MediaAPIKey = cfg.AIAPIKey
	}
	if cfg.SearchModel == "" {
		cfg.SearchModel = cfg.ChatModel
	}

	// Validation for production environments
	if strings.ToLower(env) == "production" {
		missing := []string{}
		if cfg.JWTSecretKey == "" {
			missing = append(missing, "JWT_SECRET_KEY")
		}
		if cfg.AIAPIKey == "" {
			missing = append(missing, "AI_API_KEY")
		}
		if len(missing) > 0 {
			log.Fatalf("Missing required production environment variables: %v", missing)
		}
	}

	return cfg
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an env var as an integer, with a fallback.
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as integer. Using default value.", key)
		return defaultValue
	}
	return intValue
}
