package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort   int
	DatabasePath string

	// Token signing configuration, loaded once at startup.
	JWTSecret         string
	AccessTokenExpiry time.Duration
	MinPasswordLength int

	// Paths to the externally obtained Google Drive OAuth credentials.
	GoogleCredentialsPath string
	GoogleTokenPath       string

	// Process-wide fallback keys for LLM providers. A user's stored key
	// always takes precedence.
	OpenAIAPIKey    string
	AnthropicAPIKey string

	AppEnv string
}

// Load loads configuration from environment variables or sets defaults.
// A .env file in the working directory is read first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	portStr := getEnv("PORT", "8000")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	expireStr := getEnv("ACCESS_TOKEN_EXPIRE_MINUTES", "30")
	expireMinutes, err := strconv.Atoi(expireStr)
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerPort:            port,
		DatabasePath:          getEnv("DATABASE_PATH", "./llm-mcp.db"),
		JWTSecret:             getEnv("JWT_SECRET", "your-super-secret"),
		AccessTokenExpiry:     time.Duration(expireMinutes) * time.Minute,
		MinPasswordLength:     8,
		GoogleCredentialsPath: getEnv("GOOGLE_DRIVE_CREDENTIALS_PATH", "credentials.json"),
		GoogleTokenPath:       getEnv("GOOGLE_DRIVE_TOKEN_PATH", "token.json"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		AppEnv:                getEnv("APP_ENV", "development"),
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
