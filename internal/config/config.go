// Package config provides configuration management for Parley.
// It loads settings from environment variables with the PARLEY_ prefix
// and provides sensible defaults for all configuration options.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/parleyhq/parley/internal/retrieval"
)

// Config holds all configuration settings for the Parley application.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Embedding EmbeddingConfig
	Chat      ChatConfig
	Retrieval RetrievalConfig
	Security  SecurityConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 8080)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: postgres, sqlite (default: postgres)
	PostgresDSN   string // Postgres connection string
	DataPath      string // Path to data directory for the sqlite engine (default: ./data)
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider     string // Embedding provider: google, ollama (default: google)
	GoogleAPIKey string // Google AI API key
	GoogleModel  string // Google embedding model (default: text-embedding-004)
	OllamaURL    string // Ollama API URL (default: http://localhost:11434)
	OllamaModel  string // Ollama embedding model (default: nomic-embed-text)
}

// ChatConfig contains chat completion provider configuration.
type ChatConfig struct {
	OpenRouterAPIKey string // OpenRouter API key
	OpenRouterModel  string // OpenRouter model name
	BotsPath         string // Path to the bot registry YAML file (default: ./bots.yaml)
}

// RetrievalConfig contains retrieval tuning knobs.
type RetrievalConfig struct {
	TopK          int     // Result cap per retrieval (default: 7)
	MinSimilarity float64 // Similarity floor for results (default: 0.3)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the PARLEY_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PARLEY_PORT", 8080),
			Host: getEnv("PARLEY_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("PARLEY_STORAGE_ENGINE", "postgres"),
			PostgresDSN:   getEnv("PARLEY_POSTGRES_DSN", ""),
			DataPath:      getEnv("PARLEY_DATA_PATH", "./data"),
		},
		Embedding: EmbeddingConfig{
			Provider:     getEnv("PARLEY_EMBEDDING_PROVIDER", "google"),
			GoogleAPIKey: getEnv("PARLEY_GOOGLE_API_KEY", ""),
			GoogleModel:  getEnv("PARLEY_GOOGLE_EMBEDDING_MODEL", "text-embedding-004"),
			OllamaURL:    getEnv("PARLEY_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:  getEnv("PARLEY_OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		},
		Chat: ChatConfig{
			OpenRouterAPIKey: getEnv("PARLEY_OPENROUTER_API_KEY", ""),
			OpenRouterModel:  getEnv("PARLEY_OPENROUTER_MODEL", ""),
			BotsPath:         getEnv("PARLEY_BOTS_PATH", "./bots.yaml"),
		},
		Retrieval: RetrievalConfig{
			TopK:          getEnvInt("PARLEY_RETRIEVAL_TOP_K", retrieval.DefaultTopK),
			MinSimilarity: getEnvFloat("PARLEY_RETRIEVAL_MIN_SIMILARITY", retrieval.DefaultMinSimilarity),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("PARLEY_SECURITY_MODE", "development"),
			APIToken:     getEnv("PARLEY_API_TOKEN", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that a missing or mistyped
// environment variable would otherwise surface much later at runtime.
func (c *Config) Validate() error {
	switch c.Storage.StorageEngine {
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: PARLEY_POSTGRES_DSN is required when the storage engine is postgres")
		}
	case "sqlite":
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.StorageEngine)
	}

	switch c.Embedding.Provider {
	case "google":
		if c.Embedding.GoogleAPIKey == "" {
			return fmt.Errorf("config: PARLEY_GOOGLE_API_KEY is required when the embedding provider is google")
		}
	case "ollama":
	default:
		return fmt.Errorf("config: unknown embedding provider %q", c.Embedding.Provider)
	}

	if c.Security.SecurityMode == "production" && c.Security.APIToken == "" {
		return fmt.Errorf("config: PARLEY_API_TOKEN is required in production mode")
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("config: PARLEY_RETRIEVAL_TOP_K must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("config: PARLEY_RETRIEVAL_MIN_SIMILARITY must be in [0, 1], got %g", c.Retrieval.MinSimilarity)
	}

	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as a float,
// it returns the default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
