package llm

import (
	"fmt"
	"time"
)

// ProviderConfig is the provider-agnostic configuration accepted by the
// factory functions. The config package maps environment variables onto it.
type ProviderConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// NewEmbeddingClient creates the appropriate EmbeddingClient for the
// configured provider.
func NewEmbeddingClient(cfg ProviderConfig) (EmbeddingClient, error) {
	switch cfg.Provider {
	case "google", "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("google embedding provider requires an API key")
		}
		return NewGoogleClient(GoogleConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}), nil
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}
