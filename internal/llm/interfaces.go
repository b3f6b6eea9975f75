// Package llm contains the HTTP clients for external model providers:
// embedding generation (Google, Ollama) and chat completion (OpenRouter).
// All calls are wrapped with circuit breaker protection.
package llm

import "context"

// Chat message roles as used by OpenAI-compatible chat completion APIs.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EmbeddingClient is the interface for generating vector embeddings.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

// ChatClient is the interface for chat completion.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	GetModel() string
}
