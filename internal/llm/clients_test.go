package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleClient_Embed(t *testing.T) {
	var gotPath string
	var gotKey string
	var gotBody googleEmbedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(googleEmbedResponse{
			Embedding: struct {
				Values []float32 `json:"values"`
			}{Values: []float32{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	client := NewGoogleClient(GoogleConfig{APIKey: "test-key", BaseURL: srv.URL})

	vec, err := client.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)

	assert.Equal(t, "/v1beta/models/text-embedding-004:embedContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Content.Parts, 1)
	assert.Equal(t, "hello world", gotBody.Content.Parts[0].Text)
	assert.Equal(t, "text-embedding-004", client.GetModel())
}

func TestGoogleClient_ClassifiesFatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"quota", http.StatusTooManyRequests, ErrQuotaExceeded},
		{"unauthorized", http.StatusUnauthorized, ErrInvalidCredentials},
		{"forbidden", http.StatusForbidden, ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewGoogleClient(GoogleConfig{APIKey: "k", BaseURL: srv.URL})

			_, err := client.Embed(context.Background(), "text")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsFatal(err))
		})
	}
}

func TestGoogleClient_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewGoogleClient(GoogleConfig{APIKey: "k", BaseURL: srv.URL})

	_, err := client.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, IsFatal(err))
}

func TestOllamaClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{1, 2, 3}},
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: srv.URL})

	vec, err := client.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestOpenRouterClient_Chat(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Write([]byte(`{"choices":[{"message":{"content":"Hello there!"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenRouterClient(OpenRouterConfig{APIKey: "or-key", BaseURL: srv.URL})

	reply, err := client.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a helpful bot."},
		{Role: RoleUser, Content: "Hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", reply)

	assert.Equal(t, "Bearer or-key", gotAuth)
	assert.Equal(t, DefaultOpenRouterModel, gotReq.Model)
	assert.Equal(t, 0.7, gotReq.Temperature)
	assert.Equal(t, 1000, gotReq.MaxTokens)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, RoleSystem, gotReq.Messages[0].Role)
}

func TestOpenRouterClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k", BaseURL: srv.URL})

	_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}})
	assert.ErrorContains(t, err, "no choices")
}

func TestOpenRouterClient_EmptyMessages(t *testing.T) {
	client := NewOpenRouterClient(OpenRouterConfig{APIKey: "k"})

	_, err := client.Chat(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewEmbeddingClient(t *testing.T) {
	google, err := NewEmbeddingClient(ProviderConfig{Provider: "google", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, (*GoogleClient)(nil), google)

	_, err = NewEmbeddingClient(ProviderConfig{Provider: "google"})
	assert.Error(t, err, "google requires an API key")

	ollama, err := NewEmbeddingClient(ProviderConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, (*OllamaClient)(nil), ollama)

	_, err = NewEmbeddingClient(ProviderConfig{Provider: "nope"})
	assert.Error(t, err)
}
