package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GoogleConfig holds configuration for the Google embedding client.
type GoogleConfig struct {
	APIKey  string
	Model   string        // default: text-embedding-004
	BaseURL string        // default: https://generativelanguage.googleapis.com
	Timeout time.Duration // default: 30s
}

// GoogleClient implements EmbeddingClient using the Gemini embedContent API.
type GoogleClient struct {
	cfg            GoogleConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewGoogleClient creates a new Google embedding client.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GoogleClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker("GoogleEmbedding"),
	}
}

// googleEmbedRequest is the request body for models/{model}:embedContent.
type googleEmbedRequest struct {
	Content googleContent `json:"content"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

// googleEmbedResponse is the response body from models/{model}:embedContent.
type googleEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed generates an embedding for the given text. The request is wrapped
// with circuit breaker protection.
func (c *GoogleClient) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("google circuit breaker open: %w", err)
		}
		return nil, err
	}
	return result.([]float32), nil
}

func (c *GoogleClient) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := googleEmbedRequest{
		Content: googleContent{
			Parts: []googlePart{{Text: text}},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, statusError("google", resp.StatusCode, body)
	}

	var respData googleEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return respData.Embedding.Values, nil
}

// GetModel returns the configured model name.
func (c *GoogleClient) GetModel() string {
	return c.cfg.Model
}

var _ EmbeddingClient = (*GoogleClient)(nil)
