// Package embedding wraps an llm.EmbeddingClient with the text hygiene,
// caching, and retry behavior the retrieval pipeline depends on.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/parleyhq/parley/internal/llm"
)

const (
	// Dimension is the embedding dimensionality used throughout the system.
	// Model output longer than this is truncated; the stored vectors and
	// query vectors must agree for cosine similarity to mean anything.
	Dimension = 768

	// maxInputWords caps the cleaned input passed to the provider.
	maxInputWords = 8000

	// maxRetries bounds EmbedWithRetry attempts.
	maxRetries = 3

	// cacheSize is the number of text to vector entries kept in the LRU
	// cache. Texts repeat often (the same knowledge content is re-embedded
	// on import retries, the same queries recur across a conversation), so
	// even a small cache saves real provider calls.
	cacheSize = 1024
)

var (
	// ErrEmptyInput is returned when the text is empty after cleaning.
	ErrEmptyInput = errors.New("embedding: input text is empty")

	// ErrEmptyEmbedding is returned when the provider responds successfully
	// but with a zero-length vector.
	ErrEmptyEmbedding = errors.New("embedding: provider returned empty embedding")

	// ErrEmbeddingUnavailable is returned when all retry attempts are
	// exhausted.
	ErrEmbeddingUnavailable = errors.New("embedding: provider unavailable after retries")
)

// Embedder generates fixed-dimension embeddings with caching and retry.
// Only text to vector results are cached, never query results, so cached
// entries stay valid as the underlying stores change.
type Embedder struct {
	client llm.EmbeddingClient
	cache  *lru.Cache[string, []float32]

	// sleep is replaceable in tests to avoid real backoff delays.
	sleep func(time.Duration)
}

// NewEmbedder creates an Embedder on top of the given provider client.
func NewEmbedder(client llm.EmbeddingClient) (*Embedder, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding: client is required")
	}

	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("embedding: failed to create cache: %w", err)
	}

	return &Embedder{
		client: client,
		cache:  cache,
		sleep:  time.Sleep,
	}, nil
}

// GetModel returns the underlying provider's model name.
func (e *Embedder) GetModel() string {
	return e.client.GetModel()
}

// Embed generates an embedding for the given text. The text is cleaned
// first; cleaned texts that were embedded before are served from cache.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cleaned := cleanText(text)
	if cleaned == "" {
		return nil, ErrEmptyInput
	}

	if vec, ok := e.cache.Get(cleaned); ok {
		return vec, nil
	}

	vec, err := e.client.Embed(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ErrEmptyEmbedding
	}

	if len(vec) > Dimension {
		vec = vec[:Dimension]
	}

	e.cache.Add(cleaned, vec)
	return vec, nil
}

// EmbedBatch embeds all texts concurrently. It is all-or-nothing: if any
// text fails, the whole batch fails with the first error encountered.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			results[i], errs[i] = e.Embed(ctx, text)
		}(i, text)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

// EmbedWithRetry embeds with exponential backoff: up to 3 attempts with 1s,
// 2s waits in between. Quota and credential errors are fatal and propagate
// immediately since retrying cannot fix them; the same goes for empty input
// and an empty provider response, which signal bad data, not a flaky call.
func (e *Embedder) EmbedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		vec, err := e.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}

		if errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrEmptyEmbedding) || llm.IsFatal(err) {
			return nil, err
		}
		lastErr = err

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			e.sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, lastErr)
}

// CacheLen returns the number of cached embeddings.
func (e *Embedder) CacheLen() int {
	return e.cache.Len()
}

// cleanText collapses all whitespace runs to single spaces and caps the
// result at maxInputWords words, appending "..." when truncated.
func cleanText(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	if len(words) > maxInputWords {
		return strings.Join(words[:maxInputWords], " ") + "..."
	}
	return strings.Join(words, " ")
}
