// Package knowledge implements the management operations on a bot's
// knowledge base: create, read, update, delete, list, and bulk import.
// Ownership rules and embedding upkeep live here, above the storage layer.
package knowledge

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

const (
	// importBatchSize is how many entries are embedded and inserted before
	// pausing during a bulk import.
	importBatchSize = 10

	// importBatchPause is the pause between import batches, giving the
	// embedding provider's rate limiter room to breathe.
	importBatchPause = time.Second
)

// Embedder is the slice of the embedding API the service needs.
type Embedder interface {
	EmbedWithRetry(ctx context.Context, text string) ([]float32, error)
}

// Service coordinates knowledge operations across the store and embedder.
type Service struct {
	store    storage.KnowledgeStore
	embedder Embedder
	logger   *log.Logger

	// sleep is replaceable in tests to avoid real import pauses.
	sleep func(time.Duration)
}

// NewService creates a knowledge service. A nil logger falls back to the
// standard logger.
func NewService(store storage.KnowledgeStore, embedder Embedder, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:    store,
		embedder: embedder,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// Create validates the entry, embeds its content, and persists it. The
// caller provides BotID, Category, Title, Content, and optional Metadata;
// ID and timestamps are assigned here.
func (s *Service) Create(ctx context.Context, entry *types.KnowledgeEntry) (*types.KnowledgeEntry, error) {
	if entry == nil {
		return nil, storage.ErrInvalidInput
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	vec, err := s.embedder.EmbedWithRetry(ctx, entry.Content)
	if err != nil {
		return nil, fmt.Errorf("knowledge: failed to embed content: %w", err)
	}

	now := time.Now()
	entry.ID = uuid.NewString()
	entry.Embedding = vec
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if err := s.store.Insert(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// Get retrieves an entry for the given bot. Missing entries return
// ErrNotFound; entries owned by another bot return ErrForbidden, and only
// after existence is known, so the two cases stay distinguishable.
func (s *Service) Get(ctx context.Context, botID, id string) (*types.KnowledgeEntry, error) {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.BotID != botID {
		return nil, storage.ErrForbidden
	}
	return entry, nil
}

// Update applies a partial update to an entry owned by the bot. The content
// is re-embedded only when it actually changed; title and metadata edits
// keep the stored vector. UpdatedAt always advances, even for no-op bodies.
func (s *Service) Update(ctx context.Context, botID, id string, update types.KnowledgeUpdate) (*types.KnowledgeEntry, error) {
	entry, err := s.Get(ctx, botID, id)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if update.Title != nil {
		entry.Title = *update.Title
	}
	if update.Content != nil && *update.Content != entry.Content {
		entry.Content = *update.Content
		contentChanged = true
	}
	if update.Metadata != nil {
		entry.Metadata = *update.Metadata
	}

	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	entry.Embedding = nil
	if contentChanged {
		vec, err := s.embedder.EmbedWithRetry(ctx, entry.Content)
		if err != nil {
			return nil, fmt.Errorf("knowledge: failed to re-embed content: %w", err)
		}
		entry.Embedding = vec
	}

	entry.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// Delete removes an entry owned by the bot, with the same NotFound before
// Forbidden ordering as Get.
func (s *Service) Delete(ctx context.Context, botID, id string) error {
	if _, err := s.Get(ctx, botID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// List returns a bot's entries, optionally restricted to one category.
func (s *Service) List(ctx context.Context, botID string, category types.KnowledgeCategory) ([]types.KnowledgeEntry, error) {
	if category == "" {
		return s.store.ListAll(ctx, botID)
	}
	return s.store.ListByCategory(ctx, botID, category)
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Import creates many entries in batches, pausing between batches to stay
// under provider rate limits. Individual failures are recorded and skipped;
// the import keeps going.
func (s *Service) Import(ctx context.Context, entries []types.KnowledgeEntry) (*ImportResult, error) {
	result := &ImportResult{}

	for i := range entries {
		if i > 0 && i%importBatchSize == 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			default:
			}
			s.sleep(importBatchPause)
		}

		entry := entries[i]
		if _, err := s.Create(ctx, &entry); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d (%s): %v", i, entry.Title, err))
			s.logger.Printf("knowledge: import entry %d failed: %v", i, err)
			continue
		}
		result.Imported++
	}

	return result, nil
}
