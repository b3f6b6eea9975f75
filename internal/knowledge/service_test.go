package knowledge

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

type mockEmbedder struct {
	calls int
	err   error
}

func (m *mockEmbedder) EmbedWithRetry(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []float32{1, 2, 3}, nil
}

// memStore is an in-memory storage.KnowledgeStore for service tests.
type memStore struct {
	entries map[string]types.KnowledgeEntry
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]types.KnowledgeEntry{}}
}

func (m *memStore) Insert(ctx context.Context, entry *types.KnowledgeEntry) error {
	m.entries[entry.ID] = *entry
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (*types.KnowledgeEntry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	entry.Embedding = nil
	return &entry, nil
}

func (m *memStore) Update(ctx context.Context, entry *types.KnowledgeEntry) error {
	stored, ok := m.entries[entry.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if entry.Embedding == nil {
		entry.Embedding = stored.Embedding
	}
	m.entries[entry.ID] = *entry
	return nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.entries[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *memStore) ListByCategory(ctx context.Context, botID string, category types.KnowledgeCategory) ([]types.KnowledgeEntry, error) {
	var out []types.KnowledgeEntry
	for _, e := range m.entries {
		if e.BotID == botID && e.Category == category {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListAll(ctx context.Context, botID string) ([]types.KnowledgeEntry, error) {
	var out []types.KnowledgeEntry
	for _, e := range m.entries {
		if e.BotID == botID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) Search(ctx context.Context, botID string, query []float32, opts storage.SearchOptions) ([]types.SearchResult, error) {
	return nil, errors.New("not implemented")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestService(store *memStore, embedder *mockEmbedder) *Service {
	svc := NewService(store, embedder, log.New(discard{}, "", 0))
	svc.sleep = func(time.Duration) {}
	return svc
}

func validEntry(botID string) *types.KnowledgeEntry {
	return &types.KnowledgeEntry{
		BotID:    botID,
		Category: types.CategoryProductInfo,
		Title:    "Pricing",
		Content:  "The pro plan costs $20 per month.",
	}
}

func TestCreate_AssignsIDAndEmbedding(t *testing.T) {
	store := newMemStore()
	embedder := &mockEmbedder{}
	svc := newTestService(store, embedder)

	entry, err := svc.Create(context.Background(), validEntry("bot-1"))
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, []float32{1, 2, 3}, entry.Embedding)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Equal(t, 1, embedder.calls)

	stored := store.entries[entry.ID]
	assert.Equal(t, []float32{1, 2, 3}, stored.Embedding)
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(newMemStore(), &mockEmbedder{})

	bad := validEntry("bot-1")
	bad.Category = "invalid"
	_, err := svc.Create(context.Background(), bad)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	short := validEntry("bot-1")
	short.Content = "too short"
	_, err = svc.Create(context.Background(), short)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestCreate_EmbeddingFailurePropagates(t *testing.T) {
	embedErr := errors.New("provider down")
	svc := newTestService(newMemStore(), &mockEmbedder{err: embedErr})

	_, err := svc.Create(context.Background(), validEntry("bot-1"))
	assert.ErrorIs(t, err, embedErr)
}

func TestGet_OwnershipOrdering(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &mockEmbedder{})

	entry, err := svc.Create(context.Background(), validEntry("bot-1"))
	require.NoError(t, err)

	// Missing entries are NotFound even for the wrong bot.
	_, err = svc.Get(context.Background(), "bot-2", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Existing entries owned by another bot are Forbidden.
	_, err = svc.Get(context.Background(), "bot-2", entry.ID)
	assert.ErrorIs(t, err, storage.ErrForbidden)

	got, err := svc.Get(context.Background(), "bot-1", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
}

func TestUpdate_ReembedsOnlyOnContentChange(t *testing.T) {
	store := newMemStore()
	embedder := &mockEmbedder{}
	svc := newTestService(store, embedder)

	entry, err := svc.Create(context.Background(), validEntry("bot-1"))
	require.NoError(t, err)
	require.Equal(t, 1, embedder.calls)

	// Title-only update keeps the stored vector.
	newTitle := "New Pricing"
	updated, err := svc.Update(context.Background(), "bot-1", entry.ID, types.KnowledgeUpdate{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "New Pricing", updated.Title)
	assert.Equal(t, 1, embedder.calls, "no re-embed for title changes")

	// Content change triggers a re-embed.
	newContent := "The pro plan now costs $25 per month."
	_, err = svc.Update(context.Background(), "bot-1", entry.ID, types.KnowledgeUpdate{Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.calls)

	// Same content again is a no-op for the embedder.
	_, err = svc.Update(context.Background(), "bot-1", entry.ID, types.KnowledgeUpdate{Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.calls)
}

func TestUpdate_AdvancesUpdatedAt(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &mockEmbedder{})

	entry, err := svc.Create(context.Background(), validEntry("bot-1"))
	require.NoError(t, err)
	created := entry.UpdatedAt

	updated, err := svc.Update(context.Background(), "bot-1", entry.ID, types.KnowledgeUpdate{})
	require.NoError(t, err)
	assert.True(t, !updated.UpdatedAt.Before(created))
}

func TestUpdate_Ownership(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &mockEmbedder{})

	entry, err := svc.Create(context.Background(), validEntry("bot-1"))
	require.NoError(t, err)

	title := "Hijacked"
	_, err = svc.Update(context.Background(), "bot-2", entry.ID, types.KnowledgeUpdate{Title: &title})
	assert.ErrorIs(t, err, storage.ErrForbidden)
}

func TestDelete_Ownership(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &mockEmbedder{})

	entry, err := svc.Create(context.Background(), validEntry("bot-1"))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(context.Background(), "bot-2", entry.ID), storage.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(context.Background(), "bot-1", "missing"), storage.ErrNotFound)

	require.NoError(t, svc.Delete(context.Background(), "bot-1", entry.ID))
	assert.Empty(t, store.entries)
}

func TestImport_ContinuesPastFailures(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &mockEmbedder{})

	entries := []types.KnowledgeEntry{
		*validEntry("bot-1"),
		{BotID: "bot-1", Category: "bad", Title: "Broken", Content: "Invalid category entry."},
		*validEntry("bot-1"),
	}

	result, err := svc.Import(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Broken")
	assert.Len(t, store.entries, 2)
}

func TestImport_PausesBetweenBatches(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &mockEmbedder{})

	var pauses int
	svc.sleep = func(d time.Duration) {
		assert.Equal(t, time.Second, d)
		pauses++
	}

	entries := make([]types.KnowledgeEntry, 25)
	for i := range entries {
		entries[i] = *validEntry("bot-1")
	}

	result, err := svc.Import(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 25, result.Imported)
	assert.Equal(t, 2, pauses, "one pause after each full batch of 10")
}
