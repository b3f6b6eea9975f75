package preferences

import (
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) EmbedWithRetry(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

// memPrefStore is an in-memory storage.PreferenceStore.
type memPrefStore struct {
	prefs     []types.UserPreferenceEntry
	insertErr error
}

func (m *memPrefStore) Insert(ctx context.Context, pref *types.UserPreferenceEntry) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.prefs = append(m.prefs, *pref)
	return nil
}

func (m *memPrefStore) Search(ctx context.Context, userID string, query []float32, limit int) ([]types.SearchResult, error) {
	return nil, errors.New("not implemented")
}

func (m *memPrefStore) ListAll(ctx context.Context, userID string) ([]types.UserPreferenceEntry, error) {
	var out []types.UserPreferenceEntry
	for _, p := range m.prefs {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPrefStore) Delete(ctx context.Context, id string) error {
	for i, p := range m.prefs {
		if p.ID == id {
			m.prefs = append(m.prefs[:i], m.prefs[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

// stubChats provides just the counting and history methods the service uses.
type stubChats struct {
	count  int
	recent []types.ChatMessage
}

func (s *stubChats) CreateSession(ctx context.Context, session *types.ChatSession) error {
	return errors.New("not implemented")
}
func (s *stubChats) GetSession(ctx context.Context, id string) (*types.ChatSession, error) {
	return nil, errors.New("not implemented")
}
func (s *stubChats) ListSessions(ctx context.Context, userID string) ([]types.ChatSession, error) {
	return nil, errors.New("not implemented")
}
func (s *stubChats) SaveMessage(ctx context.Context, msg *types.ChatMessage) error {
	return errors.New("not implemented")
}
func (s *stubChats) ListMessages(ctx context.Context, sessionID string, limit int) ([]types.ChatMessage, error) {
	return nil, errors.New("not implemented")
}
func (s *stubChats) LatestUserMessage(ctx context.Context, sessionID string) (*types.ChatMessage, error) {
	return nil, errors.New("not implemented")
}
func (s *stubChats) MarkRead(ctx context.Context, messageID string) error {
	return errors.New("not implemented")
}
func (s *stubChats) CountUserMessages(ctx context.Context, userID string) (int, error) {
	return s.count, nil
}
func (s *stubChats) RecentUserMessages(ctx context.Context, userID string, limit int) ([]types.ChatMessage, error) {
	return s.recent, nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestService(store *memPrefStore, chats *stubChats, embedder *stubEmbedder) *Service {
	return NewService(store, chats, embedder, log.New(discard{}, "", 0))
}

func TestLearnFromMessage_SavesExplicit(t *testing.T) {
	store := &memPrefStore{}
	svc := newTestService(store, &stubChats{count: 3}, &stubEmbedder{})

	svc.LearnFromMessage(context.Background(), "user-1", "I prefer dark roast coffee.")

	require.Len(t, store.prefs, 1)
	p := store.prefs[0]
	assert.Equal(t, "prefers dark roast coffee", p.Preference)
	assert.Equal(t, types.SourceExplicit, p.Source)
	assert.Equal(t, 1.0, p.Confidence)
	assert.Equal(t, []float32{1, 0, 0}, p.Embedding)
	assert.NotEmpty(t, p.ID)
}

func TestLearnFromMessage_DeduplicatesExact(t *testing.T) {
	store := &memPrefStore{prefs: []types.UserPreferenceEntry{
		{ID: "p1", UserID: "user-1", Preference: "Prefers Dark Roast Coffee", Source: types.SourceExplicit},
	}}
	svc := newTestService(store, &stubChats{count: 3}, &stubEmbedder{})

	svc.LearnFromMessage(context.Background(), "user-1", "I prefer dark roast coffee.")

	assert.Len(t, store.prefs, 1, "case-insensitive duplicates are skipped")
}

func TestLearnFromMessage_DeduplicatesWithinOneMessage(t *testing.T) {
	store := &memPrefStore{}
	svc := newTestService(store, &stubChats{count: 3}, &stubEmbedder{})

	svc.LearnFromMessage(context.Background(), "user-1",
		"I prefer dark roast coffee. I'd prefer dark roast coffee!")

	assert.Len(t, store.prefs, 1)
}

func TestLearnFromMessage_EmbedFailureIsSwallowed(t *testing.T) {
	store := &memPrefStore{}
	svc := newTestService(store, &stubChats{count: 3}, &stubEmbedder{err: errors.New("down")})

	svc.LearnFromMessage(context.Background(), "user-1", "I prefer dark roast coffee.")

	assert.Empty(t, store.prefs, "failures are logged, never raised")
}

func TestLearnFromMessage_PatternAnalysisPacing(t *testing.T) {
	recent := buildMessages([]string{"ok", "sure", "fine", "yes", "good"}, 0)

	// Count not on the boundary: no analysis runs.
	store := &memPrefStore{}
	svc := newTestService(store, &stubChats{count: 9, recent: recent}, &stubEmbedder{})
	svc.LearnFromMessage(context.Background(), "user-1", "nothing interesting here")
	assert.Empty(t, store.prefs)

	// Count on the boundary: style preferences get inferred.
	store = &memPrefStore{}
	svc = newTestService(store, &stubChats{count: 10, recent: recent}, &stubEmbedder{})
	svc.LearnFromMessage(context.Background(), "user-1", "nothing interesting here")

	require.NotEmpty(t, store.prefs)
	for _, p := range store.prefs {
		assert.Equal(t, types.SourcePatternAnalysis, p.Source)
	}
}

func TestList_GroupsAndStats(t *testing.T) {
	store := &memPrefStore{prefs: []types.UserPreferenceEntry{
		{ID: "p1", UserID: "user-1", Preference: "prefers tea", Source: types.SourceExplicit, Confidence: 1.0},
		{ID: "p2", UserID: "user-1", Preference: "prefers brief, concise responses", Source: types.SourcePatternAnalysis, Confidence: 0.7},
		{ID: "p3", UserID: "user-2", Preference: "prefers coffee", Source: types.SourceExplicit, Confidence: 1.0},
	}}
	svc := newTestService(store, &stubChats{}, &stubEmbedder{})

	grouped, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Len(t, grouped.Explicit, 1)
	assert.Len(t, grouped.Inferred, 1)
	assert.Equal(t, 2, grouped.Stats.Total)
	assert.Equal(t, 1, grouped.Stats.Explicit)
	assert.Equal(t, 1, grouped.Stats.Inferred)
	assert.InDelta(t, 0.85, grouped.Stats.AvgConfidence, 0.001)
}

func TestList_EmptyUser(t *testing.T) {
	svc := newTestService(&memPrefStore{}, &stubChats{}, &stubEmbedder{})

	grouped, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)

	assert.NotNil(t, grouped.Explicit)
	assert.NotNil(t, grouped.Inferred)
	assert.Zero(t, grouped.Stats.Total)
	assert.Zero(t, grouped.Stats.AvgConfidence)
}

func TestDelete(t *testing.T) {
	store := &memPrefStore{prefs: []types.UserPreferenceEntry{
		{ID: "p1", UserID: "user-1", Preference: "prefers tea"},
	}}
	svc := newTestService(store, &stubChats{}, &stubEmbedder{})

	require.NoError(t, svc.Delete(context.Background(), "p1"))
	assert.ErrorIs(t, svc.Delete(context.Background(), "p1"), storage.ErrNotFound)
}

func TestIsDuplicate_Jaccard(t *testing.T) {
	existing := []types.UserPreferenceEntry{
		{Preference: "prefers quick and short replies every time"},
	}

	// Identical word set, different order: duplicate.
	assert.True(t, isDuplicate("prefers short and quick replies every time", existing))

	// Mostly different words: not a duplicate.
	assert.False(t, isDuplicate("prefers long detailed answers", existing))
}
