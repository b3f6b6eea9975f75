package preferences

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

// analysisEvery paces pattern analysis: it runs when the user's total
// message count hits a multiple of this, not on every message.
const analysisEvery = 10

// dedupJaccardThreshold is the word-set overlap above which two preference
// texts count as the same preference.
const dedupJaccardThreshold = 0.9

// Embedder is the slice of the embedding API the service needs.
type Embedder interface {
	EmbedWithRetry(ctx context.Context, text string) ([]float32, error)
}

// Service learns and serves user preferences.
type Service struct {
	store    storage.PreferenceStore
	chats    storage.ChatStore
	embedder Embedder
	logger   *log.Logger
}

// NewService creates a preference service. A nil logger falls back to the
// standard logger.
func NewService(store storage.PreferenceStore, chats storage.ChatStore, embedder Embedder, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:    store,
		chats:    chats,
		embedder: embedder,
		logger:   logger,
	}
}

// LearnFromMessage is the per-message feeder: it extracts explicit
// preference statements and periodically runs pattern analysis over recent
// history. The whole flow is best-effort. Preference learning must never
// break chat, so every failure is logged and swallowed.
func (s *Service) LearnFromMessage(ctx context.Context, userID, message string) {
	existing, err := s.store.ListAll(ctx, userID)
	if err != nil {
		s.logger.Printf("preferences: failed to list existing for %s: %v", userID, err)
		existing = nil
	}

	for _, pref := range ExtractExplicit(message) {
		if isDuplicate(pref.Text, existing) {
			continue
		}
		if saved := s.save(ctx, userID, pref, types.SourceExplicit); saved != nil {
			existing = append(existing, *saved)
		}
	}

	count, err := s.chats.CountUserMessages(ctx, userID)
	if err != nil {
		s.logger.Printf("preferences: failed to count messages for %s: %v", userID, err)
		return
	}
	if count == 0 || count%analysisEvery != 0 {
		return
	}

	recent, err := s.chats.RecentUserMessages(ctx, userID, analysisWindow)
	if err != nil {
		s.logger.Printf("preferences: failed to load recent messages for %s: %v", userID, err)
		return
	}

	for _, pref := range AnalyzePatterns(recent, userID) {
		if isDuplicate(pref.Text, existing) {
			continue
		}
		if saved := s.save(ctx, userID, pref, types.SourcePatternAnalysis); saved != nil {
			existing = append(existing, *saved)
		}
	}
}

// save embeds and persists one preference, logging failures instead of
// propagating them.
func (s *Service) save(ctx context.Context, userID string, pref ExtractedPreference, source types.PreferenceSource) *types.UserPreferenceEntry {
	vec, err := s.embedder.EmbedWithRetry(ctx, pref.Text)
	if err != nil {
		s.logger.Printf("preferences: failed to embed %q for %s: %v", pref.Text, userID, err)
		return nil
	}

	entry := &types.UserPreferenceEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Preference: pref.Text,
		Source:     source,
		Confidence: pref.Confidence,
		Embedding:  vec,
	}

	if err := s.store.Insert(ctx, entry); err != nil {
		s.logger.Printf("preferences: failed to save %q for %s: %v", pref.Text, userID, err)
		return nil
	}

	return entry
}

// PreferenceStats summarises a user's learned preferences.
type PreferenceStats struct {
	Total         int     `json:"total"`
	Explicit      int     `json:"explicit"`
	Inferred      int     `json:"inferred"`
	AvgConfidence float64 `json:"avgConfidence"`
}

// GroupedPreferences is the API shape for listing a user's preferences.
type GroupedPreferences struct {
	Explicit []types.UserPreferenceEntry `json:"explicit"`
	Inferred []types.UserPreferenceEntry `json:"inferred"`
	Stats    PreferenceStats             `json:"stats"`
}

// List returns a user's preferences grouped by source with summary stats.
func (s *Service) List(ctx context.Context, userID string) (*GroupedPreferences, error) {
	prefs, err := s.store.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	grouped := &GroupedPreferences{
		Explicit: []types.UserPreferenceEntry{},
		Inferred: []types.UserPreferenceEntry{},
	}

	var confidenceSum float64
	for _, p := range prefs {
		if p.Source == types.SourceExplicit {
			grouped.Explicit = append(grouped.Explicit, p)
		} else {
			grouped.Inferred = append(grouped.Inferred, p)
		}
		confidenceSum += p.Confidence
	}

	grouped.Stats = PreferenceStats{
		Total:    len(prefs),
		Explicit: len(grouped.Explicit),
		Inferred: len(grouped.Inferred),
	}
	if len(prefs) > 0 {
		grouped.Stats.AvgConfidence = confidenceSum / float64(len(prefs))
	}

	return grouped, nil
}

// Delete removes one preference by ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// isDuplicate reports whether a candidate preference already exists:
// case-insensitive equality, or near-total word overlap for rephrasings.
func isDuplicate(text string, existing []types.UserPreferenceEntry) bool {
	lower := strings.ToLower(text)
	for _, e := range existing {
		eLower := strings.ToLower(e.Preference)
		if lower == eLower {
			return true
		}
		if jaccard(wordSet(lower), wordSet(eLower)) > dedupJaccardThreshold {
			return true
		}
	}
	return false
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
