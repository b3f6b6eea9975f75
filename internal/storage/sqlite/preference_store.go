package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

// PreferenceStore implements storage.PreferenceStore on top of the
// user_preferences table.
type PreferenceStore struct {
	db *sql.DB
}

var _ storage.PreferenceStore = (*PreferenceStore)(nil)

// Insert persists a learned user preference with its embedding blob.
func (s *PreferenceStore) Insert(ctx context.Context, pref *types.UserPreferenceEntry) error {
	if pref == nil {
		return storage.ErrInvalidInput
	}
	if pref.ID == "" || pref.UserID == "" || pref.Preference == "" {
		return fmt.Errorf("%w: preference ID, user ID, and text are required", storage.ErrInvalidInput)
	}

	if pref.CreatedAt.IsZero() {
		pref.CreatedAt = time.Now()
	}

	const query = `
		INSERT INTO user_preferences (id, user_id, preference, source, confidence, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		pref.ID, pref.UserID, pref.Preference, string(pref.Source),
		pref.Confidence, serializeVector(pref.Embedding), pref.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to insert preference: %w", err)
	}

	return nil
}

// Search loads a user's preference embeddings and ranks them in Go by
// cosine similarity. Results carry the preference source as their category
// and a fixed title so they can be told apart from knowledge hits
// downstream.
func (s *PreferenceStore) Search(ctx context.Context, userID string, query []float32, limit int) ([]types.SearchResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if len(query) == 0 {
		return []types.SearchResult{}, nil
	}
	if limit <= 0 {
		limit = storage.DefaultSearchLimit
	}
	if limit > storage.MaxSearchLimit {
		limit = storage.MaxSearchLimit
	}

	const candidateSQL = `
		SELECT id, preference, source, confidence, embedding
		FROM user_preferences
		WHERE user_id = ? AND embedding IS NOT NULL
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, candidateSQL, userID, searchMaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("sqlite: preference search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []types.SearchResult
	for rows.Next() {
		var (
			id, preference, source string
			confidence             float64
			blob                   []byte
		)
		if err := rows.Scan(&id, &preference, &source, &confidence, &blob); err != nil {
			return nil, fmt.Errorf("sqlite: scan preference candidate: %w", err)
		}
		embedding, err := deserializeVector(blob)
		if err != nil {
			continue
		}
		candidates = append(candidates, types.SearchResult{
			ID:         id,
			Category:   source,
			Title:      types.PreferenceResultTitle,
			Content:    preference,
			Metadata:   map[string]interface{}{"confidence": confidence},
			Similarity: cosineSimilarity(query, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows error: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return candidates, nil
}

// ListAll returns all of a user's preferences ordered by confidence,
// highest first.
func (s *PreferenceStore) ListAll(ctx context.Context, userID string) ([]types.UserPreferenceEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	const query = `
		SELECT id, user_id, preference, source, confidence, created_at
		FROM user_preferences
		WHERE user_id = ?
		ORDER BY confidence DESC, created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prefs []types.UserPreferenceEntry
	for rows.Next() {
		var p types.UserPreferenceEntry
		var source string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Preference, &source, &p.Confidence, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan preference row: %w", err)
		}
		p.Source = types.PreferenceSource(source)
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows error: %w", err)
	}

	return prefs, nil
}

// Delete removes a single preference by ID.
func (s *PreferenceStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: preference ID is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM user_preferences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete preference: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}
