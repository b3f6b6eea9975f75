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

// searchMaxCandidates caps the number of embeddings loaded into memory
// during a similarity search. Candidates are selected newest first, so the
// most recently added entries are always considered. For typical per-bot
// knowledge bases this limit is never hit; larger datasets belong on the
// PostgreSQL backend.
const searchMaxCandidates = 10_000

// KnowledgeStore implements storage.KnowledgeStore on top of the
// knowledge_entries table.
type KnowledgeStore struct {
	db *sql.DB
}

var _ storage.KnowledgeStore = (*KnowledgeStore)(nil)

// Insert persists a new knowledge entry together with its embedding blob.
func (s *KnowledgeStore) Insert(ctx context.Context, entry *types.KnowledgeEntry) error {
	if entry == nil {
		return storage.ErrInvalidInput
	}
	if entry.ID == "" {
		return fmt.Errorf("%w: entry ID is required", storage.ErrInvalidInput)
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	metadataJSON, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.CreatedAt
	}

	const query = `
		INSERT INTO knowledge_entries (id, bot_id, category, title, content, embedding, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID, entry.BotID, string(entry.Category), entry.Title, entry.Content,
		serializeVector(entry.Embedding), metadataJSON, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to insert knowledge entry: %w", err)
	}

	return nil
}

// Get retrieves a knowledge entry by ID. The embedding blob is not read
// back; callers re-embed from content when they need a fresh vector.
func (s *KnowledgeStore) Get(ctx context.Context, id string) (*types.KnowledgeEntry, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: entry ID is required", storage.ErrInvalidInput)
	}

	const query = `
		SELECT id, bot_id, category, title, content, metadata, created_at, updated_at
		FROM knowledge_entries
		WHERE id = ?
	`

	entry, err := scanKnowledgeRow(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get knowledge entry: %w", err)
	}

	return entry, nil
}

// Update overwrites an existing entry. The embedding is replaced only when
// the caller set one; otherwise the stored blob is kept.
func (s *KnowledgeStore) Update(ctx context.Context, entry *types.KnowledgeEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("%w: entry ID is required", storage.ErrInvalidInput)
	}

	metadataJSON, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}

	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}

	var result sql.Result
	if len(entry.Embedding) > 0 {
		const query = `
			UPDATE knowledge_entries
			SET category = ?, title = ?, content = ?, embedding = ?, metadata = ?, updated_at = ?
			WHERE id = ?
		`
		result, err = s.db.ExecContext(ctx, query,
			string(entry.Category), entry.Title, entry.Content,
			serializeVector(entry.Embedding), metadataJSON, entry.UpdatedAt, entry.ID)
	} else {
		const query = `
			UPDATE knowledge_entries
			SET category = ?, title = ?, content = ?, metadata = ?, updated_at = ?
			WHERE id = ?
		`
		result, err = s.db.ExecContext(ctx, query,
			string(entry.Category), entry.Title, entry.Content,
			metadataJSON, entry.UpdatedAt, entry.ID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: failed to update knowledge entry: %w", err)
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

// Delete permanently removes a knowledge entry by ID.
func (s *KnowledgeStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: entry ID is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete knowledge entry: %w", err)
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

// ListByCategory returns a bot's entries in one category, newest first.
func (s *KnowledgeStore) ListByCategory(ctx context.Context, botID string, category types.KnowledgeCategory) ([]types.KnowledgeEntry, error) {
	if botID == "" {
		return nil, fmt.Errorf("%w: bot ID is required", storage.ErrInvalidInput)
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: invalid category %q", storage.ErrInvalidInput, category)
	}

	const query = `
		SELECT id, bot_id, category, title, content, metadata, created_at, updated_at
		FROM knowledge_entries
		WHERE bot_id = ? AND category = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, botID, string(category))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list knowledge by category: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanKnowledgeRows(rows)
}

// ListAll returns all of a bot's entries, newest first.
func (s *KnowledgeStore) ListAll(ctx context.Context, botID string) ([]types.KnowledgeEntry, error) {
	if botID == "" {
		return nil, fmt.Errorf("%w: bot ID is required", storage.ErrInvalidInput)
	}

	const listSQL = `
		SELECT id, bot_id, category, title, content, metadata, created_at, updated_at
		FROM knowledge_entries
		WHERE bot_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, listSQL, botID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list knowledge: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanKnowledgeRows(rows)
}

// Search loads candidate embeddings for the bot and ranks them in Go by
// cosine similarity. Entries without an embedding never match. Results are
// ordered by similarity descending with ID as the tie-break.
func (s *KnowledgeStore) Search(ctx context.Context, botID string, query []float32, opts storage.SearchOptions) ([]types.SearchResult, error) {
	if botID == "" {
		return nil, fmt.Errorf("%w: bot ID is required", storage.ErrInvalidInput)
	}
	if len(query) == 0 {
		return []types.SearchResult{}, nil
	}
	opts.Normalize()

	var (
		rows *sql.Rows
		err  error
	)
	if opts.Category != "" {
		const candidateSQL = `
			SELECT id, category, title, content, metadata, embedding
			FROM knowledge_entries
			WHERE bot_id = ? AND category = ? AND embedding IS NOT NULL
			ORDER BY created_at DESC
			LIMIT ?
		`
		rows, err = s.db.QueryContext(ctx, candidateSQL, botID, opts.Category, searchMaxCandidates)
	} else {
		const candidateSQL = `
			SELECT id, category, title, content, metadata, embedding
			FROM knowledge_entries
			WHERE bot_id = ? AND embedding IS NOT NULL
			ORDER BY created_at DESC
			LIMIT ?
		`
		rows, err = s.db.QueryContext(ctx, candidateSQL, botID, searchMaxCandidates)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: knowledge search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []types.SearchResult
	for rows.Next() {
		var r types.SearchResult
		var metadataJSON sql.NullString
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Category, &r.Title, &r.Content, &metadataJSON, &blob); err != nil {
			return nil, fmt.Errorf("sqlite: scan search candidate: %w", err)
		}
		embedding, err := deserializeVector(blob)
		if err != nil {
			continue
		}
		metadata, err := unmarshalMetadata(metadataJSON)
		if err != nil {
			return nil, err
		}
		r.Metadata = metadata
		r.Similarity = cosineSimilarity(query, embedding)
		candidates = append(candidates, r)
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

	if len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}

	return candidates, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan code.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanKnowledgeRow(row rowScanner) (*types.KnowledgeEntry, error) {
	var entry types.KnowledgeEntry
	var category string
	var metadataJSON sql.NullString

	err := row.Scan(
		&entry.ID,
		&entry.BotID,
		&category,
		&entry.Title,
		&entry.Content,
		&metadataJSON,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Category = types.KnowledgeCategory(category)

	metadata, err := unmarshalMetadata(metadataJSON)
	if err != nil {
		return nil, err
	}
	entry.Metadata = metadata

	return &entry, nil
}

func scanKnowledgeRows(rows *sql.Rows) ([]types.KnowledgeEntry, error) {
	var entries []types.KnowledgeEntry
	for rows.Next() {
		entry, err := scanKnowledgeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan knowledge row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows error: %w", err)
	}
	return entries, nil
}
