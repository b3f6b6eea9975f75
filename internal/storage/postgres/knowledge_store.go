package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

// KnowledgeStore implements storage.KnowledgeStore on top of the
// knowledge_entries table.
type KnowledgeStore struct {
	db *sql.DB
}

var _ storage.KnowledgeStore = (*KnowledgeStore)(nil)

// knowledgeSelectColumns is the canonical SELECT column list for the
// knowledge_entries table. It must match the scan order in scanKnowledgeRow.
const knowledgeSelectColumns = `
	id, bot_id, category, title, content, metadata, created_at, updated_at
`

// Insert persists a new knowledge entry. The entry and its embedding land in
// a single row, so the write is atomic: a failure leaves neither behind.
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

	var embedding interface{}
	if len(entry.Embedding) > 0 {
		embedding = pgvector.NewVector(entry.Embedding)
	}

	query := `
		INSERT INTO knowledge_entries (
			id, bot_id, category, title, content, embedding, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.BotID,
		string(entry.Category),
		entry.Title,
		entry.Content,
		embedding,
		metadataJSON,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert knowledge entry: %w", err)
	}

	return nil
}

// Get retrieves a knowledge entry by ID. The embedding column is not read
// back; callers re-embed from content when they need a fresh vector.
func (s *KnowledgeStore) Get(ctx context.Context, id string) (*types.KnowledgeEntry, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: entry ID is required", storage.ErrInvalidInput)
	}

	query := `SELECT ` + knowledgeSelectColumns + ` FROM knowledge_entries WHERE id = $1`

	entry, err := scanKnowledgeRow(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get knowledge entry: %w", err)
	}

	return entry, nil
}

// Update overwrites an existing entry. The embedding is replaced only when
// the caller set one; otherwise the stored vector is kept.
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
		query := `
			UPDATE knowledge_entries
			SET category = $2, title = $3, content = $4, embedding = $5, metadata = $6, updated_at = $7
			WHERE id = $1
		`
		result, err = s.db.ExecContext(ctx, query,
			entry.ID, string(entry.Category), entry.Title, entry.Content,
			pgvector.NewVector(entry.Embedding), metadataJSON, entry.UpdatedAt)
	} else {
		query := `
			UPDATE knowledge_entries
			SET category = $2, title = $3, content = $4, metadata = $5, updated_at = $6
			WHERE id = $1
		`
		result, err = s.db.ExecContext(ctx, query,
			entry.ID, string(entry.Category), entry.Title, entry.Content,
			metadataJSON, entry.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to update knowledge entry: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to get rows affected: %w", err)
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

	result, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete knowledge entry: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to get rows affected: %w", err)
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

	query := `
		SELECT ` + knowledgeSelectColumns + `
		FROM knowledge_entries
		WHERE bot_id = $1 AND category = $2
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, botID, string(category))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list knowledge by category: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanKnowledgeRows(rows)
}

// ListAll returns all of a bot's entries, newest first.
func (s *KnowledgeStore) ListAll(ctx context.Context, botID string) ([]types.KnowledgeEntry, error) {
	if botID == "" {
		return nil, fmt.Errorf("%w: bot ID is required", storage.ErrInvalidInput)
	}

	query := `
		SELECT ` + knowledgeSelectColumns + `
		FROM knowledge_entries
		WHERE bot_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list knowledge: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanKnowledgeRows(rows)
}

// Search ranks a bot's entries by cosine similarity to the query vector.
// Rows without an embedding never match. The category filter is bound as a
// query parameter, not interpolated, so category values are inert.
func (s *KnowledgeStore) Search(ctx context.Context, botID string, query []float32, opts storage.SearchOptions) ([]types.SearchResult, error) {
	if botID == "" {
		return nil, fmt.Errorf("%w: bot ID is required", storage.ErrInvalidInput)
	}
	if len(query) == 0 {
		return []types.SearchResult{}, nil
	}
	opts.Normalize()

	vec := pgvector.NewVector(query)

	var (
		rows *sql.Rows
		err  error
	)
	if opts.Category != "" {
		const querySQL = `
			SELECT id, category, title, content, metadata,
				1 - (embedding <=> $1::vector) AS similarity
			FROM knowledge_entries
			WHERE bot_id = $2 AND category = $3 AND embedding IS NOT NULL
			ORDER BY embedding <=> $1::vector, id
			LIMIT $4
		`
		rows, err = s.db.QueryContext(ctx, querySQL, vec, botID, opts.Category, opts.Limit)
	} else {
		const querySQL = `
			SELECT id, category, title, content, metadata,
				1 - (embedding <=> $1::vector) AS similarity
			FROM knowledge_entries
			WHERE bot_id = $2 AND embedding IS NOT NULL
			ORDER BY embedding <=> $1::vector, id
			LIMIT $3
		`
		rows, err = s.db.QueryContext(ctx, querySQL, vec, botID, opts.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: knowledge search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []types.SearchResult
	for rows.Next() {
		var r types.SearchResult
		var metadataJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.Category, &r.Title, &r.Content, &metadataJSON, &r.Similarity); err != nil {
			return nil, fmt.Errorf("postgres: scan search result: %w", err)
		}
		metadata, err := unmarshalMetadata(metadataJSON)
		if err != nil {
			return nil, err
		}
		r.Metadata = metadata
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows error: %w", err)
	}

	return results, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan code.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanKnowledgeRow scans a single row into a types.KnowledgeEntry.
// The column order must match knowledgeSelectColumns.
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

// scanKnowledgeRows reads all rows into a slice.
func scanKnowledgeRows(rows *sql.Rows) ([]types.KnowledgeEntry, error) {
	var entries []types.KnowledgeEntry
	for rows.Next() {
		entry, err := scanKnowledgeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan knowledge row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows error: %w", err)
	}
	return entries, nil
}
