// Package postgres provides a PostgreSQL implementation of the storage
// interfaces, using pgvector for cosine similarity search.
package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/parleyhq/parley/internal/storage"
)

// Store owns the PostgreSQL connection pool and hands out the per-concern
// stores that implement the storage interfaces.
type Store struct {
	db *sql.DB

	knowledge   *KnowledgeStore
	preferences *PreferenceStore
	chats       *ChatStore
}

// NewStore opens a connection pool against the given DSN and applies the
// schema. The pgvector extension is required: similarity search is the
// store's core operation, so a server without it fails fast here rather
// than degrading at query time.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: pgvector extension is required: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	// ANN indexes are an optimization, not a requirement. Log and continue
	// when index creation fails (e.g. older pgvector builds).
	if _, err := db.Exec(MigrationIVFFlat); err != nil {
		log.Printf("postgres: failed to create ivfflat indexes (search falls back to sequential scan): %v", err)
	}

	return &Store{
		db:          db,
		knowledge:   &KnowledgeStore{db: db},
		preferences: &PreferenceStore{db: db},
		chats:       &ChatStore{db: db},
	}, nil
}

// Knowledge returns the knowledge entry store.
func (s *Store) Knowledge() storage.KnowledgeStore {
	return s.knowledge
}

// Preferences returns the user preference store.
func (s *Store) Preferences() storage.PreferenceStore {
	return s.preferences
}

// Chats returns the chat session and message store.
func (s *Store) Chats() storage.ChatStore {
	return s.chats
}

// GetDB returns the underlying database connection.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// marshalMetadata encodes a metadata map for the JSONB column.
// Nil maps are stored as SQL NULL.
func marshalMetadata(metadata map[string]interface{}) (interface{}, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to marshal metadata: %w", err)
	}
	return data, nil
}

// unmarshalMetadata decodes the JSONB column back into a map.
func unmarshalMetadata(raw sql.NullString) (map[string]interface{}, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(raw.String), &metadata); err != nil {
		return nil, fmt.Errorf("postgres: failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}
