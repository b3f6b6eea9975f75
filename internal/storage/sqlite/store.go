// Package sqlite provides an embedded SQLite implementation of the storage
// interfaces. Similarity search loads embedding blobs and ranks them in Go,
// which is fine for single-node datasets; larger deployments should use the
// PostgreSQL backend with pgvector.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/parleyhq/parley/internal/storage"
)

// Store owns the SQLite connection and hands out the per-concern stores
// that implement the storage interfaces.
type Store struct {
	db *sql.DB

	knowledge   *KnowledgeStore
	preferences *PreferenceStore
	chats       *ChatStore
}

// NewStore opens (or creates) the SQLite database at the given DSN and
// applies the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode allows concurrent readers to proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	// Wait instead of getting an immediate SQLITE_BUSY error when the
	// connection is held by another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
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

// Close releases the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// marshalMetadata encodes a metadata map for the metadata TEXT column.
// Nil maps are stored as SQL NULL.
func marshalMetadata(metadata map[string]interface{}) (interface{}, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to marshal metadata: %w", err)
	}
	return string(data), nil
}

// unmarshalMetadata decodes the metadata column back into a map.
func unmarshalMetadata(raw sql.NullString) (map[string]interface{}, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(raw.String), &metadata); err != nil {
		return nil, fmt.Errorf("sqlite: failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}
