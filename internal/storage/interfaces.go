// Package storage provides the persistence interfaces for the Parley system.
//
// The storage layer is split into small, focused interfaces so backends can
// be implemented and swapped independently. Two backends exist: PostgreSQL
// with pgvector (production) and SQLite (embedded, single-node). Connection
// lifecycle belongs to the concrete backend store, which hands out the
// per-concern interfaces below.
package storage

import (
	"context"

	"github.com/parleyhq/parley/pkg/types"
)

// KnowledgeStore persists bot knowledge entries and their embeddings.
// All operations are scoped by bot ID; an entry is never visible to a bot
// other than its owner.
type KnowledgeStore interface {
	// Insert persists a new entry together with its embedding in a single
	// atomic write. The caller is responsible for setting the embedding;
	// entries stored with a nil embedding are excluded from Search.
	Insert(ctx context.Context, entry *types.KnowledgeEntry) error

	// Get retrieves an entry by ID regardless of owner.
	// Returns ErrNotFound if the entry doesn't exist. Ownership checks
	// happen above this layer so NotFound-before-Forbidden ordering holds.
	Get(ctx context.Context, id string) (*types.KnowledgeEntry, error)

	// Update overwrites an existing entry (matched by ID), including its
	// embedding when set. Returns ErrNotFound if the entry doesn't exist.
	Update(ctx context.Context, entry *types.KnowledgeEntry) error

	// Delete permanently removes an entry by ID.
	// Returns ErrNotFound if the entry doesn't exist.
	Delete(ctx context.Context, id string) error

	// ListByCategory returns a bot's entries in one category, newest first.
	ListByCategory(ctx context.Context, botID string, category types.KnowledgeCategory) ([]types.KnowledgeEntry, error)

	// ListAll returns all of a bot's entries, newest first.
	ListAll(ctx context.Context, botID string) ([]types.KnowledgeEntry, error)

	// Search ranks a bot's entries by cosine similarity to the query vector.
	// Entries without an embedding are never returned. Results are ordered
	// by similarity descending with ID as the tie-break, so repeated calls
	// over unchanged data return the same order.
	Search(ctx context.Context, botID string, query []float32, opts SearchOptions) ([]types.SearchResult, error)
}

// PreferenceStore persists learned user preferences and their embeddings.
// All operations except Delete are scoped by user ID.
type PreferenceStore interface {
	// Insert persists a new preference together with its embedding in a
	// single atomic write.
	Insert(ctx context.Context, pref *types.UserPreferenceEntry) error

	// Search ranks a user's preferences by cosine similarity to the query
	// vector. Results carry the preference source in Category, the fixed
	// types.PreferenceResultTitle in Title, and confidence in Metadata.
	Search(ctx context.Context, userID string, query []float32, limit int) ([]types.SearchResult, error)

	// ListAll returns all of a user's preferences, highest confidence first.
	ListAll(ctx context.Context, userID string) ([]types.UserPreferenceEntry, error)

	// Delete permanently removes a preference by ID.
	// Returns ErrNotFound if the preference doesn't exist.
	Delete(ctx context.Context, id string) error
}

// ChatStore persists chat sessions and messages.
type ChatStore interface {
	// CreateSession persists a new session.
	CreateSession(ctx context.Context, session *types.ChatSession) error

	// GetSession retrieves a session by ID.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, id string) (*types.ChatSession, error)

	// ListSessions returns a user's sessions, most recently active first.
	ListSessions(ctx context.Context, userID string) ([]types.ChatSession, error)

	// SaveMessage persists a message and bumps the session's updated_at.
	SaveMessage(ctx context.Context, msg *types.ChatMessage) error

	// ListMessages returns a session's messages in chronological order.
	// A limit of 0 means no limit; a positive limit returns the most recent
	// limit messages, still in chronological order.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]types.ChatMessage, error)

	// LatestUserMessage returns the most recent message in the session not
	// authored by the assistant. Returns ErrNotFound when there is none.
	LatestUserMessage(ctx context.Context, sessionID string) (*types.ChatMessage, error)

	// MarkRead marks a single message as read.
	MarkRead(ctx context.Context, messageID string) error

	// CountUserMessages returns how many messages a user has sent across
	// all their sessions. Used to pace pattern analysis.
	CountUserMessages(ctx context.Context, userID string) (int, error)

	// RecentUserMessages returns the last limit messages across a user's
	// sessions in chronological order. Used as the pattern analysis window.
	RecentUserMessages(ctx context.Context, userID string, limit int) ([]types.ChatMessage, error)
}
