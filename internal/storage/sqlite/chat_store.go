package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/pkg/types"
)

// ChatStore implements storage.ChatStore on top of the chat_sessions and
// chat_messages tables.
type ChatStore struct {
	db *sql.DB
}

var _ storage.ChatStore = (*ChatStore)(nil)

// CreateSession persists a new chat session.
func (s *ChatStore) CreateSession(ctx context.Context, session *types.ChatSession) error {
	if session == nil || session.ID == "" || session.UserID == "" || session.BotID == "" {
		return fmt.Errorf("%w: session ID, user ID, and bot ID are required", storage.ErrInvalidInput)
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}

	const query = `
		INSERT INTO chat_sessions (id, user_id, bot_id, is_ai, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.BotID, session.IsAI,
		session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID.
func (s *ChatStore) GetSession(ctx context.Context, id string) (*types.ChatSession, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session ID is required", storage.ErrInvalidInput)
	}

	const query = `
		SELECT id, user_id, bot_id, is_ai, created_at, updated_at
		FROM chat_sessions
		WHERE id = ?
	`

	var session types.ChatSession
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.UserID, &session.BotID, &session.IsAI,
		&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get session: %w", err)
	}

	return &session, nil
}

// ListSessions returns a user's sessions, most recently active first.
func (s *ChatStore) ListSessions(ctx context.Context, userID string) ([]types.ChatSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	const query = `
		SELECT id, user_id, bot_id, is_ai, created_at, updated_at
		FROM chat_sessions
		WHERE user_id = ?
		ORDER BY updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []types.ChatSession
	for rows.Next() {
		var session types.ChatSession
		if err := rows.Scan(&session.ID, &session.UserID, &session.BotID,
			&session.IsAI, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows error: %w", err)
	}

	return sessions, nil
}

// SaveMessage persists a message and bumps the session's updated_at in one
// transaction.
func (s *ChatStore) SaveMessage(ctx context.Context, msg *types.ChatMessage) error {
	if msg == nil || msg.ID == "" || msg.SessionID == "" {
		return fmt.Errorf("%w: message ID and session ID are required", storage.ErrInvalidInput)
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertSQL = `
		INSERT INTO chat_messages (id, session_id, sender_id, sender_name, content, is_read, is_delivered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, insertSQL,
		msg.ID, msg.SessionID, msg.SenderID, msg.SenderName, msg.Content,
		msg.IsRead, msg.IsDelivered, msg.CreatedAt); err != nil {
		return fmt.Errorf("sqlite: failed to save message: %w", err)
	}

	const touchSQL = `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, touchSQL, msg.CreatedAt, msg.SessionID); err != nil {
		return fmt.Errorf("sqlite: failed to touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit message: %w", err)
	}

	return nil
}

// ListMessages returns a session's messages in chronological order. A limit
// of 0 means no limit; a positive limit returns the most recent limit
// messages, still chronological.
func (s *ChatStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]types.ChatMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session ID is required", storage.ErrInvalidInput)
	}

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		const query = `
			SELECT id, session_id, sender_id, sender_name, content, is_read, is_delivered, created_at
			FROM (
				SELECT id, session_id, sender_id, sender_name, content, is_read, is_delivered, created_at
				FROM chat_messages
				WHERE session_id = ?
				ORDER BY created_at DESC, id DESC
				LIMIT ?
			)
			ORDER BY created_at ASC, id ASC
		`
		rows, err = s.db.QueryContext(ctx, query, sessionID, limit)
	} else {
		const query = `
			SELECT id, session_id, sender_id, sender_name, content, is_read, is_delivered, created_at
			FROM chat_messages
			WHERE session_id = ?
			ORDER BY created_at ASC, id ASC
		`
		rows, err = s.db.QueryContext(ctx, query, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessageRows(rows)
}

// LatestUserMessage returns the most recent message in the session not
// authored by the assistant.
func (s *ChatStore) LatestUserMessage(ctx context.Context, sessionID string) (*types.ChatMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session ID is required", storage.ErrInvalidInput)
	}

	const query = `
		SELECT id, session_id, sender_id, sender_name, content, is_read, is_delivered, created_at
		FROM chat_messages
		WHERE session_id = ? AND sender_id != ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var msg types.ChatMessage
	err := s.db.QueryRowContext(ctx, query, sessionID, types.AssistantSenderID).Scan(
		&msg.ID, &msg.SessionID, &msg.SenderID, &msg.SenderName, &msg.Content,
		&msg.IsRead, &msg.IsDelivered, &msg.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get latest user message: %w", err)
	}

	return &msg, nil
}

// MarkRead marks a single message as read.
func (s *ChatStore) MarkRead(ctx context.Context, messageID string) error {
	if messageID == "" {
		return fmt.Errorf("%w: message ID is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `UPDATE chat_messages SET is_read = TRUE WHERE id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to mark message read: %w", err)
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

// CountUserMessages returns how many messages a user has sent across all
// their sessions.
func (s *ChatStore) CountUserMessages(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE sender_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count user messages: %w", err)
	}

	return count, nil
}

// RecentUserMessages returns the last limit messages across all of a user's
// sessions, both sides of the conversation, in chronological order.
func (s *ChatStore) RecentUserMessages(ctx context.Context, userID string, limit int) ([]types.ChatMessage, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 30
	}

	const query = `
		SELECT id, session_id, sender_id, sender_name, content, is_read, is_delivered, created_at
		FROM (
			SELECT m.id, m.session_id, m.sender_id, m.sender_name, m.content, m.is_read, m.is_delivered, m.created_at
			FROM chat_messages m
			JOIN chat_sessions s ON s.id = m.session_id
			WHERE s.user_id = ?
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list recent user messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessageRows(rows)
}

func scanMessageRows(rows *sql.Rows) ([]types.ChatMessage, error) {
	var messages []types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.SenderID, &msg.SenderName,
			&msg.Content, &msg.IsRead, &msg.IsDelivered, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows error: %w", err)
	}
	return messages, nil
}
