package sqlite

// Schema creates the Parley tables for the SQLite backend. Embeddings are
// stored inline as little-endian float32 blobs (4 bytes per dimension) and
// ranked in Go, since SQLite has no native vector type.
const Schema = `
CREATE TABLE IF NOT EXISTS knowledge_entries (
	id         TEXT PRIMARY KEY,
	bot_id     TEXT NOT NULL,
	category   TEXT NOT NULL,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	embedding  BLOB,
	metadata   TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_knowledge_bot_category ON knowledge_entries(bot_id, category);
CREATE INDEX IF NOT EXISTS idx_knowledge_bot_created ON knowledge_entries(bot_id, created_at DESC);

CREATE TABLE IF NOT EXISTS user_preferences (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	preference TEXT NOT NULL,
	source     TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	embedding  BLOB,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_preferences_user ON user_preferences(user_id);
CREATE INDEX IF NOT EXISTS idx_preferences_confidence ON user_preferences(user_id, confidence DESC);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	bot_id     TEXT NOT NULL,
	is_ai      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON chat_sessions(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS chat_messages (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
	sender_id    TEXT NOT NULL,
	sender_name  TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL,
	is_read      BOOLEAN NOT NULL DEFAULT FALSE,
	is_delivered BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON chat_messages(sender_id, created_at);
`
