package postgres

// Schema is the base database schema. All statements are idempotent so the
// schema can be re-applied on every startup. The vector extension must be
// created before this runs (NewStore handles the ordering).
const Schema = `
CREATE TABLE IF NOT EXISTS knowledge_entries (
	id TEXT PRIMARY KEY,
	bot_id TEXT NOT NULL,
	category TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	embedding vector(768),
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_knowledge_bot_category
	ON knowledge_entries (bot_id, category);

CREATE INDEX IF NOT EXISTS idx_knowledge_bot_created
	ON knowledge_entries (bot_id, created_at DESC);

CREATE TABLE IF NOT EXISTS user_preferences (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	preference TEXT NOT NULL,
	source TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	embedding vector(768),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_preferences_user
	ON user_preferences (user_id, confidence DESC);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	bot_id TEXT NOT NULL,
	is_ai BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_sessions_user
	ON chat_sessions (user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
	sender_id TEXT NOT NULL,
	sender_name TEXT NOT NULL,
	content TEXT NOT NULL,
	is_read BOOLEAN NOT NULL DEFAULT FALSE,
	is_delivered BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_messages_session
	ON chat_messages (session_id, created_at);
`

// MigrationIVFFlat adds approximate-nearest-neighbor indexes for cosine
// search. ivfflat indexes only pay off once the tables hold real data, but
// creating them on empty tables is harmless.
const MigrationIVFFlat = `
CREATE INDEX IF NOT EXISTS idx_knowledge_embedding_cosine
	ON knowledge_entries USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

CREATE INDEX IF NOT EXISTS idx_preferences_embedding_cosine
	ON user_preferences USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
