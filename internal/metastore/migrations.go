package metastore

import "fmt"

// migrations are applied in order at startup. Schema version is tracked in
// schema_migrations so restarts are idempotent.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS messages (
		workspace_id      TEXT NOT NULL,
		source_ts         TEXT NOT NULL,
		channel_id        TEXT NOT NULL,
		channel_name      TEXT NOT NULL DEFAULT '',
		user_id           TEXT NOT NULL DEFAULT '',
		user_name         TEXT NOT NULL DEFAULT '',
		message_type      TEXT NOT NULL DEFAULT 'regular',
		thread_ts         TEXT NOT NULL DEFAULT '',
		reply_count       INTEGER NOT NULL DEFAULT 0,
		reply_users_count INTEGER NOT NULL DEFAULT 0,
		mention_count     INTEGER NOT NULL DEFAULT 0,
		link_count        INTEGER NOT NULL DEFAULT 0,
		permalink         TEXT NOT NULL DEFAULT '',
		is_pinned         INTEGER NOT NULL DEFAULT 0,
		edited_at         INTEGER,
		created_at        INTEGER NOT NULL,
		PRIMARY KEY (workspace_id, source_ts)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_workspace_created
		ON messages (workspace_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_workspace_channel
		ON messages (workspace_id, channel_name, created_at);

	CREATE TABLE IF NOT EXISTS reactions (
		workspace_id  TEXT NOT NULL,
		source_ts     TEXT NOT NULL,
		reaction_name TEXT NOT NULL,
		user_id       TEXT NOT NULL,
		PRIMARY KEY (workspace_id, source_ts, reaction_name, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_reactions_workspace_ts
		ON reactions (workspace_id, source_ts);

	CREATE TABLE IF NOT EXISTS links (
		workspace_id TEXT NOT NULL,
		source_ts    TEXT NOT NULL,
		url          TEXT NOT NULL,
		link_type    TEXT NOT NULL DEFAULT 'other',
		domain       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (workspace_id, source_ts, url)
	);

	CREATE TABLE IF NOT EXISTS users (
		workspace_id TEXT NOT NULL,
		user_id      TEXT NOT NULL,
		user_name    TEXT NOT NULL DEFAULT '',
		real_name    TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		title        TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (workspace_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS usage_log (
		id              TEXT PRIMARY KEY,
		workspace_id    TEXT NOT NULL,
		question_length INTEGER NOT NULL DEFAULT 0,
		asked_at        INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_workspace_asked
		ON usage_log (workspace_id, asked_at);
	`,
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			i+1, timeNow().Unix()); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", i+1, err)
		}
	}
	return nil
}
