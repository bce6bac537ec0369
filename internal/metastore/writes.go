package metastore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/threadwise/internal/message"
)

// UpsertMessage inserts message metadata keyed by (workspace_id, source_ts).
// Re-ingesting the same message updates mutable attributes in place.
func (s *Store) UpsertMessage(ctx context.Context, m message.Message) error {
	if err := validateWorkspace(m.WorkspaceID); err != nil {
		return err
	}
	if m.SourceTS == "" {
		return fmt.Errorf("upserting message: source timestamp required")
	}

	pinned := 0
	if m.IsPinned {
		pinned = 1
	}

	return s.execContext(ctx, "upserting message", `
		INSERT INTO messages (
			workspace_id, source_ts, channel_id, channel_name,
			user_id, user_name, message_type, thread_ts,
			reply_count, reply_users_count, mention_count, link_count,
			permalink, is_pinned, edited_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, source_ts) DO UPDATE SET
			channel_name      = excluded.channel_name,
			user_name         = excluded.user_name,
			thread_ts         = excluded.thread_ts,
			reply_count       = excluded.reply_count,
			reply_users_count = excluded.reply_users_count,
			mention_count     = excluded.mention_count,
			link_count        = excluded.link_count,
			permalink         = excluded.permalink,
			is_pinned         = excluded.is_pinned,
			edited_at         = excluded.edited_at`,
		m.WorkspaceID, m.SourceTS, m.ChannelID, m.ChannelName,
		m.UserID, m.UserName, m.Type, m.ThreadTS,
		m.ReplyCount, m.ReplyUsersCount, m.MentionCount, m.LinkCount,
		m.Permalink, pinned, nullTime(m.EditedAt), m.CreatedAt.Unix(),
	)
}

// ReplaceReactions replaces the reaction rows for a message with the given set.
func (s *Store) ReplaceReactions(ctx context.Context, workspaceID, sourceTS string, reactions []message.Reaction) error {
	if err := validateWorkspace(workspaceID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replacing reactions: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM reactions WHERE workspace_id = ? AND source_ts = ?`,
		workspaceID, sourceTS); err != nil {
		return fmt.Errorf("clearing reactions: %w", err)
	}
	for _, r := range reactions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reactions (workspace_id, source_ts, reaction_name, user_id)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (workspace_id, source_ts, reaction_name, user_id) DO NOTHING`,
			workspaceID, sourceTS, r.ReactionName, r.UserID); err != nil {
			return fmt.Errorf("inserting reaction %q: %w", r.ReactionName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replacing reactions: %w", err)
	}
	return nil
}

// ReplaceLinks replaces the extracted-link rows for a message.
func (s *Store) ReplaceLinks(ctx context.Context, workspaceID, sourceTS string, links []message.Link) error {
	if err := validateWorkspace(workspaceID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replacing links: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM links WHERE workspace_id = ? AND source_ts = ?`,
		workspaceID, sourceTS); err != nil {
		return fmt.Errorf("clearing links: %w", err)
	}
	for _, l := range links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO links (workspace_id, source_ts, url, link_type, domain)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (workspace_id, source_ts, url) DO NOTHING`,
			workspaceID, sourceTS, l.URL, l.Type, l.Domain); err != nil {
			return fmt.Errorf("inserting link %q: %w", l.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replacing links: %w", err)
	}
	return nil
}

// UpsertUser records or refreshes a workspace member's display names.
func (s *Store) UpsertUser(ctx context.Context, u message.User) error {
	if err := validateWorkspace(u.WorkspaceID); err != nil {
		return err
	}
	if u.UserID == "" {
		return fmt.Errorf("upserting user: user id required")
	}

	return s.execContext(ctx, "upserting user", `
		INSERT INTO users (workspace_id, user_id, user_name, real_name, display_name, title)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET
			user_name    = excluded.user_name,
			real_name    = excluded.real_name,
			display_name = excluded.display_name,
			title        = excluded.title`,
		u.WorkspaceID, u.UserID, u.UserName, u.RealName, u.DisplayName, u.Title,
	)
}

// DeleteMessage removes a message's metadata, reactions, and links.
func (s *Store) DeleteMessage(ctx context.Context, workspaceID, sourceTS string) error {
	if err := validateWorkspace(workspaceID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"reactions", "links", "messages"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE workspace_id = ? AND source_ts = ?`, table),
			workspaceID, sourceTS); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

// DeleteWorkspace removes every row belonging to a workspace.
func (s *Store) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	if err := validateWorkspace(workspaceID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deleting workspace: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"reactions", "links", "messages", "users", "usage_log"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE workspace_id = ?`, table),
			workspaceID); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("deleting workspace: %w", err)
	}
	return nil
}

// RecordUsage appends a usage-log row for an answered question. Only the
// question length is stored, never the question text.
func (s *Store) RecordUsage(ctx context.Context, workspaceID string, questionLength int, askedAt time.Time) error {
	if err := validateWorkspace(workspaceID); err != nil {
		return err
	}
	if askedAt.IsZero() {
		askedAt = timeNow()
	}

	return s.execContext(ctx, "recording usage", `
		INSERT INTO usage_log (id, workspace_id, question_length, asked_at)
		VALUES (?, ?, ?, ?)`,
		uuid.NewString(), workspaceID, questionLength, askedAt.Unix(),
	)
}
