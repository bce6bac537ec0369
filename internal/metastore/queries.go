package metastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/threadwise/internal/message"
)

// ReactedMessage is a message row with aggregated reaction data.
type ReactedMessage struct {
	message.Message
	ReactionTotal int
	ReactionNames []string
}

// ChannelStats is aggregated activity for one channel over a window.
type ChannelStats struct {
	ChannelID     string
	ChannelName   string
	MessageCount  int
	ActiveUsers   int
	ReactionTotal int
	LastActivity  time.Time
}

// Contributor is an author ranked by message volume over a window.
type Contributor struct {
	UserID       string
	UserName     string
	MessageCount int
	ChannelCount int
	LastPostedAt time.Time
}

const messageColumns = `
	workspace_id, source_ts, channel_id, channel_name,
	user_id, user_name, message_type, thread_ts,
	reply_count, reply_users_count, mention_count, link_count,
	permalink, is_pinned, edited_at, created_at`

func scanMessage(row interface{ Scan(...any) error }) (message.Message, error) {
	var (
		m        message.Message
		msgType  string
		pinned   int
		editedAt sql.NullInt64
		created  int64
	)
	err := row.Scan(
		&m.WorkspaceID, &m.SourceTS, &m.ChannelID, &m.ChannelName,
		&m.UserID, &m.UserName, &msgType, &m.ThreadTS,
		&m.ReplyCount, &m.ReplyUsersCount, &m.MentionCount, &m.LinkCount,
		&m.Permalink, &pinned, &editedAt, &created,
	)
	if err != nil {
		return message.Message{}, err
	}
	m.Type = message.Type(msgType)
	m.IsPinned = pinned != 0
	m.EditedAt = scanTime(editedAt)
	m.CreatedAt = time.Unix(created, 0).UTC()
	return m, nil
}

// RecentMessages returns messages created at or after since, newest first.
// channelName narrows to one channel when non-empty. limit caps the result.
func (s *Store) RecentMessages(ctx context.Context, workspaceID string, since time.Time, channelName string, limit int) ([]message.Message, error) {
	if err := validateWorkspace(workspaceID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT` + messageColumns + `
		FROM messages
		WHERE workspace_id = ? AND created_at >= ?`
	args := []any{workspaceID, since.Unix()}
	if channelName != "" {
		query += ` AND channel_name = ?`
		args = append(args, channelName)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying recent messages: %w", err)
	}
	defer rows.Close()

	var out []message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMessage returns one message's metadata, or (nil, nil) when absent.
func (s *Store) GetMessage(ctx context.Context, workspaceID, sourceTS string) (*message.Message, error) {
	if err := validateWorkspace(workspaceID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT`+messageColumns+`
		FROM messages WHERE workspace_id = ? AND source_ts = ?`,
		workspaceID, sourceTS)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return &m, nil
}

// MostReacted returns the messages with the highest reaction totals in the
// window, ties broken by recency. Messages with zero reactions are excluded.
func (s *Store) MostReacted(ctx context.Context, workspaceID string, since time.Time, channelName string, limit int) ([]ReactedMessage, error) {
	if err := validateWorkspace(workspaceID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT
			m.workspace_id, m.source_ts, m.channel_id, m.channel_name,
			m.user_id, m.user_name, m.message_type, m.thread_ts,
			m.reply_count, m.reply_users_count, m.mention_count, m.link_count,
			m.permalink, m.is_pinned, m.edited_at, m.created_at,
			COUNT(r.rowid) AS reaction_total,
			GROUP_CONCAT(DISTINCT r.reaction_name) AS reaction_names
		FROM messages m
		JOIN reactions r
			ON r.workspace_id = m.workspace_id AND r.source_ts = m.source_ts
		WHERE m.workspace_id = ? AND m.created_at >= ?`
	args := []any{workspaceID, since.Unix()}
	if channelName != "" {
		query += ` AND m.channel_name = ?`
		args = append(args, channelName)
	}
	query += `
		GROUP BY m.workspace_id, m.source_ts
		ORDER BY reaction_total DESC, m.created_at DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying most reacted: %w", err)
	}
	defer rows.Close()

	var out []ReactedMessage
	for rows.Next() {
		var (
			rm       ReactedMessage
			msgType  string
			pinned   int
			editedAt sql.NullInt64
			created  int64
			names    sql.NullString
		)
		if err := rows.Scan(
			&rm.WorkspaceID, &rm.SourceTS, &rm.ChannelID, &rm.ChannelName,
			&rm.UserID, &rm.UserName, &msgType, &rm.ThreadTS,
			&rm.ReplyCount, &rm.ReplyUsersCount, &rm.MentionCount, &rm.LinkCount,
			&rm.Permalink, &pinned, &editedAt, &created,
			&rm.ReactionTotal, &names,
		); err != nil {
			return nil, fmt.Errorf("scanning reacted message: %w", err)
		}
		rm.Type = message.Type(msgType)
		rm.IsPinned = pinned != 0
		rm.EditedAt = scanTime(editedAt)
		rm.CreatedAt = time.Unix(created, 0).UTC()
		if names.Valid && names.String != "" {
			rm.ReactionNames = strings.Split(names.String, ",")
		}
		rm.ReactionCount = rm.ReactionTotal
		rm.ReactionTypes = rm.ReactionNames
		out = append(out, rm)
	}
	return out, rows.Err()
}

// ChannelActivity aggregates per-channel message counts, distinct authors,
// and reaction totals for the window, busiest channels first.
func (s *Store) ChannelActivity(ctx context.Context, workspaceID string, since time.Time) ([]ChannelStats, error) {
	if err := validateWorkspace(workspaceID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			m.channel_id,
			m.channel_name,
			COUNT(*) AS message_count,
			COUNT(DISTINCT m.user_id) AS active_users,
			(SELECT COUNT(*) FROM reactions r
				JOIN messages m2 ON m2.workspace_id = r.workspace_id AND m2.source_ts = r.source_ts
				WHERE r.workspace_id = m.workspace_id
					AND m2.channel_id = m.channel_id
					AND m2.created_at >= ?) AS reaction_total,
			MAX(m.created_at) AS last_activity
		FROM messages m
		WHERE m.workspace_id = ? AND m.created_at >= ?
		GROUP BY m.channel_id, m.channel_name
		ORDER BY message_count DESC, m.channel_name ASC`,
		since.Unix(), workspaceID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("querying channel activity: %w", err)
	}
	defer rows.Close()

	var out []ChannelStats
	for rows.Next() {
		var (
			cs   ChannelStats
			last int64
		)
		if err := rows.Scan(&cs.ChannelID, &cs.ChannelName, &cs.MessageCount,
			&cs.ActiveUsers, &cs.ReactionTotal, &last); err != nil {
			return nil, fmt.Errorf("scanning channel stats: %w", err)
		}
		cs.LastActivity = time.Unix(last, 0).UTC()
		out = append(out, cs)
	}
	return out, rows.Err()
}

// TopContributors ranks authors by message count over the window.
func (s *Store) TopContributors(ctx context.Context, workspaceID string, since time.Time, limit int) ([]Contributor, error) {
	if err := validateWorkspace(workspaceID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			user_id,
			MAX(user_name) AS user_name,
			COUNT(*) AS message_count,
			COUNT(DISTINCT channel_id) AS channel_count,
			MAX(created_at) AS last_posted
		FROM messages
		WHERE workspace_id = ? AND created_at >= ? AND user_id != ''
		GROUP BY user_id
		ORDER BY message_count DESC, last_posted DESC
		LIMIT ?`,
		workspaceID, since.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("querying top contributors: %w", err)
	}
	defer rows.Close()

	var out []Contributor
	for rows.Next() {
		var (
			c    Contributor
			last int64
		)
		if err := rows.Scan(&c.UserID, &c.UserName, &c.MessageCount,
			&c.ChannelCount, &last); err != nil {
			return nil, fmt.Errorf("scanning contributor: %w", err)
		}
		c.LastPostedAt = time.Unix(last, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// LookupUserNames resolves user ids to display names with one query.
// Preference order is display name, then real name, then handle. Unknown
// ids are absent from the result map.
func (s *Store) LookupUserNames(ctx context.Context, workspaceID string, userIDs []string) (map[string]string, error) {
	if err := validateWorkspace(workspaceID); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}

	placeholders := strings.Repeat("?,", len(userIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(userIDs)+1)
	args = append(args, workspaceID)
	for _, id := range userIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id,
			COALESCE(NULLIF(display_name, ''), NULLIF(real_name, ''), user_name)
		FROM users
		WHERE workspace_id = ? AND user_id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("looking up user names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string, len(userIDs))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning user name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// MessageCount returns the number of stored messages for a workspace.
func (s *Store) MessageCount(ctx context.Context, workspaceID string) (int, error) {
	if err := validateWorkspace(workspaceID); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE workspace_id = ?`, workspaceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return n, nil
}
