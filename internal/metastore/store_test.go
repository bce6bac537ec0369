package metastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadwise/internal/message"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testMessage(workspaceID, sourceTS, channel, userID, text string, createdAt time.Time) message.Message {
	return message.Message{
		WorkspaceID: workspaceID,
		SourceTS:    sourceTS,
		ChannelID:   "C" + channel,
		ChannelName: channel,
		UserID:      userID,
		UserName:    "user-" + userID,
		Text:        text,
		Type:        message.TypeRegular,
		CreatedAt:   createdAt,
	}
}

func TestUpsertAndGetMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	m := testMessage("W1", "1700000000.000100", "general", "U1", "hello", now)
	require.NoError(t, s.UpsertMessage(ctx, m))

	got, err := s.GetMessage(ctx, "W1", "1700000000.000100")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "general", got.ChannelName)
	assert.Equal(t, "U1", got.UserID)
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestUpsertMessageIsIdempotentOnNaturalKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	m := testMessage("W1", "1700000000.000100", "general", "U1", "hello", now)
	require.NoError(t, s.UpsertMessage(ctx, m))

	m.ReplyCount = 4
	require.NoError(t, s.UpsertMessage(ctx, m))

	count, err := s.MessageCount(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.GetMessage(ctx, "W1", "1700000000.000100")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.ReplyCount)
}

func TestGetMessageMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetMessage(context.Background(), "W1", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEmptyWorkspaceIDFailsClosed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.UpsertMessage(ctx, message.Message{SourceTS: "1.0"}), ErrInvalidTenant)

	_, err := s.GetMessage(ctx, "", "1.0")
	assert.ErrorIs(t, err, ErrInvalidTenant)

	_, err = s.RecentMessages(ctx, "", time.Time{}, "", 10)
	assert.ErrorIs(t, err, ErrInvalidTenant)

	_, err = s.MostReacted(ctx, "", time.Time{}, "", 5)
	assert.ErrorIs(t, err, ErrInvalidTenant)

	_, err = s.ChannelActivity(ctx, "", time.Time{})
	assert.ErrorIs(t, err, ErrInvalidTenant)

	_, err = s.TopContributors(ctx, "", time.Time{}, 5)
	assert.ErrorIs(t, err, ErrInvalidTenant)

	_, err = s.LookupUserNames(ctx, "", []string{"U1"})
	assert.ErrorIs(t, err, ErrInvalidTenant)

	assert.ErrorIs(t, s.RecordUsage(ctx, "", 10, time.Now()), ErrInvalidTenant)
	assert.ErrorIs(t, s.DeleteWorkspace(ctx, ""), ErrInvalidTenant)
}

func TestRecentMessagesWindowAndChannelFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "1.0", "general", "U1", "old", now.AddDate(0, 0, -10))))
	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "2.0", "general", "U1", "fresh", now.Add(-time.Hour))))
	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "3.0", "random", "U2", "elsewhere", now.Add(-time.Minute))))

	since := now.AddDate(0, 0, -2)

	all, err := s.RecentMessages(ctx, "W1", since, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "3.0", all[0].SourceTS, "newest first")

	general, err := s.RecentMessages(ctx, "W1", since, "general", 10)
	require.NoError(t, err)
	require.Len(t, general, 1)
	assert.Equal(t, "2.0", general[0].SourceTS)
}

func TestRecentMessagesIsolatedByWorkspace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertMessage(ctx, testMessage("WA", "1.0", "general", "U1", "a", now)))
	require.NoError(t, s.UpsertMessage(ctx, testMessage("WB", "2.0", "general", "U2", "b", now)))

	got, err := s.RecentMessages(ctx, "WA", now.AddDate(0, 0, -1), "", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "WA", got[0].WorkspaceID)
}

func TestMostReacted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "1.0", "general", "U1", "popular", now)))
	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "2.0", "general", "U2", "quiet", now)))
	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "3.0", "general", "U3", "mild", now)))

	require.NoError(t, s.ReplaceReactions(ctx, "W1", "1.0", []message.Reaction{
		{UserID: "U2", ReactionName: "thumbsup"},
		{UserID: "U3", ReactionName: "thumbsup"},
		{UserID: "U4", ReactionName: "tada"},
	}))
	require.NoError(t, s.ReplaceReactions(ctx, "W1", "3.0", []message.Reaction{
		{UserID: "U1", ReactionName: "eyes"},
	}))

	top, err := s.MostReacted(ctx, "W1", now.AddDate(0, 0, -1), "", 5)
	require.NoError(t, err)
	require.Len(t, top, 2, "unreacted messages are excluded")
	assert.Equal(t, "1.0", top[0].SourceTS)
	assert.Equal(t, 3, top[0].ReactionTotal)
	assert.ElementsMatch(t, []string{"thumbsup", "tada"}, top[0].ReactionNames)
	assert.Equal(t, "3.0", top[1].SourceTS)
}

func TestReplaceReactionsOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "1.0", "general", "U1", "hi", now)))
	require.NoError(t, s.ReplaceReactions(ctx, "W1", "1.0", []message.Reaction{
		{UserID: "U2", ReactionName: "thumbsup"},
		{UserID: "U3", ReactionName: "thumbsup"},
	}))
	require.NoError(t, s.ReplaceReactions(ctx, "W1", "1.0", []message.Reaction{
		{UserID: "U2", ReactionName: "eyes"},
	}))

	top, err := s.MostReacted(ctx, "W1", now.AddDate(0, 0, -1), "", 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 1, top[0].ReactionTotal)
	assert.Equal(t, []string{"eyes"}, top[0].ReactionNames)
}

func TestChannelActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "1.0", "general", "U1", "a", now)))
	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "2.0", "general", "U2", "b", now)))
	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "3.0", "random", "U1", "c", now)))
	require.NoError(t, s.ReplaceReactions(ctx, "W1", "1.0", []message.Reaction{
		{UserID: "U2", ReactionName: "thumbsup"},
	}))

	stats, err := s.ChannelActivity(ctx, "W1", now.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "general", stats[0].ChannelName)
	assert.Equal(t, 2, stats[0].MessageCount)
	assert.Equal(t, 2, stats[0].ActiveUsers)
	assert.Equal(t, 1, stats[0].ReactionTotal)
	assert.Equal(t, "random", stats[1].ChannelName)
}

func TestTopContributors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "1.0", "general", "U1", "a", now)))
	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "2.0", "random", "U1", "b", now)))
	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "3.0", "general", "U2", "c", now)))

	top, err := s.TopContributors(ctx, "W1", now.AddDate(0, 0, -1), 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "U1", top[0].UserID)
	assert.Equal(t, 2, top[0].MessageCount)
	assert.Equal(t, 2, top[0].ChannelCount)
}

func TestLookupUserNamesPreference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, message.User{
		WorkspaceID: "W1", UserID: "U1", UserName: "alice", RealName: "Alice A", DisplayName: "ally",
	}))
	require.NoError(t, s.UpsertUser(ctx, message.User{
		WorkspaceID: "W1", UserID: "U2", UserName: "bob", RealName: "Bob B",
	}))
	require.NoError(t, s.UpsertUser(ctx, message.User{
		WorkspaceID: "W1", UserID: "U3", UserName: "carol",
	}))

	names, err := s.LookupUserNames(ctx, "W1", []string{"U1", "U2", "U3", "U9"})
	require.NoError(t, err)
	assert.Equal(t, "ally", names["U1"], "display name wins")
	assert.Equal(t, "Bob B", names["U2"], "real name next")
	assert.Equal(t, "carol", names["U3"], "handle last")
	_, found := names["U9"]
	assert.False(t, found, "unknown ids omitted")
}

func TestDeleteWorkspaceRemovesEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertMessage(ctx, testMessage("W1", "1.0", "general", "U1", "a", now)))
	require.NoError(t, s.UpsertMessage(ctx, testMessage("W2", "2.0", "general", "U2", "b", now)))
	require.NoError(t, s.UpsertUser(ctx, message.User{WorkspaceID: "W1", UserID: "U1", UserName: "alice"}))

	require.NoError(t, s.DeleteWorkspace(ctx, "W1"))

	count, err := s.MessageCount(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = s.MessageCount(ctx, "W2")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "other workspaces untouched")
}

func TestRecordUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordUsage(ctx, "W1", 42, time.Now()))
	require.NoError(t, s.RecordUsage(ctx, "W1", 7, time.Time{}))

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM usage_log WHERE workspace_id = ?`, "W1").Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
