package digest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadwise/internal/message"
	"github.com/fyrsmithlabs/threadwise/internal/metastore"
	"github.com/fyrsmithlabs/threadwise/internal/retrieval"
	"github.com/fyrsmithlabs/threadwise/internal/vectorstore"
)

const testVectorSize = 64

type testEmbedder struct{}

func (testEmbedder) embed(text string) []float32 {
	vec := make([]float32, testVectorSize)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := sha256.Sum256([]byte(word))
		idx := binary.BigEndian.Uint32(h[:4]) % testVectorSize
		vec[idx] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec
}

func (e testEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e testEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

type testEnv struct {
	svc     *Service
	vectors vectorstore.Store
	meta    *metastore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	vectors, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: t.TempDir()}, testEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { vectors.Close() })

	meta, err := metastore.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	retriever, err := retrieval.NewService(vectors, meta, zap.NewNop())
	require.NoError(t, err)

	svc, err := NewService(retriever, meta, zap.NewNop())
	require.NoError(t, err)
	return &testEnv{svc: svc, vectors: vectors, meta: meta}
}

func (e *testEnv) seed(t *testing.T, workspaceID, sourceTS, channel, userID, text string, createdAt time.Time) {
	t.Helper()
	ctx := context.Background()

	m := message.Message{
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
	require.NoError(t, e.meta.UpsertMessage(ctx, m))

	_, err := e.vectors.AddMessages(ctx, workspaceID, []vectorstore.Document{{
		ID:   m.DocumentID(),
		Text: text,
		Metadata: map[string]string{
			vectorstore.MetaSourceTS:    sourceTS,
			vectorstore.MetaChannelName: channel,
			vectorstore.MetaUserID:      userID,
			vectorstore.MetaUserName:    m.UserName,
			vectorstore.MetaCreatedAt:   strconv.FormatInt(createdAt.Unix(), 10),
		},
	}})
	require.NoError(t, err)
}

func TestTrendingTopics(t *testing.T) {
	msgs := []retrieval.Result{
		{Text: "the kubernetes migration starts monday"},
		{Text: "kubernetes cluster upgrade notes posted"},
		{Text: "who owns the kubernetes runbook?"},
		{Text: "lunch plans anyone"},
	}

	topics := trendingTopics(msgs)
	require.NotEmpty(t, topics)
	assert.Equal(t, "kubernetes", topics[0].Keyword)
	assert.Equal(t, 3, topics[0].Count)
	assert.LessOrEqual(t, len(topics[0].Examples), 2)
}

func TestTrendingTopicsCountsOncePerMessage(t *testing.T) {
	msgs := []retrieval.Result{
		{Text: "deploy deploy deploy deploy"},
		{Text: "deploy again"},
	}
	topics := trendingTopics(msgs)
	// Two messages mention it; threshold of three not met.
	assert.Empty(t, topics)
}

func TestTrendingTopicsSkipsStopWordsAndShortWords(t *testing.T) {
	msgs := []retrieval.Result{
		{Text: "this is that and this is that"},
		{Text: "this that with from"},
		{Text: "this that with from"},
	}
	assert.Empty(t, trendingTopics(msgs))
}

func TestBuildDigest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, text := range []string{
		"kubernetes migration kickoff happening this sprint",
		"kubernetes cluster upgrade plan drafted for review",
		"kubernetes runbook needs owners before cutover",
	} {
		env.seed(t, "W1", "1."+strconv.Itoa(i), "engineering", "U1", text, now.Add(-time.Duration(i)*time.Hour))
	}
	env.seed(t, "W1", "2.0", "general", "U2", "great demo from the platform team today", now.Add(-2*time.Hour))
	require.NoError(t, env.meta.ReplaceReactions(ctx, "W1", "2.0", []message.Reaction{
		{UserID: "U1", ReactionName: "tada"},
		{UserID: "U3", ReactionName: "tada"},
	}))

	d, err := env.svc.Build(ctx, "W1", Options{Days: 7})
	require.NoError(t, err)

	assert.Equal(t, 4, d.MessageCount)
	require.NotEmpty(t, d.Topics)
	assert.Equal(t, "kubernetes", d.Topics[0].Keyword)

	require.Len(t, d.MostReacted, 1)
	assert.Equal(t, "2.0", d.MostReacted[0].SourceTS)
	assert.Equal(t, 2, d.MostReacted[0].ReactionTotal)

	require.Len(t, d.Channels, 2)
	assert.Equal(t, "engineering", d.Channels[0].ChannelName)

	require.NotEmpty(t, d.Contributors)
	assert.Equal(t, "U1", d.Contributors[0].UserID)
}

func TestBuildDigestIsolatedByWorkspace(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	env.seed(t, "WA", "1.0", "general", "U1", "workspace A planning discussion details", now)
	env.seed(t, "WB", "2.0", "general", "U2", "workspace B planning discussion details", now)

	d, err := env.svc.Build(context.Background(), "WA", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, d.MessageCount)
}

func TestBuildDigestEmptyWorkspaceFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Build(context.Background(), "", Options{})
	assert.ErrorIs(t, err, retrieval.ErrInvalidTenant)
}

func TestMarkdownRendering(t *testing.T) {
	now := time.Now().UTC()
	d := &Digest{
		WorkspaceID:  "W1",
		PeriodStart:  now.AddDate(0, 0, -7),
		PeriodEnd:    now,
		MessageCount: 12,
		Topics:       []Topic{{Keyword: "kubernetes", Count: 5}},
		Channels: []metastore.ChannelStats{
			{ChannelName: "general", MessageCount: 8, ActiveUsers: 3},
		},
		Contributors: []metastore.Contributor{
			{UserID: "U1", UserName: "alice", MessageCount: 6, ChannelCount: 2},
		},
	}

	md := d.Markdown()
	assert.Contains(t, md, "# Workspace Digest")
	assert.Contains(t, md, "**kubernetes** (5 mentions)")
	assert.Contains(t, md, "#general: 8 messages from 3 people")
	assert.Contains(t, md, "alice: 6 messages across 2 channels")
}

func TestMarkdownEmptyPeriod(t *testing.T) {
	d := &Digest{PeriodStart: time.Now(), PeriodEnd: time.Now()}
	assert.Contains(t, d.Markdown(), "No activity in this period.")
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	text := strings.Repeat("a", 119) + "é plus enough trailing text to get cut"
	got := truncate(text, 120)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 119)+"...", got)
}
