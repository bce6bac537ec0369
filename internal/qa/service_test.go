package qa

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadwise/internal/generation"
	"github.com/fyrsmithlabs/threadwise/internal/message"
	"github.com/fyrsmithlabs/threadwise/internal/metastore"
	"github.com/fyrsmithlabs/threadwise/internal/retrieval"
	"github.com/fyrsmithlabs/threadwise/internal/usage"
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

// fakeGenerator returns a canned answer or error.
type fakeGenerator struct {
	answer string
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type testEnv struct {
	svc     *Service
	vectors vectorstore.Store
	meta    *metastore.Store
	gen     *fakeGenerator
}

func newTestEnv(t *testing.T, gen *fakeGenerator) *testEnv {
	t.Helper()

	vectors, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: t.TempDir()}, testEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { vectors.Close() })

	meta, err := metastore.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	retriever, err := retrieval.NewService(vectors, meta, zap.NewNop())
	require.NoError(t, err)

	var g generation.Generator
	if gen != nil {
		g = gen
	}

	svc, err := NewService(retriever, meta, g, usage.NewRecorder(meta, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)

	return &testEnv{svc: svc, vectors: vectors, meta: meta, gen: gen}
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
		UserName:    "handle-" + userID,
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
			vectorstore.MetaChannelID:   m.ChannelID,
			vectorstore.MetaChannelName: channel,
			vectorstore.MetaUserID:      userID,
			vectorstore.MetaUserName:    m.UserName,
			vectorstore.MetaCreatedAt:   strconv.FormatInt(createdAt.Unix(), 10),
		},
	}})
	require.NoError(t, err)
}

func TestAskReturnsAnswerWithSourcesAndLinks(t *testing.T) {
	gen := &fakeGenerator{answer: "The fix was merged in the widget PR.\n\nConfidence: 85% - the PR link is explicit"}
	env := newTestEnv(t, gen)
	now := time.Now().UTC()

	env.seed(t, "W1", "1.0", "dev", "U1",
		"fixed the flaky test, PR here https://github.com/acme/widget/pull/42", now)
	require.NoError(t, env.meta.UpsertUser(context.Background(), message.User{
		WorkspaceID: "W1", UserID: "U1", UserName: "alice", DisplayName: "Alice",
	}))

	answer, err := env.svc.Ask(context.Background(), "W1", "where is the flaky test fix?", AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, "The fix was merged in the widget PR.", answer.Text)
	assert.Equal(t, 85, answer.Confidence)
	assert.Equal(t, "the PR link is explicit", answer.ConfidenceExplanation)
	assert.Equal(t, 1, answer.ContextUsed)

	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "1.0", answer.Sources[0].SourceTS)
	assert.Equal(t, "dev", answer.Sources[0].ChannelName)
	assert.Equal(t, "Alice", answer.Sources[0].UserName, "display name resolved")

	require.Len(t, answer.Links, 1)
	assert.Equal(t, "https://github.com/acme/widget/pull/42", answer.Links[0].URL)
	assert.Equal(t, "github", answer.Links[0].Type)

	assert.Contains(t, gen.prompt, "[#dev] (from handle-U1):")
	assert.Contains(t, gen.prompt, "where is the flaky test fix?")
}

func TestAskCitationOrderMatchesContextOrder(t *testing.T) {
	gen := &fakeGenerator{answer: "The migration is on track.\n\nConfidence: 70%"}
	env := newTestEnv(t, gen)
	now := time.Now().UTC()

	// Texts share progressively fewer words with the question, so retrieval
	// ranks them deterministically under the hash embedder.
	texts := map[string]string{
		"1.0": "database migration cutover schedule draft posted",
		"2.0": "database migration cutover discussion notes",
		"3.0": "database migration status update",
	}
	for ts, text := range texts {
		env.seed(t, "W1", ts, "eng", "U"+ts, text, now)
	}

	answer, err := env.svc.Ask(context.Background(), "W1", "database migration cutover schedule draft posted?", AskOptions{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(answer.Sources), 3)

	// The Nth context block must describe the Nth source, and reference
	// numbers must count up from one in that same order.
	lastIdx := -1
	for i, src := range answer.Sources {
		assert.Equal(t, i+1, src.ReferenceNumber)
		idx := strings.Index(gen.prompt, texts[src.SourceTS])
		require.GreaterOrEqual(t, idx, 0, "source text missing from prompt")
		assert.Greater(t, idx, lastIdx, "context block order must match source order")
		lastIdx = idx
	}
}

func TestAskYesterdayWindowExcludesOldMessages(t *testing.T) {
	gen := &fakeGenerator{answer: "The standup covered the release.\n\nConfidence: 75%"}
	env := newTestEnv(t, gen)
	now := time.Now().UTC()

	env.seed(t, "W1", "1.0", "general", "U1", "standup notes release checklist and rollout", now.AddDate(0, 0, -10))
	env.seed(t, "W1", "2.0", "general", "U1", "standup notes release checklist and rollout", now.Add(-6*time.Hour))

	answer, err := env.svc.Ask(context.Background(), "W1", "what did standup cover yesterday?", AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, answer.DaysBack, "yesterday implies a two day window")
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "2.0", answer.Sources[0].SourceTS, "the ten day old message is out of window")
}

func TestAskMentionOnlyMessagesAreDropped(t *testing.T) {
	gen := &fakeGenerator{answer: "Nothing substantive found.\n\nConfidence: 20%"}
	env := newTestEnv(t, gen)
	now := time.Now().UTC()

	env.seed(t, "W1", "1.0", "general", "U1", "<@U1> <@U2> <@U3>", now)
	env.seed(t, "W1", "2.0", "general", "U2", "the incident retro is scheduled for thursday afternoon", now)

	answer, err := env.svc.Ask(context.Background(), "W1", "when is the incident retro?", AskOptions{})
	require.NoError(t, err)

	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "2.0", answer.Sources[0].SourceTS)
	assert.NotContains(t, gen.prompt, "<@U2> <@U3>")
}

func TestAskUnsureAnswerGetsFallbackConfidence(t *testing.T) {
	gen := &fakeGenerator{answer: "I'm not sure what you mean by that."}
	env := newTestEnv(t, gen)
	now := time.Now().UTC()

	env.seed(t, "W1", "1.0", "general", "U1", "completely unrelated chatter about lunch plans", now)

	answer, err := env.svc.Ask(context.Background(), "W1", "chatter about lunch?", AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, 30, answer.Confidence)
}

func TestAskNoResultsNamesActiveFilters(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{answer: "unused"})

	answer, err := env.svc.Ask(context.Background(), "W1", "what happened in #engineering yesterday?", AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, answer.Confidence)
	assert.Equal(t, "No relevant messages found after filtering", answer.ConfidenceExplanation)
	assert.Empty(t, answer.Sources)
	assert.Contains(t, answer.Text, "couldn't find any relevant messages")
	assert.Contains(t, answer.Text, "#engineering")
	assert.Contains(t, answer.Text, "2 days")

	// Same question, same wording.
	again, err := env.svc.Ask(context.Background(), "W1", "what happened in #engineering yesterday?", AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, answer.Text, again.Text)
}

func TestAskGenerationFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream timeout")}
	env := newTestEnv(t, gen)
	now := time.Now().UTC()

	env.seed(t, "W1", "1.0", "general", "U1", "the migration plan was approved in the arch review", now)

	answer, err := env.svc.Ask(context.Background(), "W1", "was the migration plan approved?", AskOptions{})
	require.NoError(t, err, "generation failure must not fail the request")

	assert.Contains(t, answer.Text, "encountered an error generating an answer")
	assert.Equal(t, 0, answer.Confidence)
	assert.Equal(t, "Error: upstream timeout", answer.ConfidenceExplanation)
	assert.NotEmpty(t, answer.Sources, "sources still attached")
}

func TestAskWithoutGeneratorReturnsExcerpt(t *testing.T) {
	env := newTestEnv(t, nil)
	now := time.Now().UTC()

	env.seed(t, "W1", "1.0", "general", "U1", "the migration plan was approved in the arch review", now)

	answer, err := env.svc.Ask(context.Background(), "W1", "was the migration plan approved?", AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, "the migration plan was approved in the arch review", answer.Text)
	assert.Equal(t, 50, answer.Confidence)
}

func TestAskExplicitOptionsWinOverInference(t *testing.T) {
	gen := &fakeGenerator{answer: "ok\n\nConfidence: 60%"}
	env := newTestEnv(t, gen)
	now := time.Now().UTC()

	env.seed(t, "W1", "1.0", "random", "U1", "budget numbers were shared in the finance sync", now)

	answer, err := env.svc.Ask(context.Background(), "W1", "what happened in #engineering yesterday?", AskOptions{
		ChannelFilter: "random",
		DaysBack:      30,
	})
	require.NoError(t, err)
	assert.Equal(t, "random", answer.ChannelFilter)
	assert.Equal(t, 30, answer.DaysBack)
}

func TestAskTenantIsolation(t *testing.T) {
	gen := &fakeGenerator{answer: "answer\n\nConfidence: 60%"}
	env := newTestEnv(t, gen)
	now := time.Now().UTC()

	env.seed(t, "WA", "1.0", "general", "U1", "workspace A secret planning document discussion", now)
	env.seed(t, "WB", "2.0", "general", "U2", "workspace B secret planning document discussion", now)

	answer, err := env.svc.Ask(context.Background(), "WA", "secret planning document?", AskOptions{})
	require.NoError(t, err)
	for _, src := range answer.Sources {
		assert.Equal(t, "1.0", src.SourceTS)
	}
}

func TestAskRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{answer: "x"})

	_, err := env.svc.Ask(context.Background(), "", "question?", AskOptions{})
	assert.ErrorIs(t, err, ErrInvalidTenant)

	_, err = env.svc.Ask(context.Background(), "W1", "   ", AskOptions{})
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAskConfidenceAlwaysInBounds(t *testing.T) {
	for _, canned := range []string{
		"Confidence: 999%",
		"plain answer with no report",
		"I don't have enough information.",
	} {
		gen := &fakeGenerator{answer: canned}
		env := newTestEnv(t, gen)
		env.seed(t, "W1", "1.0", "general", "U1", "some perfectly reasonable message body here", time.Now().UTC())

		answer, err := env.svc.Ask(context.Background(), "W1", "reasonable message?", AskOptions{})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, answer.Confidence, 0)
		assert.LessOrEqual(t, answer.Confidence, 100)
	}
}
