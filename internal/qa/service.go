package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadwise/internal/generation"
	"github.com/fyrsmithlabs/threadwise/internal/metastore"
	"github.com/fyrsmithlabs/threadwise/internal/retrieval"
	"github.com/fyrsmithlabs/threadwise/internal/usage"
)

var tracer = otel.Tracer("threadwise.qa")

// Sentinel errors for question answering.
var (
	// ErrInvalidTenant mirrors the store-level sentinel.
	ErrInvalidTenant = retrieval.ErrInvalidTenant

	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question must not be empty")
)

const (
	defaultContextSize = 10
	// overFetchFactor widens retrieval so the quality filter has spares.
	overFetchFactor = 3
	maxSources      = 10
	excerptLength   = 200
	mockConfidence  = 50

	generationTimeout = 30 * time.Second
)

// Service answers questions over a workspace's message history.
type Service struct {
	retriever  *retrieval.Service
	meta       *metastore.Store
	generator  generation.Generator
	recorder   *usage.Recorder
	logger     *zap.Logger
	genTimeout time.Duration
}

// NewService creates the question answering engine. generator may be nil,
// in which case answers degrade to the most relevant excerpt.
func NewService(retriever *retrieval.Service, meta *metastore.Store, generator generation.Generator, recorder *usage.Recorder, logger *zap.Logger) (*Service, error) {
	if retriever == nil {
		return nil, errors.New("retrieval service is required")
	}
	if meta == nil {
		return nil, errors.New("metadata store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		retriever:  retriever,
		meta:       meta,
		generator:  generator,
		recorder:   recorder,
		logger:     logger,
		genTimeout: generationTimeout,
	}, nil
}

// Ask answers a question from the workspace's history.
//
// The pipeline: infer filters from phrasing, retrieve with over-fetch,
// quality-filter down to the context size, generate, then post-process
// (sanitize, score confidence, attach sources and project links).
func (s *Service) Ask(ctx context.Context, workspaceID, question string, opts AskOptions) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "qa.Ask")
	defer span.End()
	span.SetAttributes(attribute.String("workspace.id", workspaceID))

	start := time.Now()
	defer func() { QuestionDuration.Observe(time.Since(start).Seconds()) }()

	if strings.TrimSpace(workspaceID) == "" {
		QuestionsTotal.WithLabelValues("error").Inc()
		return nil, ErrInvalidTenant
	}
	if strings.TrimSpace(question) == "" {
		QuestionsTotal.WithLabelValues("error").Inc()
		return nil, ErrEmptyQuestion
	}

	contextSize := opts.ContextSize
	if contextSize <= 0 {
		contextSize = defaultContextSize
	}

	// Explicit filters win over phrasing.
	channel := opts.ChannelFilter
	if channel == "" {
		channel = inferChannel(question)
	}
	daysBack := opts.DaysBack
	if daysBack == 0 {
		daysBack = inferDaysBack(question)
	}

	span.SetAttributes(
		attribute.String("qa.channel_filter", channel),
		attribute.Int("qa.days_back", daysBack),
	)

	results, err := s.retriever.Search(ctx, workspaceID, question, retrieval.SearchOptions{
		Limit:       contextSize * overFetchFactor,
		ChannelName: channel,
		DaysBack:    daysBack,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		QuestionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	s.recorder.Record(workspaceID, len(question))

	filtered := filterQuality(results, contextSize)
	if len(filtered) == 0 {
		QuestionsTotal.WithLabelValues("empty").Inc()
		return emptyAnswer(channel, daysBack), nil
	}

	answer := s.generate(ctx, question, filtered)
	answer.ChannelFilter = channel
	answer.DaysBack = daysBack
	answer.ContextUsed = len(filtered)
	answer.Sources = s.buildSources(ctx, workspaceID, filtered)
	answer.Links = extractProjectLinks(filtered)

	AnswerConfidence.Observe(float64(answer.Confidence))
	s.logger.Info("question answered",
		zap.String("workspace_id", workspaceID),
		zap.Int("context_messages", len(filtered)),
		zap.Int("confidence", answer.Confidence),
		zap.Duration("duration", time.Since(start)))

	return answer, nil
}

// generate runs the LLM (or the excerpt fallback) and post-processes the
// raw output. Generation failure degrades to an apologetic answer with the
// sources still attached; it never fails the request.
func (s *Service) generate(ctx context.Context, question string, results []retrieval.Result) *Answer {
	if s.generator == nil {
		QuestionsTotal.WithLabelValues("answered").Inc()
		return &Answer{
			Text:       excerpt(results[0].Text, excerptLength),
			Confidence: mockConfidence,
		}
	}

	prompt := buildPrompt(question, buildContext(results))

	genCtx, cancel := context.WithTimeout(ctx, s.genTimeout)
	defer cancel()

	raw, err := s.generator.Generate(genCtx, prompt)
	if err != nil {
		GenerationFailures.Inc()
		QuestionsTotal.WithLabelValues("degraded").Inc()
		s.logger.Warn("answer generation failed", zap.Error(err))
		return &Answer{
			Text:                  fmt.Sprintf("I found relevant messages but encountered an error generating an answer: %v", err),
			Confidence:            0,
			ConfidenceExplanation: fmt.Sprintf("Error: %v", err),
		}
	}

	QuestionsTotal.WithLabelValues("answered").Inc()
	confidence, rationale := extractConfidence(raw)
	return &Answer{
		Text:                  sanitizeAnswer(raw),
		Confidence:            confidence,
		ConfidenceExplanation: rationale,
	}
}

// buildSources turns the cited results into source records, resolving
// author display names in one lookup. Missing names fall back to whatever
// the message carried.
func (s *Service) buildSources(ctx context.Context, workspaceID string, results []retrieval.Result) []Source {
	n := len(results)
	if n > maxSources {
		n = maxSources
	}

	ids := make([]string, 0, n)
	for _, r := range results[:n] {
		if r.UserID != "" {
			ids = append(ids, r.UserID)
		}
	}
	names, err := s.meta.LookupUserNames(ctx, workspaceID, ids)
	if err != nil {
		s.logger.Warn("resolving author names failed", zap.Error(err))
		names = nil
	}

	sources := make([]Source, 0, n)
	for i, r := range results[:n] {
		name := names[r.UserID]
		if name == "" {
			name = r.UserName
		}
		sources = append(sources, Source{
			ReferenceNumber: i + 1,
			SourceTS:        r.SourceTS,
			ChannelName:     r.ChannelName,
			UserName:        name,
			Excerpt:         excerpt(r.Text, excerptLength),
			Permalink:       r.Permalink,
			CreatedAt:       r.CreatedAt,
			Distance:        r.Distance,
		})
	}
	return sources
}

// emptyAnswer names the filters that were active so the caller knows how
// to widen the search. The wording is fixed for a given filter set.
func emptyAnswer(channel string, daysBack int) *Answer {
	msg := "I couldn't find any relevant messages"
	switch {
	case channel != "" && daysBack > 0:
		msg += fmt.Sprintf(" in #%s from the last %d days", channel, daysBack)
	case channel != "":
		msg += fmt.Sprintf(" in #%s", channel)
	case daysBack > 0:
		msg += fmt.Sprintf(" from the last %d days", daysBack)
	}
	msg += ". Try rephrasing the question or widening the filters."
	return &Answer{
		Text:                  msg,
		Confidence:            0,
		ConfidenceExplanation: "No relevant messages found after filtering",
		Sources:               []Source{},
		ChannelFilter:         channel,
		DaysBack:              daysBack,
	}
}

// excerpt truncates text for display, appending an ellipsis when cut. The
// cut backs up to a rune boundary so multi-byte characters stay intact.
func excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
