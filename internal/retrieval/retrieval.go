// Package retrieval answers "which messages are relevant" questions against
// the dual-store layout: similarity search over the vector store, windowed
// metadata queries over the relational store.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadwise/internal/metastore"
	"github.com/fyrsmithlabs/threadwise/internal/vectorstore"
)

var tracer = otel.Tracer("threadwise.retrieval")

// ErrInvalidTenant mirrors the store-level sentinel so callers can check one
// error regardless of which store rejected the request.
var ErrInvalidTenant = vectorstore.ErrInvalidTenant

// missingText is reported when a message exists in the metadata store but its
// body is absent from the vector store.
const missingText = "[message not found]"

// Service coordinates the two stores for read paths.
type Service struct {
	vectors vectorstore.Store
	meta    *metastore.Store
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a retrieval service over the given stores.
func NewService(vectors vectorstore.Store, meta *metastore.Store, logger *zap.Logger) (*Service, error) {
	if vectors == nil {
		return nil, errors.New("vector store is required")
	}
	if meta == nil {
		return nil, errors.New("metadata store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{vectors: vectors, meta: meta, logger: logger, now: time.Now}, nil
}

// SearchOptions narrows a similarity search.
type SearchOptions struct {
	// Limit caps the result count. Zero means 5.
	Limit int
	// ChannelName restricts hits to one channel when non-empty.
	ChannelName string
	// DaysBack restricts hits to the last N days. Zero means no time filter.
	DaysBack int
}

// Result is one retrieved message with its similarity distance.
type Result struct {
	SourceTS    string
	Text        string
	ChannelID   string
	ChannelName string
	UserID      string
	UserName    string
	Permalink   string
	CreatedAt   time.Time
	// Distance is normalized: lower means more similar.
	Distance float64
}

// Search runs workspace-scoped similarity search. Channel filters are pushed
// into the vector store; time filters are applied after retrieval because the
// store's metadata filters are equality-only.
func (s *Service) Search(ctx context.Context, workspaceID, query string, opts SearchOptions) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("workspace.id", workspaceID),
		attribute.Int("search.limit", opts.Limit),
	)

	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	var where map[string]string
	if opts.ChannelName != "" {
		where = map[string]string{vectorstore.MetaChannelName: opts.ChannelName}
	}

	// Over-fetch when a time filter will prune hits afterward.
	fetch := limit
	if opts.DaysBack > 0 {
		fetch = limit * 3
	}

	hits, err := s.vectors.Query(ctx, workspaceID, query, fetch, where)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vector query failed")
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	var cutoff time.Time
	if opts.DaysBack > 0 {
		cutoff = s.now().AddDate(0, 0, -opts.DaysBack)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		r := resultFromHit(h)
		if !cutoff.IsZero() && r.CreatedAt.Before(cutoff) {
			continue
		}
		results = append(results, r)
		if len(results) == limit {
			break
		}
	}

	s.logger.Debug("search completed",
		zap.String("workspace_id", workspaceID),
		zap.Int("hits", len(hits)),
		zap.Int("returned", len(results)))
	return results, nil
}

// Recent returns the newest messages in a window, bodies resolved from the
// vector store. A metadata row whose body is missing gets a sentinel text
// rather than being dropped, so counts stay honest.
func (s *Service) Recent(ctx context.Context, workspaceID string, since time.Time, channelName string, limit int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Recent")
	defer span.End()
	span.SetAttributes(attribute.String("workspace.id", workspaceID))

	rows, err := s.meta.RecentMessages(ctx, workspaceID, since, channelName, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("listing recent messages: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, m := range rows {
		text, err := s.lookupText(ctx, workspaceID, m.SourceTS)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{
			SourceTS:    m.SourceTS,
			Text:        text,
			ChannelID:   m.ChannelID,
			ChannelName: m.ChannelName,
			UserID:      m.UserID,
			UserName:    m.UserName,
			Permalink:   m.Permalink,
			CreatedAt:   m.CreatedAt,
		})
	}
	return results, nil
}

// MostReacted returns the window's most-reacted messages with bodies resolved
// from the vector store.
func (s *Service) MostReacted(ctx context.Context, workspaceID string, since time.Time, channelName string, limit int) ([]ReactedResult, error) {
	ctx, span := tracer.Start(ctx, "retrieval.MostReacted")
	defer span.End()
	span.SetAttributes(attribute.String("workspace.id", workspaceID))

	rows, err := s.meta.MostReacted(ctx, workspaceID, since, channelName, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("listing most reacted: %w", err)
	}

	results := make([]ReactedResult, 0, len(rows))
	for _, m := range rows {
		text, err := s.lookupText(ctx, workspaceID, m.SourceTS)
		if err != nil {
			return nil, err
		}
		results = append(results, ReactedResult{
			Result: Result{
				SourceTS:    m.SourceTS,
				Text:        text,
				ChannelID:   m.ChannelID,
				ChannelName: m.ChannelName,
				UserID:      m.UserID,
				UserName:    m.UserName,
				Permalink:   m.Permalink,
				CreatedAt:   m.CreatedAt,
			},
			ReactionTotal: m.ReactionTotal,
			ReactionNames: m.ReactionNames,
		})
	}
	return results, nil
}

// ReactedResult is a retrieved message with reaction aggregates.
type ReactedResult struct {
	Result
	ReactionTotal int
	ReactionNames []string
}

func (s *Service) lookupText(ctx context.Context, workspaceID, sourceTS string) (string, error) {
	doc, err := s.vectors.GetMessage(ctx, workspaceID, sourceTS)
	if err != nil {
		return "", fmt.Errorf("resolving message body: %w", err)
	}
	if doc == nil || doc.Text == "" {
		return missingText, nil
	}
	return doc.Text, nil
}

func resultFromHit(h vectorstore.SearchResult) Result {
	r := Result{
		Text:        h.Text,
		Distance:    h.Distance,
		SourceTS:    h.Metadata[vectorstore.MetaSourceTS],
		ChannelID:   h.Metadata[vectorstore.MetaChannelID],
		ChannelName: h.Metadata[vectorstore.MetaChannelName],
		UserID:      h.Metadata[vectorstore.MetaUserID],
		UserName:    h.Metadata[vectorstore.MetaUserName],
		Permalink:   h.Metadata[vectorstore.MetaPermalink],
	}
	if raw := h.Metadata[vectorstore.MetaCreatedAt]; raw != "" {
		if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
			r.CreatedAt = time.Unix(sec, 0).UTC()
		}
	}
	return r
}
