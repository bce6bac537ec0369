// Package digest builds periodic activity summaries for a workspace:
// trending topics, most-reacted messages, channel activity, and top
// contributors over a time window.
package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadwise/internal/metastore"
	"github.com/fyrsmithlabs/threadwise/internal/retrieval"
)

var tracer = otel.Tracer("threadwise.digest")

const (
	defaultDays             = 7
	defaultMostReactedLimit = 5
	defaultContributorLimit = 5
	// topicSampleSize bounds how many recent messages feed topic mining.
	topicSampleSize = 500
)

// Options shapes one digest.
type Options struct {
	// Days is the lookback window. Zero means 7.
	Days int
	// ChannelName narrows the digest to one channel when non-empty.
	// Channel activity and contributors always cover the whole workspace.
	ChannelName string
	// MostReactedLimit caps the highlighted messages. Zero means 5.
	MostReactedLimit int
	// ContributorLimit caps the contributor list. Zero means 5.
	ContributorLimit int
}

// Digest is one rendered-ready summary.
type Digest struct {
	WorkspaceID  string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	MessageCount int

	Topics       []Topic
	MostReacted  []retrieval.ReactedResult
	Channels     []metastore.ChannelStats
	Contributors []metastore.Contributor
}

// Service assembles digests from the two stores.
type Service struct {
	retriever *retrieval.Service
	meta      *metastore.Store
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a digest service.
func NewService(retriever *retrieval.Service, meta *metastore.Store, logger *zap.Logger) (*Service, error) {
	if retriever == nil {
		return nil, errors.New("retrieval service is required")
	}
	if meta == nil {
		return nil, errors.New("metadata store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{retriever: retriever, meta: meta, logger: logger, now: time.Now}, nil
}

// Build assembles a digest for the window.
func (s *Service) Build(ctx context.Context, workspaceID string, opts Options) (*Digest, error) {
	ctx, span := tracer.Start(ctx, "digest.Build")
	defer span.End()
	span.SetAttributes(attribute.String("workspace.id", workspaceID))

	days := opts.Days
	if days <= 0 {
		days = defaultDays
	}
	reactedLimit := opts.MostReactedLimit
	if reactedLimit <= 0 {
		reactedLimit = defaultMostReactedLimit
	}
	contributorLimit := opts.ContributorLimit
	if contributorLimit <= 0 {
		contributorLimit = defaultContributorLimit
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)

	recent, err := s.retriever.Recent(ctx, workspaceID, start, opts.ChannelName, topicSampleSize)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("collecting recent messages: %w", err)
	}

	reacted, err := s.retriever.MostReacted(ctx, workspaceID, start, opts.ChannelName, reactedLimit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("collecting most reacted: %w", err)
	}

	channels, err := s.meta.ChannelActivity(ctx, workspaceID, start)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("collecting channel activity: %w", err)
	}

	contributors, err := s.meta.TopContributors(ctx, workspaceID, start, contributorLimit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("collecting contributors: %w", err)
	}

	d := &Digest{
		WorkspaceID:  workspaceID,
		PeriodStart:  start,
		PeriodEnd:    end,
		MessageCount: len(recent),
		Topics:       trendingTopics(recent),
		MostReacted:  reacted,
		Channels:     channels,
		Contributors: contributors,
	}

	s.logger.Info("digest built",
		zap.String("workspace_id", workspaceID),
		zap.Int("days", days),
		zap.Int("messages", d.MessageCount),
		zap.Int("topics", len(d.Topics)))
	return d, nil
}
