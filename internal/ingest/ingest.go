// Package ingest writes parsed messages into both stores: text bodies and
// embeddings into the vector store, structured attributes into the metadata
// store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadwise/internal/message"
	"github.com/fyrsmithlabs/threadwise/internal/metastore"
	"github.com/fyrsmithlabs/threadwise/internal/vectorstore"
)

var tracer = otel.Tracer("threadwise.ingest")

// ErrInvalidTenant mirrors the store-level sentinel.
var ErrInvalidTenant = vectorstore.ErrInvalidTenant

// Writer stores messages into the dual-store layout. Writes are idempotent
// on the (workspace, source timestamp) natural key, so re-crawling a
// channel upserts instead of duplicating.
type Writer struct {
	vectors vectorstore.Store
	meta    *metastore.Store
	logger  *zap.Logger
}

// NewWriter creates an ingestion writer.
func NewWriter(vectors vectorstore.Store, meta *metastore.Store, logger *zap.Logger) (*Writer, error) {
	if vectors == nil {
		return nil, errors.New("vector store is required")
	}
	if meta == nil {
		return nil, errors.New("metadata store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{vectors: vectors, meta: meta, logger: logger}, nil
}

// Ingest parses and stores one raw message. Messages with no text body are
// recorded in the metadata store only.
func (w *Writer) Ingest(ctx context.Context, workspaceID, channelID, channelName string, raw message.RawMessage) error {
	_, err := w.IngestBatch(ctx, workspaceID, channelID, channelName, []message.RawMessage{raw})
	return err
}

// IngestBatch parses and stores a batch of raw messages from one channel,
// returning the number stored. The metadata row is written first; a vector
// write failure leaves the metadata in place and surfaces the error, and a
// later re-crawl repairs the vector side via upsert.
func (w *Writer) IngestBatch(ctx context.Context, workspaceID, channelID, channelName string, raws []message.RawMessage) (int, error) {
	ctx, span := tracer.Start(ctx, "ingest.IngestBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("workspace.id", workspaceID),
		attribute.Int("batch.size", len(raws)),
	)

	if strings.TrimSpace(workspaceID) == "" {
		return 0, ErrInvalidTenant
	}

	var docs []vectorstore.Document
	stored := 0

	for _, raw := range raws {
		if raw.TS == "" {
			w.logger.Warn("skipping message without timestamp",
				zap.String("workspace_id", workspaceID),
				zap.String("channel_id", channelID))
			continue
		}

		m := message.Parse(raw, workspaceID, channelID, channelName)

		if err := w.meta.UpsertMessage(ctx, m); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "metadata write failed")
			return stored, fmt.Errorf("storing message %s: %w", m.SourceTS, err)
		}
		if len(raw.Reactions) > 0 {
			if err := w.meta.ReplaceReactions(ctx, workspaceID, m.SourceTS, raw.Reactions); err != nil {
				return stored, fmt.Errorf("storing reactions for %s: %w", m.SourceTS, err)
			}
		}
		if links := message.ExtractLinks(m.Text); len(links) > 0 {
			if err := w.meta.ReplaceLinks(ctx, workspaceID, m.SourceTS, links); err != nil {
				return stored, fmt.Errorf("storing links for %s: %w", m.SourceTS, err)
			}
		}

		if strings.TrimSpace(m.Text) != "" {
			docs = append(docs, vectorstore.Document{
				ID:       m.DocumentID(),
				Text:     m.Text,
				Metadata: documentMetadata(m),
			})
		}
		stored++
	}

	if len(docs) > 0 {
		if _, err := w.vectors.AddMessages(ctx, workspaceID, docs); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "vector write failed")
			return stored, fmt.Errorf("storing message bodies: %w", err)
		}
	}

	w.logger.Debug("batch ingested",
		zap.String("workspace_id", workspaceID),
		zap.String("channel", channelName),
		zap.Int("stored", stored),
		zap.Int("embedded", len(docs)))
	return stored, nil
}

// SyncUsers refreshes the workspace member directory used for author
// display-name resolution.
func (w *Writer) SyncUsers(ctx context.Context, users []message.User) (int, error) {
	synced := 0
	for _, u := range users {
		if err := w.meta.UpsertUser(ctx, u); err != nil {
			return synced, fmt.Errorf("syncing user %s: %w", u.UserID, err)
		}
		synced++
	}
	return synced, nil
}

// Delete removes one message from both stores.
func (w *Writer) Delete(ctx context.Context, workspaceID, sourceTS string) error {
	if err := w.meta.DeleteMessage(ctx, workspaceID, sourceTS); err != nil {
		return fmt.Errorf("deleting message metadata: %w", err)
	}
	if err := w.vectors.DeleteMessage(ctx, workspaceID, sourceTS); err != nil {
		return fmt.Errorf("deleting message body: %w", err)
	}
	return nil
}

// documentMetadata mirrors the attributes needed to render a search hit
// without a relational join.
func documentMetadata(m message.Message) map[string]string {
	return map[string]string{
		vectorstore.MetaSourceTS:    m.SourceTS,
		vectorstore.MetaChannelID:   m.ChannelID,
		vectorstore.MetaChannelName: m.ChannelName,
		vectorstore.MetaUserID:      m.UserID,
		vectorstore.MetaUserName:    m.UserName,
		vectorstore.MetaMessageType: string(m.Type),
		vectorstore.MetaCreatedAt:   strconv.FormatInt(m.CreatedAt.Unix(), 10),
		vectorstore.MetaPermalink:   m.Permalink,
		vectorstore.MetaThreadTS:    m.ThreadTS,
	}
}
