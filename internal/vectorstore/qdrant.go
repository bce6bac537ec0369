package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// qdrantTracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("threadwise.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost".
	Host string

	// Port is the Qdrant gRPC port (6334, not the 6333 HTTP port).
	Port int

	// CollectionName is the single shared collection. Isolation is enforced
	// with a mandatory workspace_id payload condition on every operation.
	CollectionName string

	// VectorSize must match the embedder's output dimension.
	VectorSize uint64

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxRetries is the retry budget for transient failures. Default: 3.
	MaxRetries int

	// RetryBackoff is the initial backoff, doubling per retry. Default: 1s.
	RetryBackoff time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.CollectionName == "" {
		c.CollectionName = "workspace_messages"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// isTransient reports whether a gRPC error should be retried.
func isTransient(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.ResourceExhausted, grpccodes.Aborted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store against an external Qdrant server. All
// messages live in one collection; the workspace_id payload field carries
// the isolation boundary and is matched on every query.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger
}

// NewQdrantStore connects to Qdrant and ensures the message collection and
// the workspace_id payload index exist.
func NewQdrantStore(config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &QdrantStore{
		client:   client,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.CollectionName),
	)
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.config.CollectionName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.CollectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
	}

	// Keyword index on the isolation key keeps filtered search fast.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.config.CollectionName,
		FieldName:      "workspace_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		// Index creation is idempotent on the server; log and continue.
		s.logger.Debug("workspace_id index creation", zap.Error(err))
	}
	return nil
}

// retry runs op with exponential backoff on transient gRPC failures.
func (s *QdrantStore) retry(ctx context.Context, name string, op func() error) error {
	var lastErr error
	backoff := s.config.RetryBackoff
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		s.logger.Warn("retrying qdrant operation",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return fmt.Errorf("%s: max retries exceeded: %w", name, lastErr)
}

// pointID derives a deterministic UUID from the document id so upserts by
// natural key replace rather than duplicate.
func pointID(docID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID)).String())
}

func workspaceCondition(workspaceID string) *qdrant.Condition {
	return qdrant.NewMatch("workspace_id", workspaceID)
}

func documentCondition(docID string) *qdrant.Condition {
	return qdrant.NewMatch("id", docID)
}

// AddMessages stores documents, stamping workspace_id into every payload.
func (s *QdrantStore) AddMessages(ctx context.Context, workspaceID string, docs []Document) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.AddMessages")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if err := validateWorkspace(workspaceID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	ids := make([]string, len(docs))
	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID

		payload := make(map[string]*qdrant.Value, len(doc.Metadata)+3)
		for k, v := range doc.Metadata {
			payload[k] = qdrant.NewValueString(v)
		}
		payload["content"] = qdrant.NewValueString(doc.Text)
		payload["id"] = qdrant.NewValueString(doc.ID)
		// Overwrite, never trust caller metadata for the isolation key.
		payload["workspace_id"] = qdrant.NewValueString(workspaceID)

		points[i] = &qdrant.PointStruct{
			Id:      pointID(doc.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		}
	}

	err = s.retry(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.CollectionName,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

// GetMessage fetches one document by source timestamp via a payload filter
// scroll. Returns (nil, nil) when absent.
func (s *QdrantStore) GetMessage(ctx context.Context, workspaceID, sourceTS string) (*StoredMessage, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.GetMessage")
	defer span.End()

	if err := validateWorkspace(workspaceID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	docID := DocumentID(workspaceID, sourceTS)
	var points []*qdrant.RetrievedPoint
	err := s.retry(ctx, "scroll", func() error {
		var err error
		points, err = s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.config.CollectionName,
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{workspaceCondition(workspaceID), documentCondition(docID)},
			},
			Limit:       qdrant.PtrOf(uint32(1)),
			WithPayload: qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}

	text, metadata := splitPayload(points[0].Payload)
	return &StoredMessage{ID: docID, Text: text, Metadata: metadata}, nil
}

// Query runs similarity search with the mandatory workspace condition.
func (s *QdrantStore) Query(ctx context.Context, workspaceID, queryText string, n int, where map[string]string) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("n", n))

	if err := validateWorkspace(workspaceID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if queryText == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if n <= 0 {
		return nil, fmt.Errorf("n must be positive, got %d", n)
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	filter := mergeWorkspaceFilter(where, workspaceID)
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		conditions = append(conditions, qdrant.NewMatch(k, v))
	}

	var scored []*qdrant.ScoredPoint
	err = s.retry(ctx, "query", func() error {
		var err error
		scored, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.CollectionName,
			Query:          qdrant.NewQuery(queryVector...),
			Filter:         &qdrant.Filter{Must: conditions},
			Limit:          qdrant.PtrOf(uint64(n)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]SearchResult, len(scored))
	for i, point := range scored {
		text, metadata := splitPayload(point.Payload)
		id := ""
		if v, ok := metadata["id"]; ok {
			id = v
			delete(metadata, "id")
		}
		results[i] = SearchResult{
			ID:       id,
			Text:     text,
			Metadata: metadata,
			// Cosine score is a similarity; normalize to distance.
			Distance: 1 - float64(point.Score),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// splitPayload separates the content field from the metadata mirror.
func splitPayload(payload map[string]*qdrant.Value) (string, map[string]string) {
	var text string
	metadata := make(map[string]string, len(payload))
	for k, v := range payload {
		sv := v.GetStringValue()
		if k == "content" {
			text = sv
			continue
		}
		metadata[k] = sv
	}
	return text, metadata
}

// DeleteMessage removes one document by payload filter.
func (s *QdrantStore) DeleteMessage(ctx context.Context, workspaceID, sourceTS string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteMessage")
	defer span.End()

	if err := validateWorkspace(workspaceID); err != nil {
		span.RecordError(err)
		return err
	}

	docID := DocumentID(workspaceID, sourceTS)
	return s.retry(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.CollectionName,
			Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must: []*qdrant.Condition{workspaceCondition(workspaceID), documentCondition(docID)},
			}),
		})
		return err
	})
}

// DeleteWorkspace removes all documents carrying the workspace id.
func (s *QdrantStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteWorkspace")
	defer span.End()

	if err := validateWorkspace(workspaceID); err != nil {
		span.RecordError(err)
		return err
	}

	return s.retry(ctx, "delete_workspace", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.CollectionName,
			Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must: []*qdrant.Condition{workspaceCondition(workspaceID)},
			}),
		})
		return err
	})
}

// Count returns the number of documents stored for a workspace.
func (s *QdrantStore) Count(ctx context.Context, workspaceID string) (int, error) {
	if err := validateWorkspace(workspaceID); err != nil {
		return 0, err
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.config.CollectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{workspaceCondition(workspaceID)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return int(count), nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if err := s.client.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing qdrant client: %w", err)
	}
	return nil
}

var _ Store = (*QdrantStore)(nil)
