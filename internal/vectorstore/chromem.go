package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("threadwise.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/threadwise/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/threadwise/vectorstore"
	}
}

// ChromemStore implements Store using chromem-go, an embeddable vector
// database with no external service dependency. One collection per
// workspace, named workspace_{id}_messages, mirroring the isolation layout
// of the source platform's per-workspace data.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	expandedPath, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
	)

	return &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) collection(workspaceID string) (*chromem.Collection, error) {
	name := WorkspaceCollection(workspaceID)
	if err := ValidateCollectionName(name); err != nil {
		return nil, fmt.Errorf("%w: collection name %q", ErrInvalidConfig, name)
	}
	collection, err := s.db.GetOrCreateCollection(name, map[string]string{"workspace_id": workspaceID}, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", name, err)
	}
	return collection, nil
}

// AddMessages stores documents for a workspace. The workspace id is stamped
// into every document's metadata before storage.
func (s *ChromemStore) AddMessages(ctx context.Context, workspaceID string, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddMessages")
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

	collection, err := s.collection(workspaceID)
	if err != nil {
		span.RecordError(err)
		return nil, err
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
	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		metadata := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		// Overwrite, never trust caller metadata for the isolation key.
		metadata[MetaWorkspaceID] = workspaceID

		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Text,
			Metadata:  metadata,
			Embedding: embeddings[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("added messages to chromem",
		zap.String("workspace_id", workspaceID),
		zap.Int("count", len(docs)),
	)
	return ids, nil
}

// GetMessage fetches one document by source timestamp. Returns (nil, nil)
// when absent.
func (s *ChromemStore) GetMessage(ctx context.Context, workspaceID, sourceTS string) (*StoredMessage, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.GetMessage")
	defer span.End()

	if err := validateWorkspace(workspaceID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	collection, err := s.collection(workspaceID)
	if err != nil {
		return nil, err
	}

	doc, err := collection.GetByID(ctx, DocumentID(workspaceID, sourceTS))
	if err != nil {
		// chromem reports a missing id as an error; absence is not a failure
		// for callers, they handle the nil.
		if strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("getting document: %w", err)
	}

	return &StoredMessage{ID: doc.ID, Text: doc.Content, Metadata: doc.Metadata}, nil
}

// Query runs similarity search scoped to one workspace. Results are ordered
// by ascending distance (chromem similarity s maps to distance 1-s).
func (s *ChromemStore) Query(ctx context.Context, workspaceID, queryText string, n int, where map[string]string) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
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

	collection, err := s.collection(workspaceID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// chromem requires nResults <= document count.
	docCount := collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if n > docCount {
		n = docCount
	}

	filter := mergeWorkspaceFilter(where, workspaceID)

	results, err := collection.Query(ctx, queryText, n, filter, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying workspace %s: %w", workspaceID, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			ID:       r.ID,
			Text:     r.Content,
			Metadata: r.Metadata,
			Distance: 1 - float64(r.Similarity),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("queried chromem",
		zap.String("workspace_id", workspaceID),
		zap.Int("n", n),
		zap.Int("results", len(searchResults)),
	)
	return searchResults, nil
}

// DeleteMessage removes one document.
func (s *ChromemStore) DeleteMessage(ctx context.Context, workspaceID, sourceTS string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteMessage")
	defer span.End()

	if err := validateWorkspace(workspaceID); err != nil {
		span.RecordError(err)
		return err
	}

	collection, err := s.collection(workspaceID)
	if err != nil {
		return err
	}
	if err := collection.Delete(ctx, nil, nil, DocumentID(workspaceID, sourceTS)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// DeleteWorkspace removes the workspace's collection and all its documents.
func (s *ChromemStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DeleteWorkspace")
	defer span.End()

	if err := validateWorkspace(workspaceID); err != nil {
		span.RecordError(err)
		return err
	}

	name := WorkspaceCollection(workspaceID)
	if err := s.db.DeleteCollection(name); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	s.logger.Info("deleted workspace collection", zap.String("workspace_id", workspaceID))
	return nil
}

// Count returns the number of documents stored for a workspace.
func (s *ChromemStore) Count(ctx context.Context, workspaceID string) (int, error) {
	if err := validateWorkspace(workspaceID); err != nil {
		return 0, err
	}
	collection := s.db.GetCollection(WorkspaceCollection(workspaceID), s.embeddingFunc())
	if collection == nil {
		return 0, nil
	}
	return collection.Count(), nil
}

// Close is a no-op for chromem; persistence happens per write.
func (s *ChromemStore) Close() error {
	return nil
}

var _ Store = (*ChromemStore)(nil)
