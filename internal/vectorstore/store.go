// Package vectorstore provides workspace-scoped vector storage for message
// text and embeddings.
//
// Every operation takes a workspace id and fails closed: an empty id returns
// ErrInvalidTenant, and implementations stamp the workspace id into stored
// metadata and inject it into every query filter. The metadata filter is
// defense in depth on top of the per-workspace collection layout - even a
// document that somehow landed in the wrong collection cannot cross the
// isolation boundary at query time.
package vectorstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidTenant is returned when the workspace id is missing or empty.
	// Fail closed: no defaulting, no empty results.
	ErrInvalidTenant = errors.New("workspace id required for data isolation")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid vectorstore configuration")

	// ErrEmptyDocuments indicates an empty or nil document batch.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrConnectionFailed indicates the external vector store is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Document is a message body to be stored, keyed by the stable document id
// {workspace_id}_{source_ts}. Metadata mirrors the structured attributes
// needed to reconstruct snippets without a relational join.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// StoredMessage is a document fetched by id.
type StoredMessage struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// SearchResult is one similarity search hit. Distance is normalized so that
// lower means more similar, regardless of backend scoring convention.
type SearchResult struct {
	ID       string
	Text     string
	Metadata map[string]string
	Distance float64
}

// Store is the interface for workspace-scoped vector storage.
//
// Implementations:
//   - ChromemStore: embedded chromem-go, collection per workspace (default)
//   - QdrantStore: external Qdrant over gRPC, payload-filtered single collection
type Store interface {
	// AddMessages stores documents for a workspace. The workspace id is
	// stamped into every document's metadata, overwriting any caller value.
	AddMessages(ctx context.Context, workspaceID string, docs []Document) ([]string, error)

	// GetMessage fetches one document by source timestamp.
	// Returns (nil, nil) when the document does not exist.
	GetMessage(ctx context.Context, workspaceID, sourceTS string) (*StoredMessage, error)

	// Query runs similarity search, returning up to n results ordered by
	// ascending distance. Caller filters are merged with a non-overridable
	// workspace_id predicate.
	Query(ctx context.Context, workspaceID, queryText string, n int, where map[string]string) ([]SearchResult, error)

	// DeleteMessage removes one document.
	DeleteMessage(ctx context.Context, workspaceID, sourceTS string) error

	// DeleteWorkspace removes all documents for a workspace (teardown only).
	DeleteWorkspace(ctx context.Context, workspaceID string) error

	// Count returns the number of documents stored for a workspace.
	Count(ctx context.Context, workspaceID string) (int, error)

	// Close releases store resources.
	Close() error
}

// collectionNamePattern validates collection names: lowercase letters,
// numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// WorkspaceCollection returns the collection name for a workspace.
func WorkspaceCollection(workspaceID string) string {
	return "workspace_" + strings.ToLower(workspaceID) + "_messages"
}

// ValidateCollectionName rejects names outside ^[a-z0-9_]{1,64}$ (uppercase,
// special characters, path traversal, spaces).
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return ErrInvalidConfig
	}
	return nil
}

// DocumentID builds the stable document id for a message.
func DocumentID(workspaceID, sourceTS string) string {
	return workspaceID + "_" + sourceTS
}

// validateWorkspace enforces the fail-closed tenant check shared by all
// implementations.
func validateWorkspace(workspaceID string) error {
	if strings.TrimSpace(workspaceID) == "" {
		return ErrInvalidTenant
	}
	return nil
}

// mergeWorkspaceFilter copies caller filters and applies the enforced
// workspace predicate last, so a caller-supplied workspace_id can never win.
func mergeWorkspaceFilter(where map[string]string, workspaceID string) map[string]string {
	merged := make(map[string]string, len(where)+1)
	for k, v := range where {
		merged[k] = v
	}
	merged[MetaWorkspaceID] = workspaceID
	return merged
}
