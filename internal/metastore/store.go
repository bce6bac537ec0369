// Package metastore provides the relational store for structured message
// attributes: channels, authors, counts, reactions, links, timestamps.
// Message text bodies live in the vector store, not here.
package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrInvalidTenant is returned when the workspace id is missing or empty.
var ErrInvalidTenant = errors.New("workspace id required for data isolation")

var timeNow = time.Now

// Store is a SQLite-backed metadata store. All queries carry a
// workspace_id predicate; there is no cross-workspace operation.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// New opens (or creates) the metadata database at the given data directory.
// If dataDir is empty, defaults to ~/.config/threadwise/data.
func New(dataDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".config", "threadwise", "data")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// WAL mode for read concurrency against the ingestion writer.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("metadata store initialized", zap.String("path", dbPath))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func validateWorkspace(workspaceID string) error {
	if workspaceID == "" {
		return ErrInvalidTenant
	}
	return nil
}

// nullTime converts a *time.Time to a nullable unix-seconds column value.
func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Unix()
}

// scanTime converts a nullable unix-seconds column back to *time.Time.
func scanTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

// execContext is a small helper to keep error wrapping uniform.
func (s *Store) execContext(ctx context.Context, op, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
