package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadwise/internal/config"
	"github.com/fyrsmithlabs/threadwise/internal/digest"
	"github.com/fyrsmithlabs/threadwise/internal/embeddings"
	"github.com/fyrsmithlabs/threadwise/internal/generation"
	"github.com/fyrsmithlabs/threadwise/internal/logging"
	"github.com/fyrsmithlabs/threadwise/internal/metastore"
	"github.com/fyrsmithlabs/threadwise/internal/qa"
	"github.com/fyrsmithlabs/threadwise/internal/retrieval"
	"github.com/fyrsmithlabs/threadwise/internal/usage"
	"github.com/fyrsmithlabs/threadwise/internal/vectorstore"
)

// app bundles the wired services behind every subcommand.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	embedder *embeddings.FastEmbedProvider
	vectors  vectorstore.Store
	meta     *metastore.Store
	qa       *qa.Service
	digests  *digest.Service
}

// newApp loads configuration and wires the service graph.
func newApp() (*app, error) {
	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewFastEmbedProvider(embeddings.FastEmbedConfig{
		Model:    cfg.Embeddings.Model,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing embeddings: %w", err)
	}

	vectors, err := vectorstore.NewStore(cfg.VectorStore, embedder, logger)
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("initializing vector store: %w", err)
	}

	meta, err := metastore.New(cfg.Data.Dir, logger)
	if err != nil {
		vectors.Close()
		embedder.Close()
		return nil, fmt.Errorf("initializing metadata store: %w", err)
	}

	retriever, err := retrieval.NewService(vectors, meta, logger)
	if err != nil {
		return nil, err
	}

	generator, err := generation.New(cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("initializing generation: %w", err)
	}
	if generator == nil {
		logger.Warn("generation disabled, answers degrade to excerpts (set GENERATION_API_KEY to enable)")
	}

	qaSvc, err := qa.NewService(retriever, meta, generator, usage.NewRecorder(meta, logger), logger)
	if err != nil {
		return nil, err
	}

	digestSvc, err := digest.NewService(retriever, meta, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		embedder: embedder,
		vectors:  vectors,
		meta:     meta,
		qa:       qaSvc,
		digests:  digestSvc,
	}, nil
}

// close releases resources in reverse dependency order.
func (a *app) close() {
	if a.meta != nil {
		a.meta.Close()
	}
	if a.vectors != nil {
		a.vectors.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}
