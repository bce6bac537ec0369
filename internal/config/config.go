// Package config provides configuration loading for threadwise.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/threadwise/internal/generation"
	"github.com/fyrsmithlabs/threadwise/internal/vectorstore"
)

// Config is the complete service configuration.
type Config struct {
	Server      ServerConfig       `koanf:"server"`
	Data        DataConfig         `koanf:"data"`
	VectorStore vectorstore.Config `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig   `koanf:"embeddings"`
	Generation  generation.Config  `koanf:"generation"`
	Logging     LoggingConfig      `koanf:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DataConfig locates on-disk state.
type DataConfig struct {
	// Dir holds the metadata database. Empty means
	// ~/.config/threadwise/data.
	Dir string `koanf:"dir"`
}

// EmbeddingsConfig configures the local embedding model.
type EmbeddingsConfig struct {
	Model    string `koanf:"model"`
	CacheDir string `koanf:"cache_dir"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}

	switch c.VectorStore.Provider {
	case "", "chromem", "qdrant":
	default:
		return fmt.Errorf("unknown vectorstore provider %q", c.VectorStore.Provider)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8085
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "~/.config/threadwise/vectorstore"
	}
	cfg.VectorStore.Qdrant.ApplyDefaults()

	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	cfg.Generation.ApplyDefaults()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
