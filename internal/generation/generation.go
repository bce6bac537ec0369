// Package generation produces grounded answers from retrieved message
// context using an LLM provider.
package generation

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for generation.
var (
	// ErrGeneration indicates the provider failed to produce an answer.
	ErrGeneration = errors.New("answer generation failed")

	// ErrInvalidConfig indicates invalid generation configuration.
	ErrInvalidConfig = errors.New("invalid generation configuration")
)

// Generator produces an answer from a question and assembled context.
type Generator interface {
	// Generate returns the model's answer text for the prompt. The context
	// deadline bounds the whole call including retries.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config configures the generation provider.
type Config struct {
	// Provider selects the backend: "anthropic" or "none". Empty means
	// "anthropic" when an API key is set, "none" otherwise.
	Provider string `koanf:"provider"`

	// APIKey authenticates with the provider. Empty disables generation
	// and callers fall back to excerpt answers.
	APIKey string `koanf:"api_key"`

	// Model names the model to use.
	Model string `koanf:"model"`

	// BaseURL overrides the provider endpoint, mainly for tests.
	BaseURL string `koanf:"base_url"`

	// Timeout bounds a single generation call.
	Timeout time.Duration `koanf:"timeout"`

	// MaxTokens caps the response length.
	MaxTokens int `koanf:"max_tokens"`
}

// ApplyDefaults fills zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Provider == "" {
		if c.APIKey != "" {
			c.Provider = "anthropic"
		} else {
			c.Provider = "none"
		}
	}
}

// New creates a Generator for the configured provider. Returns (nil, nil)
// when generation is disabled; callers must handle the nil generator.
func New(cfg Config) (Generator, error) {
	cfg.ApplyDefaults()

	switch cfg.Provider {
	case "none":
		return nil, nil
	case "anthropic":
		return newAnthropicGenerator(cfg)
	default:
		return nil, ErrInvalidConfig
	}
}
