package embed

import (
	"context"
	"log/slog"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/logging"
)

// FactoryConfig selects and configures an encoder implementation.
type FactoryConfig struct {
	// Kind is "ollama", "static", or "auto" (ollama with static fallback).
	Kind string

	// Host and Model configure the Ollama backend.
	Host  string
	Model string

	// Dimensions overrides auto-detection (0 = auto).
	Dimensions int

	// BatchSize for batch requests.
	BatchSize int

	// CacheSize is the embedding LRU size; 0 uses the default, negative
	// disables caching.
	CacheSize int

	Logger *slog.Logger
}

// NewEncoder builds the configured encoder wrapped in the LRU cache.
//
// In "auto" mode an unreachable Ollama server degrades to the static encoder
// with a warning instead of failing: a vault should stay searchable offline,
// just with lower semantic quality.
func NewEncoder(ctx context.Context, cfg FactoryConfig) (Encoder, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var inner Encoder
	switch cfg.Kind {
	case "static":
		inner = NewStaticEncoder()

	case "ollama":
		enc, err := NewOllamaEncoder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		inner = enc

	case "", "auto":
		enc, err := NewOllamaEncoder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Logger:     logger,
		})
		if err != nil {
			logger.Warn("Ollama unavailable, falling back to static encoder",
				slog.String("error", err.Error()))
			inner = NewStaticEncoder()
		} else {
			inner = enc
		}

	default:
		return nil, vmcperrors.ConfigError("unknown encoder kind: "+cfg.Kind, nil)
	}

	if cfg.CacheSize < 0 {
		return inner, nil
	}
	return NewCachedEncoder(inner, cfg.CacheSize, logger)
}
