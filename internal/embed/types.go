// Package embed provides text encoders that map note text to unit-normalized
// dense vectors. The engine owns one encoder for its whole lifetime; it is
// never re-created per query.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps batch size to prevent memory exhaustion.
	MaxBatchSize = 256

	// DefaultTimeout is the default timeout for embedding requests.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3
)

// StaticDimensions is the embedding dimension for the static fallback encoder.
const StaticDimensions = 256

// Encoder generates vector embeddings for text. Implementations must return
// unit-normalized vectors so cosine similarity reduces to a dot product.
type Encoder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one vector per
	// input in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// Name returns the encoder identifier stamped into index metadata.
	Name() string

	// Available checks if the encoder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length in place and returns it.
// A zero vector is returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	inv := float32(1.0 / magnitude)
	for i := range v {
		v[i] *= inv
	}
	return v
}
