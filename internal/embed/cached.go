package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vaultmcp/vaultmcp/internal/logging"
)

// DefaultCacheSize is the default number of cached embeddings.
const DefaultCacheSize = 4096

// CachedEncoder wraps another encoder with an LRU cache keyed by content
// hash. Re-indexing an unchanged vault then becomes nearly free, and repeated
// queries skip the model entirely.
type CachedEncoder struct {
	inner  Encoder
	cache  *lru.Cache[string, []float32]
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

var _ Encoder = (*CachedEncoder)(nil)

// NewCachedEncoder wraps inner with a cache of the given size.
func NewCachedEncoder(inner Encoder, size int, logger *slog.Logger) (*CachedEncoder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = logging.Discard()
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEncoder{inner: inner, cache: cache, logger: logger}, nil
}

// cacheKey hashes text together with the model name so switching models
// never serves stale vectors.
func (e *CachedEncoder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(e.inner.Name()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Embed returns the cached vector or delegates to the inner encoder.
func (e *CachedEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.cacheKey(text)
	if v, ok := e.cache.Get(key); ok {
		e.hits.Add(1)
		return v, nil
	}
	e.misses.Add(1)

	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, v)
	return v, nil
}

// EmbedBatch serves cache hits and forwards only the misses to the inner
// encoder in a single batch, then reassembles results in input order.
func (e *CachedEncoder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if v, ok := e.cache.Get(e.cacheKey(text)); ok {
			e.hits.Add(1)
			results[i] = v
			continue
		}
		e.misses.Add(1)
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		vectors, err := e.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, v := range vectors {
			i := missIdx[j]
			results[i] = v
			e.cache.Add(e.cacheKey(texts[i]), v)
		}
	}

	return results, nil
}

// Dimensions returns the inner encoder's dimension.
func (e *CachedEncoder) Dimensions() int { return e.inner.Dimensions() }

// Name returns the inner encoder's identifier; caching does not change the
// vector space.
func (e *CachedEncoder) Name() string { return e.inner.Name() }

// Available delegates to the inner encoder.
func (e *CachedEncoder) Available(ctx context.Context) bool { return e.inner.Available(ctx) }

// Close logs cache effectiveness and closes the inner encoder.
func (e *CachedEncoder) Close() error {
	e.logger.Debug("Embedding cache stats",
		slog.Int64("hits", e.hits.Load()),
		slog.Int64("misses", e.misses.Load()))
	return e.inner.Close()
}

// CacheStats returns hit and miss counts.
func (e *CachedEncoder) CacheStats() (hits, misses int64) {
	return e.hits.Load(), e.misses.Load()
}
