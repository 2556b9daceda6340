package embed

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEncoder wraps StaticEncoder and counts inner calls.
type countingEncoder struct {
	*StaticEncoder
	mu    sync.Mutex
	calls int
}

func (c *countingEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.StaticEncoder.Embed(ctx, text)
}

func (c *countingEncoder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls += len(texts)
	c.mu.Unlock()
	return c.StaticEncoder.EmbedBatch(ctx, texts)
}

func TestCachedEncoderHit(t *testing.T) {
	inner := &countingEncoder{StaticEncoder: NewStaticEncoder()}
	cached, err := NewCachedEncoder(inner, 16, nil)
	require.NoError(t, err)
	defer cached.Close()

	ctx := context.Background()
	v1, err := cached.Embed(ctx, "hello world")
	require.NoError(t, err)
	v2, err := cached.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.calls)

	hits, misses := cached.CacheStats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachedEncoderBatchPartialHit(t *testing.T) {
	inner := &countingEncoder{StaticEncoder: NewStaticEncoder()}
	cached, err := NewCachedEncoder(inner, 16, nil)
	require.NoError(t, err)
	defer cached.Close()

	ctx := context.Background()
	_, err = cached.Embed(ctx, "cached already")
	require.NoError(t, err)
	inner.calls = 0

	vectors, err := cached.EmbedBatch(ctx, []string{"fresh one", "cached already", "fresh two"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, StaticDimensions)
	}

	// Only the two misses hit the inner encoder
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEncoderPassThrough(t *testing.T) {
	inner := NewStaticEncoder()
	cached, err := NewCachedEncoder(inner, 16, nil)
	require.NoError(t, err)
	defer cached.Close()

	assert.Equal(t, inner.Dimensions(), cached.Dimensions())
	assert.Equal(t, inner.Name(), cached.Name())
	assert.True(t, cached.Available(context.Background()))
}
