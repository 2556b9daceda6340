package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmcp/vaultmcp/internal/config"
	"github.com/vaultmcp/vaultmcp/internal/index"
	"github.com/vaultmcp/vaultmcp/internal/search"
	"github.com/vaultmcp/vaultmcp/internal/telemetry"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	vaultDir := t.TempDir()

	notes := map[string]string{
		"alpha.md": "---\ntitle: Alpha\ntags: [search]\n---\n\nHybrid retrieval combines lexical and semantic signals.",
		"beta.md":  "---\ntitle: Beta\ntype: repo\n---\n\nNotes on the repository layout.",
		"gamma.md": "Plain note about gardening and tomatoes.",
	}
	for name, body := range notes {
		require.NoError(t, os.WriteFile(filepath.Join(vaultDir, name), []byte(body), 0o644))
	}

	cfg := config.Default(vaultDir)
	cfg.Storage.Dir = filepath.Join(t.TempDir(), "storage")
	cfg.Encoder.Kind = "static"

	eng, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestEngineReindexAndSearch(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Reindex(ctx, index.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)

	resp, err := eng.Search(ctx, "hybrid retrieval", search.Options{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "alpha.md", resp.Results[0].RelativePath)
}

func TestEngineSearchRecordsTelemetry(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Reindex(ctx, index.BuildOptions{})
	require.NoError(t, err)

	_, err = eng.Search(ctx, "hybrid retrieval", search.Options{})
	require.NoError(t, err)
	_, err = eng.Search(ctx, "repository layout", search.Options{Profile: "keywords"})
	require.NoError(t, err)

	snap := eng.Metrics()
	assert.Equal(t, int64(2), snap.TotalQueries)
	assert.Equal(t, int64(2), snap.QueryTypeCounts[telemetry.QueryTypeMixed])
	assert.Contains(t, snap.TopTerms, telemetry.TermCount{Term: "retrieval", Count: 1})
}

func TestEngineMetricsPersistAcrossRestart(t *testing.T) {
	vaultDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(vaultDir, "solo.md"),
		[]byte("A note about lighthouse maintenance."), 0o644))

	cfg := config.Default(vaultDir)
	cfg.Storage.Dir = filepath.Join(t.TempDir(), "storage")
	cfg.Encoder.Kind = "static"

	ctx := context.Background()
	eng, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	_, err = eng.Reindex(ctx, index.BuildOptions{})
	require.NoError(t, err)
	_, err = eng.Search(ctx, "lighthouse maintenance", search.Options{})
	require.NoError(t, err)

	// Draining to SQLite must not lose the query from the merged view.
	require.NoError(t, eng.FlushMetrics())
	assert.Equal(t, int64(1), eng.Metrics().TotalQueries)
	require.NoError(t, eng.Close())

	reopened, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	snap := reopened.Metrics()
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.QueryTypeCounts[telemetry.QueryTypeMixed])
	assert.Contains(t, snap.TopTerms, telemetry.TermCount{Term: "lighthouse", Count: 1})
}

func TestEngineStats(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	stats := eng.Stats()
	assert.Zero(t, stats.DocumentCount)

	_, err := eng.Reindex(ctx, index.BuildOptions{})
	require.NoError(t, err)

	stats = eng.Stats()
	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, 3, stats.ChunkCount)
	assert.NotEmpty(t, stats.EncoderName)
}

func TestEngineArchaeology(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Reindex(ctx, index.BuildOptions{})
	require.NoError(t, err)

	tl, err := eng.Archaeology(ctx, "hybrid retrieval", 0.0, true)
	require.NoError(t, err)
	assert.Equal(t, "hybrid retrieval", tl.Topic)
}

func TestEngineLoadMissingIndexIsFine(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.Load(context.Background()))
	assert.Zero(t, eng.Stats().DocumentCount)
}

func TestEngineProfileNames(t *testing.T) {
	eng := newTestEngine(t)
	assert.Contains(t, eng.ProfileNames(), "default")
	assert.Contains(t, eng.ProfileNames(), "deep")
}
