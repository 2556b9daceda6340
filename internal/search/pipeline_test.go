package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmcp/vaultmcp/internal/embed"
	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/profile"
	"github.com/vaultmcp/vaultmcp/internal/store"
)

type fixedSource struct {
	snap *store.Snapshot
}

func (s fixedSource) Snapshot() *store.Snapshot { return s.snap }

func daysAgo(n int) time.Time {
	return time.Now().Add(-time.Duration(n) * 24 * time.Hour).Truncate(time.Second)
}

// buildSnapshot embeds each row's text with the static encoder and builds an
// in-memory lexical index over the same rows.
func buildSnapshot(t *testing.T, rows []store.RowMetadata) *store.Snapshot {
	t.Helper()
	enc := embed.NewStaticEncoder()
	vectors := store.NewVectorData(embed.StaticDimensions)
	for _, row := range rows {
		text := row.Content
		if row.Description != "" {
			text = row.Description + " " + text
		}
		if text == "" || text == " " {
			text = row.Title
		}
		vec, err := enc.Embed(context.Background(), text)
		require.NoError(t, err)
		require.NoError(t, vectors.AppendRow(vec))
	}
	lex, err := store.BuildLexicalIndex("", rows)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lex.Close() })

	meta := &store.IndexMetadata{
		VaultPath:   "/vault",
		EncoderName: "static",
		Dimension:   embed.StaticDimensions,
		IndexedAt:   time.Now(),
	}
	meta.RebuildFileTracking(rows)
	return &store.Snapshot{Vectors: vectors, Rows: rows, Meta: meta, Lexical: lex}
}

// scenarioRows is a six-file vault: tagged search notes, a daily note, an
// old off-topic note, a large chunked essay, and an empty tagged note.
func scenarioRows() []store.RowMetadata {
	essayChunk := func(i int, content string) store.RowMetadata {
		return store.RowMetadata{
			RelativePath: "E.md", Title: "E",
			ChunkIndex: i, ChunkTotal: 3, IsChunk: true,
			Content:      content,
			ModifiedTime: daysAgo(5), CreatedDate: daysAgo(5),
		}
	}
	return []store.RowMetadata{
		{RelativePath: "A.md", Title: "A", Tags: []string{"search"},
			Content:      "semantic search over notes",
			ChunkTotal:   1,
			ModifiedTime: daysAgo(10), CreatedDate: daysAgo(10)},
		{RelativePath: "B.md", Title: "B", Tags: []string{"search", "bm25"},
			Content:      "keyword search and bm25 scoring details",
			ChunkTotal:   1,
			ModifiedTime: daysAgo(2), CreatedDate: daysAgo(2)},
		{RelativePath: "C.md", Title: "C", Tags: []string{"daily"},
			Content:      "today i read about vector databases",
			ChunkTotal:   1,
			ModifiedTime: daysAgo(0), CreatedDate: daysAgo(0)},
		{RelativePath: "D.md", Title: "D",
			Content:      "unrelated note on cooking",
			ChunkTotal:   1,
			ModifiedTime: daysAgo(400), CreatedDate: daysAgo(400)},
		essayChunk(0, "a long essay about gardening tools and soil preparation"),
		essayChunk(1, "the essay continues with watering schedules and compost"),
		essayChunk(2, "one aside mentions semantic search in passing here"),
		{RelativePath: "F.md", Title: "F", Tags: []string{"search"},
			ChunkTotal:   1,
			ModifiedTime: daysAgo(30), CreatedDate: daysAgo(30)},
	}
}

func newTestPipeline(t *testing.T, snap *store.Snapshot, reranker Reranker) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Config{
		Source:   fixedSource{snap: snap},
		Encoder:  embed.NewStaticEncoder(),
		Reranker: reranker,
	})
	require.NoError(t, err)
	return p
}

func TestSearchSemanticQuery(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	p := newTestPipeline(t, snap, nil)

	resp, err := p.Search(context.Background(), "semantic search", Options{Limit: 3})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	// The note matching both query terms with a matched tag wins; the
	// off-topic note never reaches the amplified top ranks.
	assert.Equal(t, "A.md", resp.Results[0].RelativePath)
	assert.True(t, resp.Results[0].TagBoosted)
	for _, r := range resp.Results {
		assert.NotEqual(t, "D.md", r.RelativePath)
	}
}

func TestSearchSurfacesMatchingChunk(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	p := newTestPipeline(t, snap, nil)

	// These tokens appear only in the essay's final chunk.
	resp, err := p.Search(context.Background(), "aside mentions passing", Options{Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	assert.Equal(t, "E.md", top.RelativePath)
	assert.Equal(t, 2, top.ChunkIndex)
	assert.Equal(t, 3, top.MatchedChunks)
}

func TestSearchTagBoostedKeyword(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	p := newTestPipeline(t, snap, nil)

	resp, err := p.Search(context.Background(), "bm25", Options{Limit: 3, Profile: "keywords"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	assert.Equal(t, "B.md", top.RelativePath)
	assert.Equal(t, []string{"bm25"}, top.TagsMatched)
	assert.True(t, top.TagBoosted)
	assert.Greater(t, top.BM25Score, top.BM25BaseScore)
}

func TestSearchRecentProfileAgeCutoff(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	p := newTestPipeline(t, snap, nil)

	resp, err := p.Search(context.Background(), "cooking", Options{Limit: 3, Profile: "recent"})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.NotEqual(t, "D.md", r.RelativePath, "400-day-old note must be cut off")
	}
}

func TestSearchWhitespaceQueryEmpty(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	p := newTestPipeline(t, snap, nil)

	resp, err := p.Search(context.Background(), "   \t  ", Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearchNoSnapshot(t *testing.T) {
	p := newTestPipeline(t, nil, nil)
	_, err := p.Search(context.Background(), "anything", Options{})
	require.Error(t, err)
	assert.True(t, vmcperrors.IsKind(err, vmcperrors.KindIndexUnavailable))
}

func TestSearchEmptyIndex(t *testing.T) {
	snap := buildSnapshot(t, nil)
	p := newTestPipeline(t, snap, nil)

	resp, err := p.Search(context.Background(), "anything", Options{})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearchLexicalDegradation(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	snap.Lexical = nil
	p := newTestPipeline(t, snap, nil)

	resp, err := p.Search(context.Background(), "semantic search", Options{Limit: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Warnings)
	assert.NotEmpty(t, resp.Results)
}

func TestSearchUnknownProfile(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	p := newTestPipeline(t, snap, nil)

	_, err := p.Search(context.Background(), "anything", Options{Profile: "nope"})
	require.Error(t, err)
	assert.True(t, vmcperrors.IsKind(err, vmcperrors.KindConfig))
}

func TestSearchDeterministic(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	p := newTestPipeline(t, snap, nil)

	first, err := p.Search(context.Background(), "search notes", Options{Limit: 5})
	require.NoError(t, err)
	second, err := p.Search(context.Background(), "search notes", Options{Limit: 5})
	require.NoError(t, err)

	require.Equal(t, len(first.Results), len(second.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].RelativePath, second.Results[i].RelativePath)
		assert.Equal(t, first.Results[i].ChunkIndex, second.Results[i].ChunkIndex)
		assert.InDelta(t, first.Results[i].Score, second.Results[i].Score, 1e-12)
	}
}

func TestSearchCanceledContextReturnsPartial(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	p := newTestPipeline(t, snap, nil)

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := p.Search(ctx, "semantic search", Options{Limit: 3})
	require.NoError(t, err)
	assert.False(t, resp.TimedOut)
	cancel()
}

func TestSearchDedupAllMode(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	p := newTestPipeline(t, snap, nil)

	resp, err := p.Search(context.Background(), "essay compost gardening", Options{
		Limit:     10,
		DedupMode: profile.DedupAll,
	})
	require.NoError(t, err)

	eChunks := 0
	for _, r := range resp.Results {
		if r.RelativePath == "E.md" {
			eChunks++
		}
	}
	assert.GreaterOrEqual(t, eChunks, 2, "all mode keeps multiple chunks per file")
}

// scriptedReranker returns fixed scores keyed by document text, or fails.
type scriptedReranker struct {
	scores map[string]float64
	fail   bool
	calls  int
}

func (r *scriptedReranker) Score(_ context.Context, _ string, docs []string) ([]float64, error) {
	r.calls++
	if r.fail {
		return nil, fmt.Errorf("reranker exploded")
	}
	out := make([]float64, len(docs))
	for i, d := range docs {
		out[i] = r.scores[d]
	}
	return out, nil
}

func (r *scriptedReranker) Available(context.Context) bool { return true }
func (r *scriptedReranker) Close() error                   { return nil }

func TestSearchRerankReorders(t *testing.T) {
	rows := scenarioRows()
	snap := buildSnapshot(t, rows)
	rr := &scriptedReranker{scores: map[string]float64{
		"keyword search and bm25 scoring details": 0.99,
	}}
	p := newTestPipeline(t, snap, rr)

	on := true
	resp, err := p.Search(context.Background(), "semantic search", Options{Limit: 3, Rerank: &on})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Positive(t, rr.calls)
	assert.Equal(t, "B.md", resp.Results[0].RelativePath)
	assert.InDelta(t, 0.99, resp.Results[0].CrossEncoderScore, 1e-9)
}

// negativeReranker emits strictly negative scores in input order, the way
// raw cross-encoder logits often come back.
type negativeReranker struct{ calls int }

func (r *negativeReranker) Score(_ context.Context, _ string, docs []string) ([]float64, error) {
	r.calls++
	out := make([]float64, len(docs))
	for i := range docs {
		out[i] = -0.01 * float64(i+1)
	}
	return out, nil
}

func (r *negativeReranker) Available(context.Context) bool { return true }
func (r *negativeReranker) Close() error                   { return nil }

func TestSearchRerankNegativeScoresStayAhead(t *testing.T) {
	// More fused candidates than the rerank pool holds. With negative
	// cross scores, any candidate left on its fusion score would outrank
	// the whole pool if the two scales were sorted together.
	rows := make([]store.RowMetadata, 0, 130)
	for i := 0; i < 130; i++ {
		rows = append(rows, store.RowMetadata{
			RelativePath: fmt.Sprintf("notes/note%03d.md", i),
			Title:        fmt.Sprintf("note%03d", i),
			Content:      fmt.Sprintf("field report %03d on solar panel maintenance", i),
			ChunkTotal:   1,
			ModifiedTime: daysAgo(3), CreatedDate: daysAgo(3),
		})
	}
	snap := buildSnapshot(t, rows)
	rr := &negativeReranker{}
	p := newTestPipeline(t, snap, rr)

	on := true
	resp, err := p.Search(context.Background(), "solar panel maintenance", Options{Limit: 40, Rerank: &on})
	require.NoError(t, err)
	require.Len(t, resp.Results, 40)
	assert.Positive(t, rr.calls)
	assert.Greater(t, resp.Candidates, RerankPoolSize)

	for i, r := range resp.Results {
		assert.Negative(t, r.CrossEncoderScore, "result %d bypassed the cross-encoder", i)
		if i > 0 {
			assert.GreaterOrEqual(t, resp.Results[i-1].Score, r.Score)
		}
	}
}

func TestSearchRerankFailureNonFatal(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	rr := &scriptedReranker{fail: true}
	p := newTestPipeline(t, snap, rr)

	on := true
	resp, err := p.Search(context.Background(), "semantic search", Options{Limit: 3, Rerank: &on})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "A.md", resp.Results[0].RelativePath)
}

func TestSearchTimeDecayFavorsRecent(t *testing.T) {
	rows := []store.RowMetadata{
		{RelativePath: "old.md", Title: "old", Content: "release checklist for deployments",
			ChunkTotal: 1, ModifiedTime: daysAgo(300), CreatedDate: daysAgo(300)},
		{RelativePath: "new.md", Title: "new", Content: "release checklist for deployments",
			ChunkTotal: 1, ModifiedTime: daysAgo(1), CreatedDate: daysAgo(1)},
	}
	snap := buildSnapshot(t, rows)
	p := newTestPipeline(t, snap, nil)

	resp, err := p.Search(context.Background(), "release checklist", Options{Limit: 2, Profile: "recent"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1, "old note exceeds the recent profile's age cutoff")
	assert.Equal(t, "new.md", resp.Results[0].RelativePath)
	assert.Greater(t, resp.Results[0].TimeBoost, 0.0)
}

func TestSearchTypeFilter(t *testing.T) {
	rows := []store.RowMetadata{
		{RelativePath: "r.md", Title: "r", NoteType: "repo",
			Content: "deployment pipeline for the api service", ChunkTotal: 1,
			ModifiedTime: daysAgo(1), CreatedDate: daysAgo(1)},
		{RelativePath: "n.md", Title: "n", NoteType: "note",
			Content: "deployment pipeline for the api service", ChunkTotal: 1,
			ModifiedTime: daysAgo(1), CreatedDate: daysAgo(1)},
	}
	snap := buildSnapshot(t, rows)
	p := newTestPipeline(t, snap, nil)

	resp, err := p.Search(context.Background(), "deployment pipeline", Options{
		Limit:        5,
		IncludeTypes: []string{"repo"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "r.md", resp.Results[0].RelativePath)
}

func TestSearchSimilarityEnrichment(t *testing.T) {
	snap := buildSnapshot(t, scenarioRows())
	p := newTestPipeline(t, snap, nil)

	resp, err := p.Search(context.Background(), "semantic search", Options{Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "A.md", resp.Results[0].RelativePath)
	assert.Greater(t, resp.Results[0].SimilarityScore, 0.0)
}
