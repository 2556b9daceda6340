package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultmcp/vaultmcp/internal/store"
)

func fusionSnapshot(paths ...string) *store.Snapshot {
	rows := make([]store.RowMetadata, len(paths))
	for i, p := range paths {
		rows[i] = store.RowMetadata{RelativePath: p, ChunkTotal: 1}
	}
	return &store.Snapshot{Rows: rows}
}

func findRow(cands []*candidate, row int) *candidate {
	for _, c := range cands {
		if c.row == row {
			return c
		}
	}
	return nil
}

func TestFuseSymmetry(t *testing.T) {
	// A row at the same rank in both lists scores 2/(k+rank), independent
	// of how the (normalized) weights split.
	for _, w := range []struct{ lex, sem float64 }{{0.5, 0.5}, {0.3, 0.7}, {1, 1}} {
		lex := []store.LexicalResult{{Row: 0, Score: 2.0}, {Row: 1, Score: 1.0}}
		sem := []store.SemanticResult{{Row: 0, Score: 0.9}, {Row: 1, Score: 0.5}}

		cands := fuse(lex, sem, w.lex, w.sem)
		c := findRow(cands, 0)
		require.NotNil(t, c)
		assert.InDelta(t, 2.0/float64(RRFConstant+1), c.rrf, 1e-12)

		c = findRow(cands, 1)
		require.NotNil(t, c)
		assert.InDelta(t, 2.0/float64(RRFConstant+2), c.rrf, 1e-12)
	}
}

func TestFuseSingleListContribution(t *testing.T) {
	lex := []store.LexicalResult{{Row: 0, Score: 3.0}}
	sem := []store.SemanticResult{{Row: 1, Score: 0.8}}

	cands := fuse(lex, sem, 0.3, 0.7)
	require.Len(t, cands, 2)

	c0 := findRow(cands, 0)
	c1 := findRow(cands, 1)
	assert.InDelta(t, 2*0.3/float64(RRFConstant+1), c0.rrf, 1e-12)
	assert.InDelta(t, 2*0.7/float64(RRFConstant+1), c1.rrf, 1e-12)
	assert.Equal(t, 1, c0.lexRank)
	assert.Equal(t, 0, c0.semRank)
}

func TestFuseEmptyLists(t *testing.T) {
	assert.Empty(t, fuse(nil, nil, 0.5, 0.5))
	assert.Empty(t, fuse(nil, nil, 0, 0))
}

func TestAmplifyTaggedHitOutranksFusedPair(t *testing.T) {
	// Row 2 matched a tag but appears only in the lexical list; after
	// amplification it must reach at least 1.5x the best fused score.
	lex := []store.LexicalResult{
		{Row: 0, Score: 5.0},
		{Row: 2, Score: 4.0, TagsMatched: []string{"search"}},
	}
	sem := []store.SemanticResult{{Row: 0, Score: 0.9}, {Row: 1, Score: 0.8}}

	cands := fuse(lex, sem, 0.5, 0.5)
	var maxRRF float64
	for _, c := range cands {
		if c.rrf > maxRRF {
			maxRRF = c.rrf
		}
	}

	amplifyTags(cands, lex, 1.5, 0.5)

	c := findRow(cands, 2)
	require.NotNil(t, c)
	assert.True(t, c.boosted)
	assert.GreaterOrEqual(t, c.rrf, maxRRF*1.5)
}

func TestAmplifySoftBoostForUntaggedLexicalOnly(t *testing.T) {
	lex := []store.LexicalResult{
		{Row: 0, Score: 5.0},
		{Row: 2, Score: 4.0},
	}
	sem := []store.SemanticResult{{Row: 0, Score: 0.9}, {Row: 1, Score: 0.8}}

	cands := fuse(lex, sem, 0.5, 0.5)
	var maxRRF float64
	for _, c := range cands {
		if c.rrf > maxRRF {
			maxRRF = c.rrf
		}
	}

	amplifyTags(cands, lex, 1.5, 0.5)

	c := findRow(cands, 2)
	require.NotNil(t, c)
	assert.False(t, c.boosted)
	assert.InDelta(t, maxRRF*(4.0/5.0)*0.95, c.rrf, 1e-12)
	// Sub-max boost: never past the best fused score.
	assert.Less(t, c.rrf, maxRRF)
}

func TestAmplifyOnlyTopTenLexicalHits(t *testing.T) {
	var lex []store.LexicalResult
	for i := 0; i < 12; i++ {
		lex = append(lex, store.LexicalResult{
			Row: i, Score: float64(20 - i), TagsMatched: []string{"t"},
		})
	}
	cands := fuse(lex, nil, 1, 0)
	amplifyTags(cands, lex, 1.5, 0.5)

	assert.True(t, findRow(cands, 9).boosted)
	assert.False(t, findRow(cands, 10).boosted)
	assert.False(t, findRow(cands, 11).boosted)
}

func TestSortCandidatesTieBreak(t *testing.T) {
	snap := fusionSnapshot("b.md", "a.md", "c.md")
	cands := []*candidate{
		{row: 0, final: 1.0},
		{row: 1, final: 1.0},
		{row: 2, final: 2.0},
	}
	sortCandidates(cands, snap)

	assert.Equal(t, 2, cands[0].row)
	assert.Equal(t, 1, cands[1].row) // a.md before b.md on equal score
	assert.Equal(t, 0, cands[2].row)
}

func TestDedupeBestKeepsTopChunk(t *testing.T) {
	snap := &store.Snapshot{Rows: []store.RowMetadata{
		{RelativePath: "x.md", ChunkIndex: 0, ChunkTotal: 2},
		{RelativePath: "x.md", ChunkIndex: 1, ChunkTotal: 2},
		{RelativePath: "y.md", ChunkTotal: 1},
	}}
	cands := []*candidate{
		{row: 1, final: 3.0},
		{row: 2, final: 2.0},
		{row: 0, final: 1.0},
	}

	kept, matched := dedupe(cands, snap, "best", 3)
	require.Len(t, kept, 2)
	assert.Equal(t, 1, kept[0].row)
	assert.Equal(t, 2, kept[1].row)
	assert.Equal(t, 2, matched[1])
	assert.Equal(t, 1, matched[2])
}

func TestDedupeAllRespectsPerFileCap(t *testing.T) {
	snap := &store.Snapshot{Rows: []store.RowMetadata{
		{RelativePath: "x.md", ChunkIndex: 0, ChunkTotal: 3},
		{RelativePath: "x.md", ChunkIndex: 1, ChunkTotal: 3},
		{RelativePath: "x.md", ChunkIndex: 2, ChunkTotal: 3},
	}}
	cands := []*candidate{
		{row: 0, final: 3.0},
		{row: 1, final: 2.0},
		{row: 2, final: 1.0},
	}

	kept, _ := dedupe(cands, snap, "all", 2)
	assert.Len(t, kept, 2)
}

func TestDedupeIdempotent(t *testing.T) {
	snap := &store.Snapshot{Rows: []store.RowMetadata{
		{RelativePath: "x.md", ChunkIndex: 0, ChunkTotal: 2},
		{RelativePath: "x.md", ChunkIndex: 1, ChunkTotal: 2},
		{RelativePath: "y.md", ChunkTotal: 1},
	}}
	cands := []*candidate{
		{row: 1, final: 3.0},
		{row: 2, final: 2.0},
		{row: 0, final: 1.0},
	}

	once, _ := dedupe(cands, snap, "best", 3)
	twice, _ := dedupe(once, snap, "best", 3)
	assert.Equal(t, once, twice)
}
