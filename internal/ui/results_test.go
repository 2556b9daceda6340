package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vaultmcp/vaultmcp/internal/search"
)

func TestRenderResults(t *testing.T) {
	resp := &search.Response{
		Query:   "hybrid retrieval",
		Profile: "default",
		Results: []search.Result{
			{
				RelativePath: "notes/search.md",
				Title:        "Search Notes",
				Tags:         []string{"search", "ranking"},
				Content:      "Hybrid retrieval fuses lexical and semantic rankings.",
				Score:        0.1234,
				TagBoosted:   true,
			},
			{
				RelativePath: "notes/long.md",
				Title:        "Long Note",
				Content:      "chunk body",
				Score:        0.05,
				IsChunk:      true,
				ChunkIndex:   1,
				ChunkTotal:   3,
			},
		},
		ElapsedMS: 12,
	}

	out := RenderResults(resp, true)
	assert.Contains(t, out, "1. Search Notes")
	assert.Contains(t, out, "[tag match]")
	assert.Contains(t, out, "#search #ranking")
	assert.Contains(t, out, "notes/long.md (chunk 2/3)")
	assert.Contains(t, out, "score 0.1234")
	assert.Contains(t, out, "2 results · profile default · 12ms")
}

func TestRenderResultsEmpty(t *testing.T) {
	out := RenderResults(&search.Response{Query: "nothing"}, true)
	assert.Contains(t, out, `No results for "nothing".`)
}

func TestRenderResultsTimedOutAndWarnings(t *testing.T) {
	resp := &search.Response{
		Query:    "q",
		Profile:  "default",
		Results:  []search.Result{{RelativePath: "a.md", Title: "A", Score: 1}},
		TimedOut: true,
		Warnings: []string{"lexical index unavailable"},
	}
	out := RenderResults(resp, true)
	assert.Contains(t, out, "partial (deadline hit)")
	assert.Contains(t, out, "WARN: lexical index unavailable")
}

func TestMakeSnippetTruncatesOnWordBoundary(t *testing.T) {
	long := strings.Repeat("word ", 100)
	snippet := makeSnippet(long)
	assert.LessOrEqual(t, len(snippet), snippetLength+len("…"))
	assert.True(t, strings.HasSuffix(snippet, "…"))
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(snippet, "…"), " "))
}

func TestMakeSnippetCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", makeSnippet("a\n\n b\t c"))
}
