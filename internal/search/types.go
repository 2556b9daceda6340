// Package search runs the query pipeline: dense and lexical retrieval in
// parallel, reciprocal rank fusion, tag-aware amplification, optional
// cross-encoder reranking, time decay, and per-file deduplication.
package search

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultLimit and MaxLimit bound the result count per query.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// RRFConstant is the rank-fusion smoothing parameter. k=60 is the standard
// choice across retrieval systems.
const RRFConstant = 60

// RerankPoolSize is how many candidates the cross-encoder sees.
const RerankPoolSize = 100

// Options configure one query. Zero values defer to the profile.
type Options struct {
	// Limit caps the returned results (default 10, max 100).
	Limit int

	// Profile names the parameter bundle; empty means "default".
	Profile string

	// Pointer fields override the corresponding profile parameter when set.
	SemanticWeight *float64
	LexicalWeight  *float64
	Rerank         *bool
	MaxAgeDays     *int

	// DedupMode overrides the profile's dedup policy when non-empty.
	DedupMode string

	// IncludeTypes/ExcludeTypes override the profile's note-type filters.
	IncludeTypes []string
	ExcludeTypes []string
}

// Result is one ranked hit with its diagnostic scores.
type Result struct {
	RelativePath string    `json:"relative_path"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Content      string    `json:"content"`
	ChunkIndex   int       `json:"chunk_index"`
	ChunkTotal   int       `json:"chunk_total"`
	IsChunk      bool      `json:"is_chunk"`
	CreatedDate  time.Time `json:"created_date"`
	ModifiedTime time.Time `json:"modified_time"`

	// Score is the effective score results are ordered by.
	Score float64 `json:"score"`

	// Diagnostic fields, populated by the stages that produced them.
	RRFScore          float64  `json:"rrf_score"`
	SimilarityScore   float64  `json:"similarity_score"`
	BM25Score         float64  `json:"bm25_score"`
	BM25BaseScore     float64  `json:"bm25_base_score"`
	TagsMatched       []string `json:"tags_matched,omitempty"`
	TagBoosted        bool     `json:"tag_boosted,omitempty"`
	TimeBoost         float64  `json:"time_boost,omitempty"`
	DaysOld           float64  `json:"days_old,omitempty"`
	CrossEncoderScore float64  `json:"cross_encoder_score,omitempty"`

	// MatchedChunks is how many chunks of this file matched before
	// deduplication collapsed them.
	MatchedChunks int `json:"matched_chunks,omitempty"`

	// ChunkContext carries neighboring chunk text when the profile asks
	// for it.
	ChunkContext string `json:"chunk_context,omitempty"`
}

// Response is a full query answer.
type Response struct {
	Query      string   `json:"query"`
	Profile    string   `json:"profile"`
	Results    []Result `json:"results"`
	Candidates int      `json:"candidates"`

	// TimedOut marks a partial ranking returned after the deadline hit.
	TimedOut bool `json:"timed_out,omitempty"`

	// Warnings carries degradation notes, e.g. a missing lexical index.
	Warnings []string `json:"warnings,omitempty"`

	ElapsedMS int64 `json:"elapsed_ms"`
}

// candidate is the pipeline's working record, populated progressively by
// each stage. One candidate per matched row.
type candidate struct {
	row int

	lexRank  int // 1-based rank in the lexical list, 0 if absent
	semRank  int // 1-based rank in the semantic list, 0 if absent
	rrf      float64
	final    float64
	boosted  bool
	tags     []string
	bm25     float64
	bm25Base float64
	sim      float64
	cross    float64

	timeBoost float64
	daysOld   float64
}

// sanitize scrubs invalid UTF-8 from an outbound string. Vault files can
// contain broken encodings; scrubbing happens once, at the result boundary.
func sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

func sanitizeAll(ss []string) []string {
	for i, s := range ss {
		ss[i] = sanitize(s)
	}
	return ss
}
