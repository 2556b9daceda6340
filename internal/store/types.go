// Package store persists and queries the dual index: a flat dense-vector
// array with per-row metadata, and a bleve lexical index over the same rows.
//
// The three artifacts are co-indexed: vector row i, metadata row i, and
// lexical doc i describe the same chunk. All writes are atomic at the
// file-replacement level so a crash mid-save leaves the previous index
// intact.
package store

import (
	"strings"
	"time"
)

// Artifact filenames inside the storage dot-directory.
const (
	VectorsFile  = "vectors.bin"
	RowsFile     = "rows.json"
	MetadataFile = "index_meta.json"
	LexicalDir   = "lexical.bleve"
)

// RowMetadata is the per-chunk metadata stored alongside each vector row.
type RowMetadata struct {
	RelativePath string    `json:"relative_path"`
	Title        string    `json:"title"`
	Tags         []string  `json:"tags,omitempty"`
	Description  string    `json:"description,omitempty"`
	NoteType     string    `json:"type,omitempty"`
	ChunkIndex   int       `json:"chunk_index"`
	ChunkTotal   int       `json:"chunk_total"`
	StartOffset  int       `json:"start_offset"`
	EndOffset    int       `json:"end_offset"`
	Content      string    `json:"content"`
	IsChunk      bool      `json:"is_chunk"`
	CreatedDate  time.Time `json:"created_date"`
	ModifiedTime time.Time `json:"modified_time"`
}

// FileTrack records what the index knows about one vault file.
type FileTrack struct {
	ModifiedTime time.Time `json:"modified_time"`
	RowStart     int       `json:"row_start"`
	RowCount     int       `json:"row_count"`
}

// IndexMetadata is the single index-level record co-located with the vectors.
type IndexMetadata struct {
	VaultPath       string               `json:"vault_path"`
	VaultName       string               `json:"vault_name"`
	EncoderName     string               `json:"encoder_name"`
	Dimension       int                  `json:"dimension"`
	VectorDType     string               `json:"vector_dtype"`
	IndexedAt       time.Time            `json:"indexed_at"`
	ChunkingEnabled bool                 `json:"chunking_enabled"`
	ChunkSize       int                  `json:"chunk_size"`
	ChunkOverlap    int                  `json:"chunk_overlap"`
	ChunkThreshold  int                  `json:"chunk_threshold"`
	FileTracking    map[string]FileTrack `json:"file_tracking"`
}

// RebuildFileTracking derives FileTracking from the row list. Rows for one
// file are contiguous after a merge, but this walks defensively and records
// the span from first to last occurrence.
func (m *IndexMetadata) RebuildFileTracking(rows []RowMetadata) {
	tracking := make(map[string]FileTrack)
	for i, row := range rows {
		t, ok := tracking[row.RelativePath]
		if !ok {
			tracking[row.RelativePath] = FileTrack{
				ModifiedTime: row.ModifiedTime,
				RowStart:     i,
				RowCount:     1,
			}
			continue
		}
		t.RowCount++
		t.ModifiedTime = row.ModifiedTime
		tracking[row.RelativePath] = t
	}
	m.FileTracking = tracking
}

// LexicalResult is one lexical hit: the row, its boosted and raw scores, and
// which query tokens matched front-matter tags.
type LexicalResult struct {
	Row         int
	Score       float64
	BaseScore   float64
	TagsMatched []string
}

// SemanticResult is one dense hit: the row and its cosine similarity.
type SemanticResult struct {
	Row   int
	Score float64
}

// Snapshot is one immutable loaded index generation. Readers hold a snapshot
// for the duration of a query; writers build a new one and swap it in.
type Snapshot struct {
	Vectors *VectorData
	Rows    []RowMetadata
	Meta    *IndexMetadata
	Lexical *LexicalIndex

	// ANN is the optional HNSW accelerator, built only for large indexes.
	ANN *ANNIndex
}

// Row returns the metadata for row i.
func (s *Snapshot) Row(i int) RowMetadata {
	return s.Rows[i]
}

// SemanticSearch runs the dense arm: the HNSW graph when one was built for
// this generation, otherwise the exact scan.
func (s *Snapshot) SemanticSearch(query []float32, topK int) []SemanticResult {
	if s.ANN != nil {
		return s.ANN.Search(query, topK)
	}
	return s.Vectors.Search(query, topK)
}

// Empty reports whether the snapshot holds no rows.
func (s *Snapshot) Empty() bool {
	return s == nil || s.Vectors == nil || s.Vectors.Len() == 0
}

// Tokenize is the engine-wide token rule: lowercase, whitespace split.
// No stemming, no stopword removal. Whitespace-only input yields nil.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
