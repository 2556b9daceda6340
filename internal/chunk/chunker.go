// Package chunk splits oversized document bodies into overlapping windows so
// long notes stay retrievable at paragraph granularity.
package chunk

import (
	"unicode/utf8"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
)

// Default chunking parameters.
const (
	DefaultSize      = 2000
	DefaultOverlap   = 200
	DefaultThreshold = 4000
)

// Chunk is one retrieval unit: either a whole body or a window of it.
type Chunk struct {
	// FilePath is the relative path of the source note.
	FilePath string `json:"file_path"`

	// ChunkIndex is dense in [0, ChunkTotal).
	ChunkIndex int `json:"chunk_index"`

	// ChunkTotal is the number of chunks the file produced.
	ChunkTotal int `json:"chunk_total"`

	// StartOffset and EndOffset delimit Content within the cleaned body.
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`

	// Content is the window text.
	Content string `json:"content"`

	// IsChunk is false for the single-chunk (whole body) case.
	IsChunk bool `json:"is_chunk"`
}

// Options configures the chunker.
type Options struct {
	// Size is the window length. Default 2000.
	Size int
	// Overlap is how many trailing characters each window shares with the
	// next. Must be smaller than Size. Default 200.
	Overlap int
	// Threshold is the body length below which no windowing happens.
	// Default 4000.
	Threshold int
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.Size == 0 {
		o.Size = DefaultSize
	}
	if o.Overlap == 0 {
		o.Overlap = DefaultOverlap
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Split windows content into chunks.
//
// Bodies shorter than Threshold become a single chunk. Otherwise window k
// starts at k*(Size-Overlap) and spans Size bytes, clipped at the end, with
// both edges clamped back to rune boundaries so no window splits a
// multi-byte rune. A final window shorter than Size/2 is absorbed into its
// predecessor so no tiny tail chunk is ever emitted. Every byte is covered
// by at least one chunk. Empty content yields no chunks.
func Split(filePath, content string, opts Options) ([]Chunk, error) {
	opts = opts.WithDefaults()
	if opts.Overlap >= opts.Size {
		return nil, vmcperrors.Newf(vmcperrors.KindConfig,
			"chunk overlap %d must be smaller than chunk size %d", opts.Overlap, opts.Size)
	}

	n := len(content)
	if n == 0 {
		return nil, nil
	}

	if n < opts.Threshold {
		return []Chunk{{
			FilePath:    filePath,
			ChunkIndex:  0,
			ChunkTotal:  1,
			StartOffset: 0,
			EndOffset:   n,
			Content:     content,
			IsChunk:     false,
		}}, nil
	}

	stride := opts.Size - opts.Overlap
	var bounds [][2]int
	for start := 0; start < n; start += stride {
		s := runeStart(content, start)
		end := start + opts.Size
		if end > n {
			end = n
		} else {
			end = runeStart(content, end)
		}
		if end <= s {
			// Window narrower than the rune under it; take the whole rune.
			_, w := utf8.DecodeRuneInString(content[s:])
			end = s + w
		}
		bounds = append(bounds, [2]int{s, end})
		if end == n {
			break
		}
	}

	// Absorb a short tail into its predecessor
	if len(bounds) > 1 {
		last := bounds[len(bounds)-1]
		if last[1]-last[0] < opts.Size/2 {
			bounds = bounds[:len(bounds)-1]
			bounds[len(bounds)-1][1] = n
		}
	}

	chunks := make([]Chunk, len(bounds))
	for i, b := range bounds {
		chunks[i] = Chunk{
			FilePath:    filePath,
			ChunkIndex:  i,
			ChunkTotal:  len(bounds),
			StartOffset: b[0],
			EndOffset:   b[1],
			Content:     content[b[0]:b[1]],
			IsChunk:     true,
		}
	}
	return chunks, nil
}

// runeStart walks i back to the nearest rune boundary so a window never
// splits a multi-byte rune. Monotone in i, which keeps adjacent windows
// overlapping after clamping.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
