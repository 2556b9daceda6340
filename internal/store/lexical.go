package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
)

// DefaultTagBoost is the multiplier applied to lexical scores when query
// tokens match front-matter tags.
const DefaultTagBoost = 5.0

// noteAnalyzerName is the registered analyzer: whitespace tokenizer plus
// lowercase filter. No stemming, no stopwords — simplicity and non-English
// friendliness win over a small precision gain.
const noteAnalyzerName = "note_text"

// lexicalDoc is the bleve document shape. One per row; the doc ID is the
// row index in decimal.
type lexicalDoc struct {
	Text string `json:"text"`
}

// LexicalIndex is the keyword side of the dual index: bleve scoring over a
// weighted token stream, with tag boosting applied after retrieval.
//
// It is rebuilt in full from row metadata on every merge; incremental
// deletes never touch it directly.
type LexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	rows   int
	tags   [][]string // lowercased tags per row
	closed bool
}

// newLexicalMapping builds the index mapping with the note analyzer.
func newLexicalMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(noteAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     whitespace.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add note analyzer: %w", err)
	}
	m.DefaultAnalyzer = noteAnalyzerName
	return m, nil
}

// BuildLexicalIndex creates a fresh index over the given rows. If path is
// non-empty, any existing index there is replaced; an empty path builds
// in-memory (tests, ephemeral snapshots).
func BuildLexicalIndex(path string, rows []RowMetadata) (*LexicalIndex, error) {
	indexMapping, err := newLexicalMapping()
	if err != nil {
		return nil, vmcperrors.IndexError("creating lexical mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		// Full rebuild: previous generation is discarded
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, vmcperrors.IndexError("clearing previous lexical index", rmErr)
		}
		idx, err = bleve.New(path, indexMapping)
	}
	if err != nil {
		return nil, vmcperrors.IndexError("creating lexical index", err)
	}

	li := &LexicalIndex{
		index: idx,
		path:  path,
		rows:  len(rows),
		tags:  make([][]string, len(rows)),
	}

	batch := idx.NewBatch()
	for i, row := range rows {
		li.tags[i] = lowercaseTags(row.Tags)
		doc := lexicalDoc{Text: lexicalText(row)}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			_ = idx.Close()
			return nil, vmcperrors.IndexError("indexing lexical doc", err).
				WithDetail("row", strconv.Itoa(i))
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, vmcperrors.IndexError("committing lexical batch", err)
	}

	return li, nil
}

// OpenLexicalIndex opens a persisted index. Row tags must be re-supplied
// from the loaded metadata because bleve stores only the token stream.
func OpenLexicalIndex(path string, rows []RowMetadata) (*LexicalIndex, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, vmcperrors.IndexError("opening lexical index", err).
			WithSuggestion("rebuild with 'vaultmcp index --force'")
	}

	li := &LexicalIndex{
		index: idx,
		path:  path,
		rows:  len(rows),
		tags:  make([][]string, len(rows)),
	}
	for i, row := range rows {
		li.tags[i] = lowercaseTags(row.Tags)
	}
	return li, nil
}

// lexicalText builds the BM25 token stream for one row: title, tags twice,
// description twice, then content. Repetition deliberately raises the term
// frequency of high-value signals.
func lexicalText(row RowMetadata) string {
	var b strings.Builder
	b.WriteString(row.Title)
	for rep := 0; rep < 2; rep++ {
		for _, tag := range row.Tags {
			b.WriteByte(' ')
			b.WriteString(tag)
		}
	}
	for rep := 0; rep < 2; rep++ {
		if row.Description != "" {
			b.WriteByte(' ')
			b.WriteString(row.Description)
		}
	}
	b.WriteByte(' ')
	b.WriteString(row.Content)
	return b.String()
}

func lowercaseTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = strings.ToLower(t)
	}
	return out
}

// Search runs the query and applies tag boosting.
//
// Scoring: raw bleve score per hit, then for every hit whose tags intersect
// the query tokens exactly (or, failing that, by substring either way), the
// score is multiplied by tagBoost and the matched tags are reported.
// Results order by boosted score descending, ties by ascending row.
func (l *LexicalIndex) Search(ctx context.Context, query string, limit int, minScore, tagBoost float64) ([]LexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, vmcperrors.IndexError("lexical index is closed", nil)
	}
	if tagBoost <= 0 {
		tagBoost = DefaultTagBoost
	}

	qTokens := Tokenize(query)
	if len(qTokens) == 0 {
		return nil, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("text")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit

	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, vmcperrors.IndexError("lexical search", err)
	}

	results := make([]LexicalResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		row, err := strconv.Atoi(hit.ID)
		if err != nil || row < 0 || row >= l.rows {
			continue
		}

		r := LexicalResult{Row: row, Score: hit.Score, BaseScore: hit.Score}
		if matched := matchTags(qTokens, l.tags[row]); len(matched) > 0 {
			r.TagsMatched = matched
			r.Score = hit.Score * tagBoost
		}
		if r.Score < minScore {
			continue
		}
		results = append(results, r)
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Row < results[b].Row
	})
	return results, nil
}

// matchTags implements the two-stage tag match: exact intersection first,
// substring only when no exact hit exists.
func matchTags(qTokens []string, tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
	}

	var exact []string
	seen := make(map[string]struct{})
	for _, tok := range qTokens {
		if _, ok := tagSet[tok]; ok {
			if _, dup := seen[tok]; !dup {
				seen[tok] = struct{}{}
				exact = append(exact, tok)
			}
		}
	}
	if len(exact) > 0 {
		return exact
	}

	var partial []string
	for _, tag := range tags {
		for _, tok := range qTokens {
			if strings.Contains(tag, tok) || strings.Contains(tok, tag) {
				if _, dup := seen[tag]; !dup {
					seen[tag] = struct{}{}
					partial = append(partial, tag)
				}
				break
			}
		}
	}
	return partial
}

// DocCount returns the number of indexed rows.
func (l *LexicalIndex) DocCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rows
}

// Close releases the underlying bleve index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.index != nil {
		return l.index.Close()
	}
	return nil
}
