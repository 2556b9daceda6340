package search

import (
	"sort"

	"github.com/vaultmcp/vaultmcp/internal/store"
)

// fuse combines the lexical and semantic lists with reciprocal rank fusion.
// Each list contributes 2·w / (k + rank) for its normalized weight w, so two
// equally-weighted lists placing a row at rank r yield 2/(k+r).
//
// Rows are the fusion key; chunks of one file stay distinct until
// deduplication so the best-matching chunk can be reported.
func fuse(lex []store.LexicalResult, sem []store.SemanticResult, lexWeight, semWeight float64) []*candidate {
	total := lexWeight + semWeight
	if total <= 0 {
		return nil
	}
	lexWeight /= total
	semWeight /= total

	byRow := make(map[int]*candidate, len(lex)+len(sem))
	get := func(row int) *candidate {
		if c, ok := byRow[row]; ok {
			return c
		}
		c := &candidate{row: row}
		byRow[row] = c
		return c
	}

	for i, r := range lex {
		c := get(r.Row)
		c.lexRank = i + 1
		c.bm25 = r.Score
		c.bm25Base = r.BaseScore
		c.tags = r.TagsMatched
		c.rrf += 2 * lexWeight / float64(RRFConstant+i+1)
	}
	for i, r := range sem {
		c := get(r.Row)
		c.semRank = i + 1
		c.sim = r.Score
		c.rrf += 2 * semWeight / float64(RRFConstant+i+1)
	}

	out := make([]*candidate, 0, len(byRow))
	for _, c := range byRow {
		c.final = c.rrf
		out = append(out, c)
	}
	return out
}

// amplifyTags counters RRF's bias against single-list hits. The top 10
// lexical hits with matched tags get their RRF score replaced with
// max_rrf × (floor + slope · bm25/max_bm25), letting a tag match outrank a
// document that appeared in both lists with poor scores. Untagged top
// lexical hits absent from the semantic list get a softer sub-max boost.
func amplifyTags(cands []*candidate, lex []store.LexicalResult, floor, slope float64) {
	if len(cands) == 0 || len(lex) == 0 {
		return
	}

	var maxRRF float64
	for _, c := range cands {
		if c.rrf > maxRRF {
			maxRRF = c.rrf
		}
	}
	maxBM25 := lex[0].Score
	for _, r := range lex {
		if r.Score > maxBM25 {
			maxBM25 = r.Score
		}
	}
	if maxBM25 <= 0 {
		return
	}

	byRow := make(map[int]*candidate, len(cands))
	for _, c := range cands {
		byRow[c.row] = c
	}

	top := lex
	if len(top) > 10 {
		top = top[:10]
	}
	for _, r := range top {
		c := byRow[r.Row]
		if c == nil {
			continue
		}
		ratio := r.Score / maxBM25
		switch {
		case len(r.TagsMatched) > 0:
			c.rrf = maxRRF * (floor + slope*ratio)
			c.boosted = true
		case c.semRank == 0:
			c.rrf = maxRRF * ratio * 0.95
		}
		c.final = c.rrf
	}
}

// sortCandidates orders by effective score descending; ties break by
// ascending path, then chunk index, for deterministic output.
func sortCandidates(cands []*candidate, snap *store.Snapshot) {
	sort.Slice(cands, func(a, b int) bool {
		ca, cb := cands[a], cands[b]
		if ca.final != cb.final {
			return ca.final > cb.final
		}
		ra, rb := snap.Row(ca.row), snap.Row(cb.row)
		if ra.RelativePath != rb.RelativePath {
			return ra.RelativePath < rb.RelativePath
		}
		return ra.ChunkIndex < rb.ChunkIndex
	})
}

// dedupe collapses chunks of one file. "best" keeps the single
// highest-scoring chunk annotated with how many matched; "all" keeps up to
// maxPerFile chunks. Input must already be sorted; output order is
// preserved, so running it twice is a no-op.
func dedupe(cands []*candidate, snap *store.Snapshot, mode string, maxPerFile int) ([]*candidate, map[int]int) {
	if maxPerFile <= 0 {
		maxPerFile = 1
	}
	kept := make([]*candidate, 0, len(cands))
	perFile := make(map[string]int)
	matched := make(map[string]int)
	for _, c := range cands {
		matched[snap.Row(c.row).RelativePath]++
	}

	limit := 1
	if mode == "all" {
		limit = maxPerFile
	}
	for _, c := range cands {
		path := snap.Row(c.row).RelativePath
		if perFile[path] >= limit {
			continue
		}
		perFile[path]++
		kept = append(kept, c)
	}

	counts := make(map[int]int, len(kept))
	for _, c := range kept {
		counts[c.row] = matched[snap.Row(c.row).RelativePath]
	}
	return kept, counts
}
