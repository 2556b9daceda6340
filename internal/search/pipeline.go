package search

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaultmcp/vaultmcp/internal/embed"
	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/logging"
	"github.com/vaultmcp/vaultmcp/internal/profile"
	"github.com/vaultmcp/vaultmcp/internal/store"
)

// SnapshotSource hands the pipeline the current index generation. The index
// manager implements it; queries never lock.
type SnapshotSource interface {
	Snapshot() *store.Snapshot
}

// Config wires the pipeline's collaborators.
type Config struct {
	Source   SnapshotSource
	Encoder  embed.Encoder
	Profiles *profile.Registry
	Reranker Reranker
	Logger   *slog.Logger
}

// Pipeline executes queries against the current snapshot. Safe for
// concurrent use; all state is read-only after construction.
type Pipeline struct {
	source   SnapshotSource
	encoder  embed.Encoder
	profiles *profile.Registry
	reranker Reranker
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil || cfg.Encoder == nil {
		return nil, vmcperrors.ConfigError("search pipeline requires a snapshot source and encoder", nil)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = profile.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Pipeline{
		source:   cfg.Source,
		encoder:  cfg.Encoder,
		profiles: cfg.Profiles,
		reranker: cfg.Reranker,
		logger:   cfg.Logger,
		now:      time.Now,
	}, nil
}

// Search runs the full query pipeline and returns a ranked response.
//
// The deadline on ctx is checked between major stages; once exceeded, the
// remaining stages are skipped and whatever ranking exists is returned with
// TimedOut set. A missing lexical index degrades to semantic-only with a
// warning; a missing dense index fails the query.
func (p *Pipeline) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	started := p.now()

	prof, err := p.profiles.Get(opts.Profile)
	if err != nil {
		return nil, err
	}
	eff := resolve(prof, opts)

	resp := &Response{Query: query, Profile: prof.Name}
	finish := func() *Response {
		resp.ElapsedMS = p.now().Sub(started).Milliseconds()
		return resp
	}

	snap := p.source.Snapshot()
	if snap == nil || snap.Vectors == nil {
		return nil, vmcperrors.IndexUnavailableError("dense index is not loaded")
	}
	if snap.Empty() {
		return finish(), nil
	}
	if len(store.Tokenize(query)) == 0 {
		return finish(), nil
	}

	lexWeight := eff.lexWeight
	if lexWeight > 0 && snap.Lexical == nil {
		p.logger.Warn("Lexical index missing, degrading to semantic-only",
			slog.String("query", query))
		resp.Warnings = append(resp.Warnings, "lexical index unavailable; semantic-only results")
		lexWeight = 0
	}
	if lexWeight <= 0 && eff.semWeight <= 0 {
		return nil, vmcperrors.IndexUnavailableError("no retrieval arm available")
	}

	fetch := 3 * eff.limit
	var (
		lexResults []store.LexicalResult
		semResults []store.SemanticResult
		queryVec   []float32
	)
	g, gctx := errgroup.WithContext(ctx)
	if lexWeight > 0 {
		g.Go(func() error {
			var err error
			lexResults, err = snap.Lexical.Search(gctx, query, fetch, 0, eff.lexMultiplier)
			return err
		})
	}
	if eff.semWeight > 0 {
		g.Go(func() error {
			var err error
			queryVec, err = p.encoder.Embed(gctx, query)
			if err != nil {
				return err
			}
			semResults = snap.SemanticSearch(queryVec, fetch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cands := fuse(lexResults, semResults, lexWeight, eff.semWeight)
	cands = filterTypes(cands, snap, eff.includeTypes, eff.excludeTypes)
	amplifyTags(cands, lexResults, prof.TagBoostFloor, prof.TagBoostSlope)

	// Lexical-only hits still get a real similarity for diagnostics.
	if queryVec != nil {
		for _, c := range cands {
			if c.semRank == 0 {
				c.sim = snap.Vectors.Similarity(queryVec, c.row)
			}
		}
	}
	sortCandidates(cands, snap)
	resp.Candidates = len(cands)

	if deadlineHit(ctx) {
		resp.TimedOut = true
		return p.finalize(resp, finish, cands, snap, eff)
	}

	if eff.rerank && p.reranker != nil {
		cands = p.rerank(ctx, query, cands, snap)
		if deadlineHit(ctx) {
			resp.TimedOut = true
			return p.finalize(resp, finish, cands, snap, eff)
		}
	}

	cands = p.applyAge(cands, snap, eff, prof.TimeDecay)

	return p.finalize(resp, finish, cands, snap, eff)
}

// effective holds profile parameters after caller overrides.
type effective struct {
	limit         int
	semWeight     float64
	lexWeight     float64
	lexMultiplier float64
	rerank        bool
	maxAgeDays    int
	dedupMode     string
	maxPerFile    int
	showContext   bool
	includeTypes  []string
	excludeTypes  []string
}

func resolve(prof profile.Profile, opts Options) effective {
	eff := effective{
		limit:         opts.Limit,
		semWeight:     prof.SemanticWeight,
		lexWeight:     prof.LexicalWeight,
		lexMultiplier: prof.LexicalMultiplier,
		rerank:        prof.CrossEncoderEnabled,
		maxAgeDays:    prof.MaxAgeDays,
		dedupMode:     prof.DedupMode,
		maxPerFile:    prof.MaxResultsPerFile,
		showContext:   prof.ShowChunkContext,
		includeTypes:  prof.IncludeTypes,
		excludeTypes:  prof.ExcludeTypes,
	}
	if eff.limit <= 0 {
		eff.limit = DefaultLimit
	}
	if eff.limit > MaxLimit {
		eff.limit = MaxLimit
	}
	if opts.SemanticWeight != nil {
		eff.semWeight = *opts.SemanticWeight
	}
	if opts.LexicalWeight != nil {
		eff.lexWeight = *opts.LexicalWeight
	}
	if opts.Rerank != nil {
		eff.rerank = *opts.Rerank
	}
	if opts.MaxAgeDays != nil {
		eff.maxAgeDays = *opts.MaxAgeDays
	}
	if opts.DedupMode != "" {
		eff.dedupMode = opts.DedupMode
	}
	if len(opts.IncludeTypes) > 0 {
		eff.includeTypes = opts.IncludeTypes
	}
	if len(opts.ExcludeTypes) > 0 {
		eff.excludeTypes = opts.ExcludeTypes
	}
	return eff
}

func deadlineHit(ctx context.Context) bool {
	return ctx.Err() != nil
}

// filterTypes applies the profile's note-type include/exclude lists.
func filterTypes(cands []*candidate, snap *store.Snapshot, include, exclude []string) []*candidate {
	if len(include) == 0 && len(exclude) == 0 {
		return cands
	}
	inSet := make(map[string]bool, len(include))
	for _, t := range include {
		inSet[strings.ToLower(t)] = true
	}
	exSet := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		exSet[strings.ToLower(t)] = true
	}

	kept := cands[:0]
	for _, c := range cands {
		nt := strings.ToLower(snap.Row(c.row).NoteType)
		if len(include) > 0 && !inSet[nt] {
			continue
		}
		if exSet[nt] {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// rerank scores the top candidates with the cross-encoder. On success the
// pool is reordered by cross-encoder score and becomes the candidate list:
// cross scores and fusion scores live on different scales (raw logits are
// routinely negative), so candidates beyond the pool are dropped rather
// than re-sorted against it. Failures are non-fatal: log and keep the
// fusion order.
func (p *Pipeline) rerank(ctx context.Context, query string, cands []*candidate, snap *store.Snapshot) []*candidate {
	pool := cands
	if len(pool) > RerankPoolSize {
		pool = pool[:RerankPoolSize]
	}
	if len(pool) == 0 {
		return cands
	}
	if !p.reranker.Available(ctx) {
		p.logger.Warn("Reranker unavailable, keeping fusion order")
		return cands
	}

	docs := make([]string, len(pool))
	for i, c := range pool {
		row := snap.Row(c.row)
		docs[i] = row.Content
		if docs[i] == "" {
			docs[i] = row.Title
		}
	}

	scores, err := p.reranker.Score(ctx, query, docs)
	if err != nil {
		p.logger.Warn("Rerank failed, keeping fusion order",
			slog.String("error", err.Error()))
		return cands
	}
	for i, c := range pool {
		c.cross = scores[i]
		c.final = scores[i]
	}
	sortCandidates(pool, snap)
	return pool
}

// applyAge enforces the hard age cutoff, then multiplies scores by the
// recency boost 1 + max_boost · 0.5^(age/half_life).
func (p *Pipeline) applyAge(cands []*candidate, snap *store.Snapshot, eff effective, decay *profile.TimeDecay) []*candidate {
	if eff.maxAgeDays <= 0 && decay == nil {
		return cands
	}
	now := p.now()

	kept := cands[:0]
	for _, c := range cands {
		mod := snap.Row(c.row).ModifiedTime
		if !mod.IsZero() {
			c.daysOld = now.Sub(mod).Hours() / 24
		}
		if eff.maxAgeDays > 0 && c.daysOld > float64(eff.maxAgeDays) {
			continue
		}
		if decay != nil && decay.HalfLifeDays > 0 {
			c.timeBoost = decay.MaxBoost * math.Pow(0.5, c.daysOld/decay.HalfLifeDays)
			c.final *= 1 + c.timeBoost
		}
		kept = append(kept, c)
	}
	if decay != nil {
		sortCandidates(kept, snap)
	}
	return kept
}

// finalize dedupes, truncates, and materializes results.
func (p *Pipeline) finalize(resp *Response, finish func() *Response, cands []*candidate, snap *store.Snapshot, eff effective) (*Response, error) {
	kept, matched := dedupe(cands, snap, eff.dedupMode, eff.maxPerFile)
	if len(kept) > eff.limit {
		kept = kept[:eff.limit]
	}

	resp.Results = make([]Result, len(kept))
	for i, c := range kept {
		row := snap.Row(c.row)
		r := Result{
			RelativePath:      sanitize(row.RelativePath),
			Title:             sanitize(row.Title),
			Description:       sanitize(row.Description),
			Tags:              sanitizeAll(append([]string(nil), row.Tags...)),
			Content:           sanitize(row.Content),
			ChunkIndex:        row.ChunkIndex,
			ChunkTotal:        row.ChunkTotal,
			IsChunk:           row.IsChunk,
			CreatedDate:       row.CreatedDate,
			ModifiedTime:      row.ModifiedTime,
			Score:             c.final,
			RRFScore:          c.rrf,
			SimilarityScore:   c.sim,
			BM25Score:         c.bm25,
			BM25BaseScore:     c.bm25Base,
			TagsMatched:       c.tags,
			TagBoosted:        c.boosted,
			TimeBoost:         c.timeBoost,
			DaysOld:           c.daysOld,
			CrossEncoderScore: c.cross,
			MatchedChunks:     matched[c.row],
		}
		if eff.showContext {
			r.ChunkContext = sanitize(p.chunkContext(snap, c.row))
		}
		resp.Results[i] = r
	}
	return finish(), nil
}

// chunkContext pulls the neighboring chunks' text for display. Rows of one
// file are contiguous; file tracking gives the span.
func (p *Pipeline) chunkContext(snap *store.Snapshot, row int) string {
	meta := snap.Meta
	if meta == nil {
		return ""
	}
	r := snap.Row(row)
	if !r.IsChunk {
		return ""
	}
	track, ok := meta.FileTracking[r.RelativePath]
	if !ok {
		return ""
	}

	var parts []string
	for i := track.RowStart; i < track.RowStart+track.RowCount && i < len(snap.Rows); i++ {
		n := snap.Row(i)
		if n.RelativePath != r.RelativePath {
			continue
		}
		if n.ChunkIndex == r.ChunkIndex-1 || n.ChunkIndex == r.ChunkIndex+1 {
			parts = append(parts, n.Content)
		}
	}
	return strings.Join(parts, " … ")
}
