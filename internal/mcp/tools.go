package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query          string   `json:"query" jsonschema:"the search query to execute against the vault"`
	Limit          int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10, max 100"`
	Profile        string   `json:"profile,omitempty" jsonschema:"search profile: default, repos, recent, deep, or keywords"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty" jsonschema:"override the profile's semantic weight (0-1)"`
	LexicalWeight  *float64 `json:"lexical_weight,omitempty" jsonschema:"override the profile's lexical weight (0-1)"`
	Rerank         *bool    `json:"rerank,omitempty" jsonschema:"override the profile's cross-encoder reranking"`
	MaxAgeDays     *int     `json:"max_age_days,omitempty" jsonschema:"only consider notes modified within this many days"`
	Dedup          string   `json:"dedup,omitempty" jsonschema:"chunk deduplication: best (one result per note) or all"`
	IncludeTypes   []string `json:"include_types,omitempty" jsonschema:"only return notes whose front-matter type is in this list"`
	ExcludeTypes   []string `json:"exclude_types,omitempty" jsonschema:"drop notes whose front-matter type is in this list"`
}

// SearchResultOutput is a single ranked note or chunk.
type SearchResultOutput struct {
	Path          string   `json:"path" jsonschema:"note path relative to the vault root"`
	Title         string   `json:"title" jsonschema:"note title"`
	Description   string   `json:"description,omitempty" jsonschema:"front-matter description"`
	Tags          []string `json:"tags,omitempty" jsonschema:"front-matter tags"`
	Content       string   `json:"content" jsonschema:"matched content"`
	Score         float64  `json:"score" jsonschema:"relevance score results are ordered by"`
	ChunkIndex    int      `json:"chunk_index,omitempty" jsonschema:"which chunk of the note matched"`
	ChunkTotal    int      `json:"chunk_total,omitempty" jsonschema:"how many chunks the note has"`
	TagsMatched   []string `json:"tags_matched,omitempty" jsonschema:"query terms that matched the note's tags"`
	TagBoosted    bool     `json:"tag_boosted,omitempty" jsonschema:"true if a tag match amplified this result"`
	MatchedChunks int      `json:"matched_chunks,omitempty" jsonschema:"how many chunks of this note matched before deduplication"`
	ChunkContext  string   `json:"chunk_context,omitempty" jsonschema:"neighboring chunk text for continuity"`
	Modified      string   `json:"modified,omitempty" jsonschema:"last modification time, RFC 3339"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Query    string               `json:"query" jsonschema:"the executed query"`
	Profile  string               `json:"profile" jsonschema:"the effective search profile"`
	Results  []SearchResultOutput `json:"results" jsonschema:"ranked results, best first"`
	TimedOut bool                 `json:"timed_out,omitempty" jsonschema:"true if the deadline hit and the ranking is partial"`
	Warnings []string             `json:"warnings,omitempty" jsonschema:"degradation notes, e.g. lexical index unavailable"`
}

// ArchaeologyInput defines the input schema for the archaeology tool.
type ArchaeologyInput struct {
	Topic        string  `json:"topic" jsonschema:"the topic to trace over time"`
	Threshold    float64 `json:"threshold,omitempty" jsonschema:"minimum similarity for a note to count, default 0.25"`
	ExcludeDaily *bool   `json:"exclude_daily,omitempty" jsonschema:"skip notes tagged daily, default true"`
}

// TimelineMonth is one month bucket of topic activity.
type TimelineMonth struct {
	Month     string   `json:"month" jsonschema:"month in YYYY-MM form"`
	Activity  int      `json:"activity" jsonschema:"number of matching notes dated in this month"`
	Intensity float64  `json:"intensity" jsonschema:"mean similarity of the matching notes"`
	Notes     []string `json:"notes,omitempty" jsonschema:"matching note paths"`
}

// ArchaeologyOutput defines the output schema for the archaeology tool.
type ArchaeologyOutput struct {
	Topic          string          `json:"topic" jsonschema:"the traced topic"`
	Months         []TimelineMonth `json:"months" jsonschema:"active months in ascending order"`
	PeakPeriods    []TimelineMonth `json:"peak_periods,omitempty" jsonschema:"months of highest engagement, most intense first"`
	DormantPeriods []string        `json:"dormant_periods,omitempty" jsonschema:"months with no activity between the first and last active month"`
}

// ReindexInput defines the input schema for the reindex tool.
type ReindexInput struct {
	Force        bool  `json:"force,omitempty" jsonschema:"override the vault-safety check when the storage directory belongs to another vault"`
	Full         bool  `json:"full,omitempty" jsonschema:"rebuild from scratch instead of an incremental update"`
	Chunking     *bool `json:"chunking,omitempty" jsonschema:"override document chunking for this build"`
	ChunkSize    int   `json:"chunk_size,omitempty" jsonschema:"override the chunk window size"`
	ChunkOverlap int   `json:"chunk_overlap,omitempty" jsonschema:"override the chunk overlap"`
}

// ReindexOutput defines the output schema for the reindex tool.
type ReindexOutput struct {
	New       int  `json:"new" jsonschema:"files added to the index"`
	Modified  int  `json:"modified" jsonschema:"files re-embedded"`
	Deleted   int  `json:"deleted" jsonschema:"files removed from the index"`
	Total     int  `json:"total" jsonschema:"total indexed chunks after the build"`
	UpToDate  bool `json:"up_to_date,omitempty" jsonschema:"true if nothing changed"`
	FullBuild bool `json:"full_build,omitempty" jsonschema:"true if a full rebuild ran"`
}

// StatsInput defines the input schema for the stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the stats tool.
type StatsOutput struct {
	DocumentCount int                `json:"document_count" jsonschema:"number of indexed notes"`
	ChunkCount    int                `json:"chunk_count" jsonschema:"number of indexed chunks"`
	Dimension     int                `json:"dimension" jsonschema:"embedding dimension"`
	EncoderName   string             `json:"encoder_name" jsonschema:"encoder the index was built with"`
	VaultPath     string             `json:"vault_path" jsonschema:"absolute vault path"`
	VaultName     string             `json:"vault_name" jsonschema:"vault directory name"`
	IndexedAt     string             `json:"indexed_at,omitempty" jsonschema:"when the index was last built, RFC 3339"`
	Profiles      []string           `json:"profiles" jsonschema:"available search profiles"`
	Metrics       StatsMetricsOutput `json:"metrics" jsonschema:"recorded query activity"`
}

// StatsMetricsOutput summarizes recorded query activity, persisted history
// included.
type StatsMetricsOutput struct {
	TotalQueries    int64             `json:"total_queries" jsonschema:"queries recorded across sessions"`
	ZeroResultCount int64             `json:"zero_result_count,omitempty" jsonschema:"queries this session that found nothing"`
	QueryTypes      map[string]int64  `json:"query_types,omitempty" jsonschema:"query counts by retrieval type: lexical, semantic, mixed"`
	TopTerms        []QueryTermOutput `json:"top_terms,omitempty" jsonschema:"most frequent query terms"`
}

// QueryTermOutput pairs a query term with its frequency.
type QueryTermOutput struct {
	Term  string `json:"term" jsonschema:"the term"`
	Count int64  `json:"count" jsonschema:"how many queries used it"`
}
