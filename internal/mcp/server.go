package mcp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vaultmcp/vaultmcp/internal/archaeology"
	"github.com/vaultmcp/vaultmcp/internal/index"
	"github.com/vaultmcp/vaultmcp/internal/logging"
	"github.com/vaultmcp/vaultmcp/internal/search"
	"github.com/vaultmcp/vaultmcp/internal/service"
	"github.com/vaultmcp/vaultmcp/pkg/version"
)

// Server bridges MCP clients with the vault search engine.
type Server struct {
	mcp    *mcp.Server
	engine *service.Engine
	logger *slog.Logger
}

// NewServer creates the MCP server and registers its tools.
func NewServer(engine *service.Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Server{
		engine: engine,
		logger: logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "vaultmcp",
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search the note vault. Combines keyword and semantic retrieval, so it finds notes by meaning as well as exact terms. Profiles tune the blend: default, repos, recent, deep, keywords.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "archaeology",
		Description: "Trace when a topic was active in the vault. Returns a month-by-month timeline with peak and dormant periods, based on note dates and semantic similarity.",
	}, s.archaeologyHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reindex",
		Description: "Update the vault index. Incremental by default: only new, modified, and deleted notes are processed. Use full to rebuild from scratch.",
	}, s.reindexHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "stats",
		Description: "Report index statistics: note and chunk counts, embedding dimension, encoder, and available search profiles. Use to verify the index is ready before searching.",
	}, s.statsHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", 4))
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required and must be non-empty")
	}

	start := time.Now()
	resp, err := s.engine.Search(ctx, input.Query, search.Options{
		Limit:          input.Limit,
		Profile:        input.Profile,
		SemanticWeight: input.SemanticWeight,
		LexicalWeight:  input.LexicalWeight,
		Rerank:         input.Rerank,
		MaxAgeDays:     input.MaxAgeDays,
		DedupMode:      input.Dedup,
		IncludeTypes:   input.IncludeTypes,
		ExcludeTypes:   input.ExcludeTypes,
	})
	if err != nil {
		s.logger.Error("search failed",
			slog.String("query", input.Query),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("query", input.Query),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(resp.Results)))

	return nil, toSearchOutput(resp), nil
}

func (s *Server) archaeologyHandler(ctx context.Context, _ *mcp.CallToolRequest, input ArchaeologyInput) (
	*mcp.CallToolResult,
	ArchaeologyOutput,
	error,
) {
	if strings.TrimSpace(input.Topic) == "" {
		return nil, ArchaeologyOutput{}, NewInvalidParamsError("topic is required and must be non-empty")
	}

	threshold := input.Threshold
	if threshold == 0 {
		threshold = 0.25
	}
	excludeDaily := true
	if input.ExcludeDaily != nil {
		excludeDaily = *input.ExcludeDaily
	}

	tl, err := s.engine.Archaeology(ctx, input.Topic, threshold, excludeDaily)
	if err != nil {
		s.logger.Error("archaeology failed",
			slog.String("topic", input.Topic),
			slog.String("error", err.Error()))
		return nil, ArchaeologyOutput{}, MapError(err)
	}

	out := ArchaeologyOutput{
		Topic:          tl.Topic,
		Months:         toTimelineMonths(tl.Months),
		PeakPeriods:    toTimelineMonths(tl.PeakPeriods),
		DormantPeriods: tl.DormantPeriods,
	}
	return nil, out, nil
}

func (s *Server) reindexHandler(ctx context.Context, _ *mcp.CallToolRequest, input ReindexInput) (
	*mcp.CallToolResult,
	ReindexOutput,
	error,
) {
	start := time.Now()
	res, err := s.engine.Reindex(ctx, index.BuildOptions{
		Force:        input.Force,
		Full:         input.Full,
		Chunking:     input.Chunking,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	})
	if err != nil {
		s.logger.Error("reindex failed", slog.String("error", err.Error()))
		return nil, ReindexOutput{}, MapError(err)
	}

	s.logger.Info("reindex completed",
		slog.Duration("duration", time.Since(start)),
		slog.Int("new", res.New),
		slog.Int("modified", res.Modified),
		slog.Int("deleted", res.Deleted))

	return nil, ReindexOutput{
		New:       res.New,
		Modified:  res.Modified,
		Deleted:   res.Deleted,
		Total:     res.Total,
		UpToDate:  res.UpToDate,
		FullBuild: res.FullBuild,
	}, nil
}

func (s *Server) statsHandler(_ context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	stats := s.engine.Stats()
	out := StatsOutput{
		DocumentCount: stats.DocumentCount,
		ChunkCount:    stats.ChunkCount,
		Dimension:     stats.Dimension,
		EncoderName:   stats.EncoderName,
		VaultPath:     stats.VaultPath,
		VaultName:     stats.VaultName,
		Profiles:      s.engine.ProfileNames(),
	}
	if !stats.IndexedAt.IsZero() {
		out.IndexedAt = stats.IndexedAt.Format(time.RFC3339)
	}

	m := s.engine.Metrics()
	out.Metrics = StatsMetricsOutput{
		TotalQueries:    m.TotalQueries,
		ZeroResultCount: m.ZeroResultCount,
	}
	if len(m.QueryTypeCounts) > 0 {
		out.Metrics.QueryTypes = make(map[string]int64, len(m.QueryTypeCounts))
		for qt, c := range m.QueryTypeCounts {
			out.Metrics.QueryTypes[string(qt)] = c
		}
	}
	for _, tc := range m.TopTerms {
		out.Metrics.TopTerms = append(out.Metrics.TopTerms, QueryTermOutput{Term: tc.Term, Count: tc.Count})
	}
	return nil, out, nil
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}

func toSearchOutput(resp *search.Response) SearchOutput {
	out := SearchOutput{
		Query:    resp.Query,
		Profile:  resp.Profile,
		Results:  make([]SearchResultOutput, 0, len(resp.Results)),
		TimedOut: resp.TimedOut,
		Warnings: resp.Warnings,
	}
	for _, r := range resp.Results {
		item := SearchResultOutput{
			Path:          r.RelativePath,
			Title:         r.Title,
			Description:   r.Description,
			Tags:          r.Tags,
			Content:       r.Content,
			Score:         r.Score,
			TagsMatched:   r.TagsMatched,
			TagBoosted:    r.TagBoosted,
			MatchedChunks: r.MatchedChunks,
			ChunkContext:  r.ChunkContext,
		}
		if r.IsChunk {
			item.ChunkIndex = r.ChunkIndex
			item.ChunkTotal = r.ChunkTotal
		}
		if !r.ModifiedTime.IsZero() {
			item.Modified = r.ModifiedTime.Format(time.RFC3339)
		}
		out.Results = append(out.Results, item)
	}
	return out
}

func toTimelineMonths(months []archaeology.Month) []TimelineMonth {
	out := make([]TimelineMonth, 0, len(months))
	for _, m := range months {
		out = append(out, TimelineMonth{
			Month:     m.Month,
			Activity:  m.Activity,
			Intensity: m.Intensity,
			Notes:     m.Notes,
		})
	}
	return out
}
