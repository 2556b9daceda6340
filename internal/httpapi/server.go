// Package httpapi binds the engine's query API to HTTP for local tooling
// and scripts. The MCP stdio transport remains the primary surface.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/index"
	"github.com/vaultmcp/vaultmcp/internal/logging"
	"github.com/vaultmcp/vaultmcp/internal/search"
	"github.com/vaultmcp/vaultmcp/internal/service"
	"github.com/vaultmcp/vaultmcp/internal/telemetry"
	"github.com/vaultmcp/vaultmcp/pkg/version"
)

// ReindexWindow is the sliding window for the reindex rate limit.
const ReindexWindow = time.Minute

// Server serves the HTTP API.
type Server struct {
	e       *echo.Echo
	engine  *service.Engine
	limiter *rateLimiter
	logger  *slog.Logger
}

// Config configures the HTTP server.
type Config struct {
	Engine *service.Engine
	Logger *slog.Logger

	// ReindexPerMinute caps reindex requests per client; 0 disables the
	// limit.
	ReindexPerMinute int
}

// New creates the HTTP server and registers its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		e:       e,
		engine:  cfg.Engine,
		limiter: newRateLimiter(cfg.ReindexPerMinute, ReindexWindow),
		logger:  cfg.Logger,
	}

	e.POST("/search", s.handleSearch)
	e.POST("/archaeology", s.handleArchaeology)
	e.POST("/reindex", s.handleReindex)
	e.GET("/stats", s.handleStats)
	e.GET("/healthz", s.handleHealthz)

	return s, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Serve runs the server on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type searchRequest struct {
	Query          string   `json:"query"`
	Limit          int      `json:"limit"`
	Profile        string   `json:"profile"`
	SemanticWeight *float64 `json:"semantic_weight"`
	LexicalWeight  *float64 `json:"lexical_weight"`
	Rerank         *bool    `json:"rerank"`
	MaxAgeDays     *int     `json:"max_age_days"`
	Dedup          string   `json:"dedup"`
	IncludeTypes   []string `json:"include_types"`
	ExcludeTypes   []string `json:"exclude_types"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, vmcperrors.KindConfig, "malformed request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return errorJSON(c, http.StatusBadRequest, vmcperrors.KindConfig, "query is required")
	}

	resp, err := s.engine.Search(c.Request().Context(), req.Query, search.Options{
		Limit:          req.Limit,
		Profile:        req.Profile,
		SemanticWeight: req.SemanticWeight,
		LexicalWeight:  req.LexicalWeight,
		Rerank:         req.Rerank,
		MaxAgeDays:     req.MaxAgeDays,
		DedupMode:      req.Dedup,
		IncludeTypes:   req.IncludeTypes,
		ExcludeTypes:   req.ExcludeTypes,
	})
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

type archaeologyRequest struct {
	Topic        string  `json:"topic"`
	Threshold    float64 `json:"threshold"`
	ExcludeDaily *bool   `json:"exclude_daily"`
}

func (s *Server) handleArchaeology(c echo.Context) error {
	var req archaeologyRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, vmcperrors.KindConfig, "malformed request body")
	}
	if strings.TrimSpace(req.Topic) == "" {
		return errorJSON(c, http.StatusBadRequest, vmcperrors.KindConfig, "topic is required")
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = 0.25
	}
	excludeDaily := true
	if req.ExcludeDaily != nil {
		excludeDaily = *req.ExcludeDaily
	}

	tl, err := s.engine.Archaeology(c.Request().Context(), req.Topic, threshold, excludeDaily)
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, tl)
}

type reindexRequest struct {
	Force        bool  `json:"force"`
	Full         bool  `json:"full"`
	Chunking     *bool `json:"chunking"`
	ChunkSize    int   `json:"chunk_size"`
	ChunkOverlap int   `json:"chunk_overlap"`
}

func (s *Server) handleReindex(c echo.Context) error {
	if !s.limiter.Allow(c.RealIP()) {
		return s.mapError(c, vmcperrors.TooManyRequestsError(c.RealIP()))
	}

	var req reindexRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, vmcperrors.KindConfig, "malformed request body")
	}

	res, err := s.engine.Reindex(c.Request().Context(), index.BuildOptions{
		Force:        req.Force,
		Full:         req.Full,
		Chunking:     req.Chunking,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	})
	if err != nil {
		return s.mapError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type statsResponse struct {
	index.Stats
	Profiles []string            `json:"profiles"`
	Version  string              `json:"version"`
	Metrics  *telemetry.Snapshot `json:"metrics"`
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, statsResponse{
		Stats:    s.engine.Stats(),
		Profiles: s.engine.ProfileNames(),
		Version:  version.Version,
		Metrics:  s.engine.Metrics(),
	})
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// mapError translates engine error kinds to HTTP statuses.
func (s *Server) mapError(c echo.Context, err error) error {
	var verr *vmcperrors.VaultError
	if !errors.As(err, &verr) {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return errorJSON(c, http.StatusGatewayTimeout, vmcperrors.KindDeadline, "request timed out")
		default:
			s.logger.Error("request failed", slog.String("error", err.Error()))
			return errorJSON(c, http.StatusInternalServerError, vmcperrors.KindUnknown, err.Error())
		}
	}

	status := http.StatusInternalServerError
	switch verr.Kind {
	case vmcperrors.KindConfig:
		status = http.StatusBadRequest
	case vmcperrors.KindStorageMismatch:
		status = http.StatusConflict
	case vmcperrors.KindIndex:
		status = http.StatusConflict
	case vmcperrors.KindTooManyRequests:
		status = http.StatusTooManyRequests
	case vmcperrors.KindIndexUnavailable:
		status = http.StatusServiceUnavailable
	case vmcperrors.KindDeadline:
		status = http.StatusGatewayTimeout
	}

	return c.JSON(status, errorResponse{
		Kind:       string(verr.Kind),
		Message:    verr.Message,
		Suggestion: verr.Suggestion,
		Details:    verr.Details,
	})
}

func errorJSON(c echo.Context, status int, kind vmcperrors.Kind, message string) error {
	return c.JSON(status, errorResponse{Kind: string(kind), Message: message})
}
