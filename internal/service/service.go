// Package service assembles the engine and exposes the transport-neutral
// query API: search, archaeology, reindex, stats. MCP and HTTP bind to it.
package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/vaultmcp/vaultmcp/internal/archaeology"
	"github.com/vaultmcp/vaultmcp/internal/config"
	"github.com/vaultmcp/vaultmcp/internal/embed"
	"github.com/vaultmcp/vaultmcp/internal/index"
	"github.com/vaultmcp/vaultmcp/internal/logging"
	"github.com/vaultmcp/vaultmcp/internal/profile"
	"github.com/vaultmcp/vaultmcp/internal/search"
	"github.com/vaultmcp/vaultmcp/internal/store"
	"github.com/vaultmcp/vaultmcp/internal/telemetry"
	"github.com/vaultmcp/vaultmcp/internal/vault"
	"github.com/vaultmcp/vaultmcp/internal/watcher"
)

// QueryTimeout bounds one search request.
const QueryTimeout = 30 * time.Second

// MetricsFlushInterval is how often the serve loop drains query telemetry
// to its SQLite store.
const MetricsFlushInterval = 5 * time.Minute

// Engine owns the long-lived components: encoder, index manager, pipeline,
// tracer, and telemetry. One per process.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	encoder  embed.Encoder
	manager  *index.Manager
	pipeline *search.Pipeline
	tracer   *archaeology.Tracer
	reranker search.Reranker
	profiles *profile.Registry
	metrics  *telemetry.Collector
	tstore   *telemetry.Store
	watch    *watcher.Watcher
}

// New wires the engine from configuration. Call Load to pick up a persisted
// index, then Serve* or individual operations.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	reader, err := vault.NewReader(cfg.Vault.Path, vault.WithExcludes(cfg.Vault.Excludes...), vault.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	encoder, err := embed.NewEncoder(ctx, embed.FactoryConfig{
		Kind:       cfg.Encoder.Kind,
		Host:       cfg.Encoder.Host,
		Model:      cfg.Encoder.Model,
		Dimensions: cfg.Encoder.Dimensions,
		BatchSize:  cfg.Encoder.BatchSize,
		CacheSize:  cfg.Encoder.CacheSize,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	profiles, err := cfg.ProfileRegistry()
	if err != nil {
		return nil, err
	}

	manager, err := index.NewManager(index.Config{
		Reader:          reader,
		Encoder:         encoder,
		Store:           store.NewFlatVectorStore(cfg.Storage.Dir, logger),
		Logger:          logger,
		ChunkingEnabled: cfg.Index.ChunkingEnabled,
		ChunkSize:       cfg.Index.ChunkSize,
		ChunkOverlap:    cfg.Index.ChunkOverlap,
		ChunkThreshold:  cfg.Index.ChunkThreshold,
		BlockOnBusy:     cfg.Index.BlockOnBusy,
	})
	if err != nil {
		return nil, err
	}

	reranker := search.NewHTTPReranker(search.HTTPRerankerConfig{
		Endpoint: cfg.Reranker.Endpoint,
		Model:    cfg.Reranker.Model,
	})

	pipeline, err := search.NewPipeline(search.Config{
		Source:   manager,
		Encoder:  encoder,
		Profiles: profiles,
		Reranker: reranker,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	tracer, err := archaeology.NewTracer(manager, encoder, logger)
	if err != nil {
		return nil, err
	}

	// Query telemetry persists alongside the index; a failed open only
	// loses history, never the engine.
	tstore, err := telemetry.OpenStore(filepath.Join(cfg.Storage.Dir, telemetry.DBFile))
	if err != nil {
		logger.Warn("Query telemetry persistence disabled", slog.String("error", err.Error()))
		tstore = nil
	}

	return &Engine{
		cfg:      cfg,
		logger:   logger,
		encoder:  encoder,
		manager:  manager,
		pipeline: pipeline,
		tracer:   tracer,
		reranker: reranker,
		profiles: profiles,
		metrics:  telemetry.NewCollector(),
		tstore:   tstore,
	}, nil
}

// Load reads the persisted index; missing index is fine.
func (e *Engine) Load(ctx context.Context) error {
	return e.manager.Load(ctx)
}

// Search runs one query with the engine-wide timeout and records telemetry.
func (e *Engine) Search(ctx context.Context, query string, opts search.Options) (*search.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	started := time.Now()
	resp, err := e.pipeline.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	prof, perr := e.profiles.Get(opts.Profile)
	if perr != nil {
		prof, _ = e.profiles.Get("")
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   telemetry.ClassifyQuery(prof.SemanticWeight, prof.LexicalWeight),
		Profile:     prof.Name,
		ResultCount: len(resp.Results),
		Latency:     time.Since(started),
		TimedOut:    resp.TimedOut,
		Timestamp:   started,
	})
	return resp, nil
}

// Archaeology traces a topic's activity over time.
func (e *Engine) Archaeology(ctx context.Context, topic string, threshold float64, excludeDaily bool) (*archaeology.Timeline, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()
	return e.tracer.Trace(ctx, topic, threshold, excludeDaily)
}

// Reindex builds or updates the index.
func (e *Engine) Reindex(ctx context.Context, opts index.BuildOptions) (*index.BuildResult, error) {
	return e.manager.Build(ctx, opts)
}

// Stats describes the loaded index.
func (e *Engine) Stats() index.Stats {
	return e.manager.Stats()
}

// Metrics snapshots the query telemetry, folding persisted history into
// the in-memory counters when the store is open.
func (e *Engine) Metrics() *telemetry.Snapshot {
	snap := e.metrics.Snapshot()
	if e.tstore == nil {
		return snap
	}

	counts, err := e.tstore.TypeCounts("0000-01-01", "9999-12-31")
	if err != nil {
		e.logger.Warn("Reading persisted telemetry failed", slog.String("error", err.Error()))
		return snap
	}
	for qt, c := range counts {
		snap.QueryTypeCounts[qt] += c
		snap.TotalQueries += c
	}
	if terms, err := e.tstore.TopTerms(20); err == nil {
		snap.TopTerms = telemetry.MergeTerms(snap.TopTerms, terms, 20)
	}
	return snap
}

// FlushMetrics drains the collector into the persistent store. No-op when
// nothing was recorded or the store failed to open.
func (e *Engine) FlushMetrics() error {
	if e.tstore == nil {
		return nil
	}
	snap := e.metrics.Drain()
	if snap.TotalQueries == 0 {
		return nil
	}
	return e.tstore.Flush(telemetry.Today(), snap)
}

// StartMetricsFlusher periodically drains query telemetry to the store
// until ctx is cancelled.
func (e *Engine) StartMetricsFlusher(ctx context.Context) {
	if e.tstore == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(MetricsFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.FlushMetrics(); err != nil {
					e.logger.Warn("Telemetry flush failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// ProfileNames lists available profiles.
func (e *Engine) ProfileNames() []string {
	return e.profiles.Names()
}

// StartWatcher begins filesystem watching with incremental reindexes, when
// enabled by configuration.
func (e *Engine) StartWatcher(ctx context.Context) error {
	if !e.cfg.Index.Watch {
		return nil
	}
	w, err := watcher.New(watcher.Config{
		Root:   e.cfg.Vault.Path,
		Logger: e.logger,
		OnBatch: func(ctx context.Context, events []watcher.FileEvent) {
			if _, err := e.manager.Build(ctx, index.BuildOptions{}); err != nil {
				e.logger.Warn("Watch-triggered reindex failed",
					slog.Int("events", len(events)),
					slog.String("error", err.Error()))
			}
		},
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return err
	}
	e.watch = w
	return nil
}

// Close flushes telemetry and releases all engine resources.
func (e *Engine) Close() error {
	if e.watch != nil {
		_ = e.watch.Close()
	}
	if err := e.FlushMetrics(); err != nil {
		e.logger.Warn("Final telemetry flush failed", slog.String("error", err.Error()))
	}
	if e.tstore != nil {
		_ = e.tstore.Close()
	}
	if e.reranker != nil {
		_ = e.reranker.Close()
	}
	err := e.manager.Close()
	if cerr := e.encoder.Close(); err == nil {
		err = cerr
	}
	return err
}
