package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/vaultmcp/vaultmcp/internal/store"
)

// buildFull walks the whole vault and derives a fresh index generation.
func (m *Manager) buildFull(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	started := time.Now()
	m.logger.Info("Full index build started", slog.String("vault", m.reader.Root()))

	docs, err := m.reader.Walk(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Progress != nil {
		opts.Progress("scanning", len(docs), len(docs))
	}

	var rows []store.RowMetadata
	var texts []string
	for i, doc := range docs {
		docRows, docTexts, err := m.rowsForDocument(doc)
		if err != nil {
			return nil, err
		}
		rows = append(rows, docRows...)
		texts = append(texts, docTexts...)
		if opts.Progress != nil {
			opts.Progress("chunking", i+1, len(docs))
		}
	}

	slices, err := m.embedTexts(ctx, texts, opts)
	if err != nil {
		return nil, err
	}
	vectors, err := m.vectorDataFrom(slices)
	if err != nil {
		return nil, err
	}

	prevMeta, err := m.store.LoadMetadata()
	if err != nil {
		prevMeta = nil
	}

	meta := &store.IndexMetadata{
		VaultPath:       m.reader.Root(),
		VaultName:       filepath.Base(m.reader.Root()),
		EncoderName:     m.encoder.Name(),
		Dimension:       vectors.Dims(),
		VectorDType:     "float32",
		IndexedAt:       nextIndexedAt(prevMeta),
		ChunkingEnabled: m.cfg.ChunkingEnabled,
		ChunkSize:       m.cfg.ChunkSize,
		ChunkOverlap:    m.cfg.ChunkOverlap,
		ChunkThreshold:  m.cfg.ChunkThreshold,
	}
	meta.RebuildFileTracking(rows)

	if err := m.persist(vectors, rows, meta); err != nil {
		return nil, err
	}

	m.logger.Info("Full index build complete",
		slog.Int("files", len(docs)),
		slog.Int("rows", len(rows)),
		slog.Duration("elapsed", time.Since(started)))

	return &BuildResult{
		New:       len(docs),
		Total:     len(rows),
		FullBuild: true,
	}, nil
}
