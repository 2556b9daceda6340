// Package index orchestrates full and incremental index builds and owns the
// loaded snapshot that queries read from.
//
// Readers never lock: they grab the current snapshot pointer and keep using
// it even while a rebuild runs. Writers prepare the next generation off to
// the side and swap it in atomically. One writer at a time, enforced by a
// process mutex plus a cross-process file lock.
package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/vaultmcp/vaultmcp/internal/chunk"
	"github.com/vaultmcp/vaultmcp/internal/embed"
	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/logging"
	"github.com/vaultmcp/vaultmcp/internal/store"
	"github.com/vaultmcp/vaultmcp/internal/vault"
)

// LockFile is the cross-process writer lock inside the storage directory.
const LockFile = "index.lock"

// Config configures the Manager.
type Config struct {
	Reader  *vault.Reader
	Encoder embed.Encoder
	Store   *store.FlatVectorStore
	Logger  *slog.Logger

	// ChunkingEnabled turns document windowing on (default index behavior).
	ChunkingEnabled bool
	ChunkSize       int
	ChunkOverlap    int
	ChunkThreshold  int

	// BlockOnBusy makes a second concurrent reindex wait for the first
	// instead of failing with busy.
	BlockOnBusy bool
}

// BuildOptions tune one build invocation.
type BuildOptions struct {
	// Force overrides the vault-safety invariant and clobbers an index
	// built for a different vault.
	Force bool

	// Full forces a full rebuild even when file tracking exists.
	Full bool

	// Chunking overrides the configured windowing for this build. Any
	// override implies a full rebuild, since existing rows were cut with
	// the old parameters.
	Chunking     *bool
	ChunkSize    int
	ChunkOverlap int

	// Progress, when set, receives (stage, done, total) updates.
	Progress func(stage string, done, total int)
}

// BuildResult reports what a build changed.
type BuildResult struct {
	New       int  `json:"new"`
	Modified  int  `json:"modified"`
	Deleted   int  `json:"deleted"`
	Total     int  `json:"total"`
	UpToDate  bool `json:"up_to_date"`
	FullBuild bool `json:"full_build"`
}

// Stats summarizes the loaded index.
type Stats struct {
	DocumentCount int       `json:"document_count"`
	ChunkCount    int       `json:"chunk_count"`
	Dimension     int       `json:"dimension"`
	EncoderName   string    `json:"encoder_name"`
	VaultPath     string    `json:"vault_path"`
	VaultName     string    `json:"vault_name"`
	IndexedAt     time.Time `json:"indexed_at"`
}

// Manager owns the index lifecycle.
type Manager struct {
	reader  *vault.Reader
	encoder embed.Encoder
	store   *store.FlatVectorStore
	logger  *slog.Logger
	cfg     Config

	snapshot atomic.Pointer[store.Snapshot]

	// buildChunk is the effective windowing for the build in flight. Only
	// touched while the writer lock is held.
	buildChunk chunkConfig

	writeMu  sync.Mutex
	fileLock *flock.Flock
}

type chunkConfig struct {
	enabled   bool
	size      int
	overlap   int
	threshold int
}

// NewManager creates a Manager. Call Load to pick up a persisted index.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Reader == nil || cfg.Encoder == nil || cfg.Store == nil {
		return nil, vmcperrors.ConfigError("index manager requires reader, encoder, and store", nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = chunk.DefaultSize
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = chunk.DefaultOverlap
	}
	if cfg.ChunkThreshold == 0 {
		cfg.ChunkThreshold = chunk.DefaultThreshold
	}

	return &Manager{
		reader:   cfg.Reader,
		encoder:  cfg.Encoder,
		store:    cfg.Store,
		logger:   cfg.Logger,
		cfg:      cfg,
		fileLock: flock.New(filepath.Join(cfg.Store.Dir(), LockFile)),
	}, nil
}

// Snapshot returns the current index generation, or nil before any load.
func (m *Manager) Snapshot() *store.Snapshot {
	return m.snapshot.Load()
}

// Load reads the persisted index into a snapshot. A missing index is not an
// error; Snapshot() simply stays nil until the first build.
func (m *Manager) Load(ctx context.Context) error {
	vectors, rows, meta, err := m.store.Load()
	if err != nil {
		return err
	}
	if vectors == nil {
		m.logger.Info("No persisted index found", slog.String("dir", m.store.Dir()))
		return nil
	}

	lexical, err := store.OpenLexicalIndex(m.store.LexicalPath(), rows)
	if err != nil {
		// The vector side is intact; rebuild the lexical index from rows
		// rather than failing the load.
		m.logger.Warn("Lexical index unavailable, rebuilding from metadata",
			slog.String("error", err.Error()))
		lexical, err = store.BuildLexicalIndex(m.store.LexicalPath(), rows)
		if err != nil {
			return err
		}
	}

	m.swapSnapshot(&store.Snapshot{
		Vectors: vectors,
		Rows:    rows,
		Meta:    meta,
		Lexical: lexical,
		ANN:     store.MaybeBuildANN(vectors),
	})

	m.logger.Info("Index loaded",
		slog.Int("rows", len(rows)),
		slog.Int("dimension", vectors.Dims()),
		slog.String("encoder", meta.EncoderName))
	return nil
}

// Build runs an incremental update when file tracking exists, falling back
// to a full build otherwise (or when opts.Full is set).
func (m *Manager) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	if err := m.acquireWriter(); err != nil {
		return nil, err
	}
	defer m.releaseWriter()

	if err := m.checkVaultSafety(opts.Force); err != nil {
		return nil, err
	}

	cc := chunkConfig{
		enabled:   m.cfg.ChunkingEnabled,
		size:      m.cfg.ChunkSize,
		overlap:   m.cfg.ChunkOverlap,
		threshold: m.cfg.ChunkThreshold,
	}
	overridden := false
	if opts.Chunking != nil && *opts.Chunking != cc.enabled {
		cc.enabled = *opts.Chunking
		overridden = true
	}
	if opts.ChunkSize > 0 && opts.ChunkSize != cc.size {
		cc.size = opts.ChunkSize
		overridden = true
	}
	if opts.ChunkOverlap > 0 && opts.ChunkOverlap != cc.overlap {
		cc.overlap = opts.ChunkOverlap
		overridden = true
	}
	if cc.overlap >= cc.size {
		return nil, vmcperrors.ConfigError("chunk overlap must be smaller than chunk size", nil)
	}
	m.buildChunk = cc

	snap := m.Snapshot()
	if opts.Full || overridden || snap == nil || snap.Meta == nil || len(snap.Meta.FileTracking) == 0 {
		return m.buildFull(ctx, opts)
	}
	return m.buildIncremental(ctx, snap, opts)
}

// Stats describes the loaded index.
func (m *Manager) Stats() Stats {
	snap := m.Snapshot()
	if snap == nil || snap.Meta == nil {
		return Stats{VaultPath: m.reader.Root()}
	}
	return Stats{
		DocumentCount: len(snap.Meta.FileTracking),
		ChunkCount:    len(snap.Rows),
		Dimension:     snap.Meta.Dimension,
		EncoderName:   snap.Meta.EncoderName,
		VaultPath:     snap.Meta.VaultPath,
		VaultName:     snap.Meta.VaultName,
		IndexedAt:     snap.Meta.IndexedAt,
	}
}

// Close releases the snapshot's lexical index.
func (m *Manager) Close() error {
	if snap := m.snapshot.Swap(nil); snap != nil && snap.Lexical != nil {
		return snap.Lexical.Close()
	}
	return nil
}

// acquireWriter takes the single-writer locks. With BlockOnBusy unset, a
// held lock fails fast with a busy error.
func (m *Manager) acquireWriter() error {
	if m.cfg.BlockOnBusy {
		m.writeMu.Lock()
		if err := m.fileLock.Lock(); err != nil {
			m.writeMu.Unlock()
			return vmcperrors.IndexError("acquiring index lock", err)
		}
		return nil
	}

	if !m.writeMu.TryLock() {
		return vmcperrors.IndexError("another reindex is in progress", nil).
			WithSuggestion("retry after the current reindex finishes, or set index.block_on_busy")
	}
	locked, err := m.fileLock.TryLock()
	if err != nil {
		m.writeMu.Unlock()
		return vmcperrors.IndexError("acquiring index lock", err)
	}
	if !locked {
		m.writeMu.Unlock()
		return vmcperrors.IndexError("index is locked by another process", nil).
			WithDetail("lock_file", m.fileLock.Path())
	}
	return nil
}

func (m *Manager) releaseWriter() {
	_ = m.fileLock.Unlock()
	m.writeMu.Unlock()
}

// checkVaultSafety enforces the rule that a storage directory belongs to one
// vault. Legacy metadata without a vault path is adopted silently.
func (m *Manager) checkVaultSafety(force bool) error {
	meta, err := m.store.LoadMetadata()
	if err != nil {
		return err
	}
	if meta == nil || meta.VaultPath == "" {
		return nil
	}
	if meta.VaultPath != m.reader.Root() && !force {
		return vmcperrors.StorageMismatchError(meta.VaultPath, m.reader.Root(), m.store.Dir())
	}
	return nil
}

// swapSnapshot publishes the next generation and closes the previous
// lexical index if it is a different handle.
func (m *Manager) swapSnapshot(next *store.Snapshot) {
	prev := m.snapshot.Swap(next)
	if prev != nil && prev.Lexical != nil && (next == nil || prev.Lexical != next.Lexical) {
		_ = prev.Lexical.Close()
	}
}

// nextIndexedAt keeps indexed_at monotonic across rebuilds even under
// coarse clocks.
func nextIndexedAt(prev *store.IndexMetadata) time.Time {
	now := time.Now().UTC().Truncate(time.Second)
	if prev != nil && !now.After(prev.IndexedAt) {
		return prev.IndexedAt.Add(time.Second)
	}
	return now
}

// rowsForDocument chunks one document into metadata rows plus the texts to
// embed (description prepended so curated summaries steer placement).
func (m *Manager) rowsForDocument(doc *vault.Document) ([]store.RowMetadata, []string, error) {
	var chunks []chunk.Chunk
	if m.buildChunk.enabled {
		var err error
		chunks, err = chunk.Split(doc.RelativePath, doc.CleanedBody, chunk.Options{
			Size:      m.buildChunk.size,
			Overlap:   m.buildChunk.overlap,
			Threshold: m.buildChunk.threshold,
		})
		if err != nil {
			return nil, nil, err
		}
	} else if doc.ContentLength > 0 {
		chunks = []chunk.Chunk{{
			FilePath:   doc.RelativePath,
			ChunkTotal: 1,
			EndOffset:  doc.ContentLength,
			Content:    doc.CleanedBody,
		}}
	}

	// An empty note still gets one row so tag-only files remain findable.
	if len(chunks) == 0 {
		chunks = []chunk.Chunk{{
			FilePath:   doc.RelativePath,
			ChunkTotal: 1,
		}}
	}

	desc := doc.Description()
	rows := make([]store.RowMetadata, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		rows[i] = store.RowMetadata{
			RelativePath: doc.RelativePath,
			Title:        doc.Title,
			Tags:         doc.Tags,
			Description:  desc,
			NoteType:     doc.Type(),
			ChunkIndex:   c.ChunkIndex,
			ChunkTotal:   c.ChunkTotal,
			StartOffset:  c.StartOffset,
			EndOffset:    c.EndOffset,
			Content:      c.Content,
			IsChunk:      c.IsChunk,
			CreatedDate:  doc.CreatedDate,
			ModifiedTime: doc.ModifiedTime,
		}
		text := c.Content
		if desc != "" {
			if text == "" {
				text = desc
			} else {
				text = desc + " " + text
			}
		}
		if text == "" {
			text = doc.Title
		}
		texts[i] = text
	}
	return rows, texts, nil
}

// embedTexts encodes texts in batches, reporting progress between batches.
func (m *Manager) embedTexts(ctx context.Context, texts []string, opts BuildOptions) ([][]float32, error) {
	total := len(texts)
	out := make([][]float32, 0, total)
	for start := 0; start < total; start += embed.DefaultBatchSize {
		end := start + embed.DefaultBatchSize
		if end > total {
			end = total
		}
		batch, err := m.encoder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if opts.Progress != nil {
			opts.Progress("embedding", end, total)
		}
	}
	return out, nil
}

// vectorDataFrom packs embedded slices into the flat array. The dimension
// comes from the first vector, falling back to the encoder's declared
// dimension for an empty set.
func (m *Manager) vectorDataFrom(slices [][]float32) (*store.VectorData, error) {
	dims := m.encoder.Dimensions()
	if len(slices) > 0 {
		dims = len(slices[0])
	}
	vectors := store.NewVectorData(dims)
	for _, v := range slices {
		if err := vectors.AppendRow(v); err != nil {
			return nil, vmcperrors.IndexError("appending vector", err)
		}
	}
	return vectors, nil
}

// persist writes the merged generation and swaps the snapshot.
func (m *Manager) persist(vectors *store.VectorData, rows []store.RowMetadata, meta *store.IndexMetadata) error {
	if err := m.store.Save(vectors, rows, meta); err != nil {
		return err
	}

	lexical, err := store.BuildLexicalIndex(m.store.LexicalPath(), rows)
	if err != nil {
		return err
	}

	m.swapSnapshot(&store.Snapshot{
		Vectors: vectors,
		Rows:    rows,
		Meta:    meta,
		Lexical: lexical,
		ANN:     store.MaybeBuildANN(vectors),
	})
	return nil
}

func sortedPaths(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
