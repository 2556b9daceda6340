package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/store"
	"github.com/vaultmcp/vaultmcp/internal/vault"
)

// fileUpdate is one modified or added file, already chunked and embedded.
type fileUpdate struct {
	path string
	rows []store.RowMetadata
	vecs [][]float32
}

// buildIncremental diffs the vault against file tracking and merges the
// changes into a cloned generation.
//
// The merge order is delete, then update, then append, and it is
// load-bearing: deletions run in descending row order so lower indices stay
// valid, positional updates use the row map recomputed after deletion, and
// appends cannot disturb anything.
func (m *Manager) buildIncremental(ctx context.Context, snap *store.Snapshot, opts BuildOptions) (*BuildResult, error) {
	started := time.Now()
	tracking := snap.Meta.FileTracking

	current, err := m.reader.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	addedSet := make(map[string]struct{})
	modifiedSet := make(map[string]struct{})
	deletedSet := make(map[string]struct{})

	for path, mtime := range current {
		t, ok := tracking[path]
		if !ok {
			addedSet[path] = struct{}{}
		} else if !t.ModifiedTime.Equal(mtime) {
			modifiedSet[path] = struct{}{}
		}
	}
	for path := range tracking {
		if _, ok := current[path]; !ok {
			deletedSet[path] = struct{}{}
		}
	}

	if len(addedSet) == 0 && len(modifiedSet) == 0 && len(deletedSet) == 0 {
		m.logger.Info("Index up to date", slog.Int("files", len(current)))
		return &BuildResult{UpToDate: true, Total: len(snap.Rows)}, nil
	}

	added := sortedPaths(addedSet)
	modified := sortedPaths(modifiedSet)
	deleted := sortedPaths(deletedSet)

	m.logger.Info("Incremental reindex started",
		slog.Int("new", len(added)),
		slog.Int("modified", len(modified)),
		slog.Int("deleted", len(deleted)))

	// Embed modified first, then new; ordering keeps positional updates
	// aligned with their vectors.
	modifiedUpdates, err := m.prepareUpdates(ctx, modified, opts)
	if err != nil {
		return nil, err
	}
	addedUpdates, err := m.prepareUpdates(ctx, added, opts)
	if err != nil {
		return nil, err
	}

	// Merge on clones so concurrent readers keep the previous generation.
	rows := append([]store.RowMetadata(nil), snap.Rows...)
	vectors := snap.Vectors.Clone()

	// Phase 1: delete. Deleted files' rows go, plus rows of modified files
	// whose chunk count changed (those re-enter via append).
	var dropRows []int
	reshaped := make(map[string]bool)
	for _, path := range deleted {
		dropRows = append(dropRows, rowsOf(rows, path)...)
	}
	for _, u := range modifiedUpdates {
		old := rowsOf(rows, u.path)
		if len(old) != len(u.rows) {
			reshaped[u.path] = true
			dropRows = append(dropRows, old...)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(dropRows)))
	for _, r := range dropRows {
		rows = append(rows[:r], rows[r+1:]...)
	}
	vectors.DeleteRowsDescending(dropRows)

	// Phase 2: update by position, against the post-delete row map.
	for _, u := range modifiedUpdates {
		if reshaped[u.path] {
			continue
		}
		positions := rowsOf(rows, u.path)
		for i, pos := range positions {
			rows[pos] = u.rows[i]
			if err := vectors.SetRow(pos, u.vecs[i]); err != nil {
				return nil, vmcperrors.IndexError("updating vector row", err).
					WithDetail("path", u.path)
			}
		}
	}

	// Phase 3: append. New files, then reshaped modified files.
	appendUpdates := addedUpdates
	for _, u := range modifiedUpdates {
		if reshaped[u.path] {
			appendUpdates = append(appendUpdates, u)
		}
	}
	for _, u := range appendUpdates {
		for i := range u.rows {
			rows = append(rows, u.rows[i])
			if err := vectors.AppendRow(u.vecs[i]); err != nil {
				return nil, vmcperrors.IndexError("appending vector row", err).
					WithDetail("path", u.path).
					WithSuggestion("encoder dimension changed; run a full rebuild")
			}
		}
	}

	meta := *snap.Meta
	meta.IndexedAt = nextIndexedAt(snap.Meta)
	meta.EncoderName = m.encoder.Name()
	meta.Dimension = vectors.Dims()
	meta.RebuildFileTracking(rows)

	if err := m.persist(vectors, rows, &meta); err != nil {
		return nil, err
	}

	m.logger.Info("Incremental reindex complete",
		slog.Int("rows", len(rows)),
		slog.Duration("elapsed", time.Since(started)))

	return &BuildResult{
		New:      len(added),
		Modified: len(modified),
		Deleted:  len(deleted),
		Total:    len(rows),
	}, nil
}

// prepareUpdates reads, chunks, and embeds the given files in path order.
// Files that became unreadable are logged and skipped, matching walk
// semantics.
func (m *Manager) prepareUpdates(ctx context.Context, paths []string, opts BuildOptions) ([]fileUpdate, error) {
	updates := make([]fileUpdate, 0, len(paths))
	var texts []string
	var spans [][2]int

	for _, path := range paths {
		doc, err := m.reader.ReadFile(path)
		if err != nil {
			m.logger.Warn("Skipping unreadable note during reindex",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		rows, docTexts, err := m.rowsForDocumentChecked(doc)
		if err != nil {
			return nil, err
		}
		spans = append(spans, [2]int{len(texts), len(texts) + len(docTexts)})
		texts = append(texts, docTexts...)
		updates = append(updates, fileUpdate{path: path, rows: rows})
	}

	vecs, err := m.embedTexts(ctx, texts, opts)
	if err != nil {
		return nil, err
	}
	for i := range updates {
		updates[i].vecs = vecs[spans[i][0]:spans[i][1]]
	}
	return updates, nil
}

func (m *Manager) rowsForDocumentChecked(doc *vault.Document) ([]store.RowMetadata, []string, error) {
	rows, texts, err := m.rowsForDocument(doc)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) != len(texts) {
		return nil, nil, vmcperrors.IndexError("row/text count mismatch", nil).
			WithDetail("path", doc.RelativePath)
	}
	return rows, texts, nil
}

// rowsOf returns the ascending row indices holding the given path.
func rowsOf(rows []store.RowMetadata, path string) []int {
	var out []int
	for i, r := range rows {
		if r.RelativePath == path {
			out = append(out, i)
		}
	}
	return out
}
