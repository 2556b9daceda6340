// Package watcher keeps the index in sync with the vault: filesystem events
// are debounced into batches, each batch triggering an incremental reindex.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/logging"
)

// Operation classifies a file event.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one vault change, path relative to the vault root.
type FileEvent struct {
	Path string
	Op   Operation
}

// Config configures the watcher.
type Config struct {
	// Root is the vault root to watch, recursively.
	Root string

	// Debounce is the quiet window before a batch fires.
	Debounce time.Duration

	// OnBatch runs for each debounced batch; typically an incremental
	// reindex. Runs on the watcher goroutine, one batch at a time.
	OnBatch func(ctx context.Context, events []FileEvent)

	Logger *slog.Logger
}

// Watcher follows the vault tree with fsnotify. New subdirectories are
// picked up as they appear.
type Watcher struct {
	cfg       Config
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger
}

// New creates a watcher; Start begins delivery.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" || cfg.OnBatch == nil {
		return nil, vmcperrors.ConfigError("watcher requires a root and batch handler", nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, vmcperrors.ConfigError("creating filesystem watcher", err)
	}
	return &Watcher{
		cfg:       cfg,
		fsw:       fsw,
		debouncer: NewDebouncer(cfg.Debounce),
		logger:    cfg.Logger,
	}, nil
}

// Start registers watches and runs the event loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.cfg.Root); err != nil {
		return err
	}
	w.logger.Info("Vault watcher started", slog.String("root", w.cfg.Root))

	go w.eventLoop(ctx)
	go w.batchLoop(ctx)
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.debouncer.Stop()
	return w.fsw.Close()
}

// addRecursive watches dir and every non-hidden subdirectory.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", slog.String("error", err.Error()))
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	// New directories need their own watch before their files produce
	// events.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(ev.Name), ".") {
				_ = w.addRecursive(ev.Name)
			}
			return
		}
	}

	rel, err := filepath.Rel(w.cfg.Root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasSuffix(rel, ".md") || hasHiddenSegment(rel) {
		return
	}

	var op Operation
	switch {
	case ev.Op.Has(fsnotify.Create):
		op = OpCreate
	case ev.Op.Has(fsnotify.Write):
		op = OpModify
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}
	w.debouncer.Add(FileEvent{Path: rel, Op: op})
}

func (w *Watcher) batchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events, ok := <-w.debouncer.Batches():
			if !ok {
				return
			}
			w.logger.Debug("Vault change batch", slog.Int("events", len(events)))
			w.cfg.OnBatch(ctx, events)
		}
	}
}

func hasHiddenSegment(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
