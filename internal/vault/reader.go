package vault

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	vmcperrors "github.com/vaultmcp/vaultmcp/internal/errors"
	"github.com/vaultmcp/vaultmcp/internal/logging"
)

// Reader walks a vault and produces Documents.
type Reader struct {
	root     string
	excludes []string
	logger   *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithExcludes adds relative path prefixes to skip during the walk.
func WithExcludes(excludes ...string) Option {
	return func(r *Reader) {
		r.excludes = append(r.excludes, excludes...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReader creates a Reader rooted at the given vault directory.
// The path is resolved to an absolute path and must exist.
func NewReader(root string, opts ...Option) (*Reader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, vmcperrors.VaultReadError("resolving vault path", err).
			WithDetail("path", root)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, vmcperrors.VaultReadError("vault directory not accessible", err).
			WithDetail("path", abs)
	}
	if !info.IsDir() {
		return nil, vmcperrors.VaultReadError("vault path is not a directory", nil).
			WithDetail("path", abs)
	}

	r := &Reader{
		root:   abs,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Root returns the resolved absolute vault path.
func (r *Reader) Root() string {
	return r.root
}

// Walk enumerates every Markdown file under the vault and returns the parsed
// Documents sorted by relative path. Files that cannot be read or are not
// valid UTF-8 are logged and skipped.
func (r *Reader) Walk(ctx context.Context) ([]*Document, error) {
	paths, err := r.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]*Document, 0, len(paths))
	for _, relPath := range sortedKeys(paths) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := r.ReadFile(relPath)
		if err != nil {
			r.logger.Warn("Skipping unreadable note",
				slog.String("path", relPath),
				slog.String("error", err.Error()))
			continue
		}
		docs = append(docs, doc)
	}

	r.logger.Info("Vault walk complete",
		slog.String("root", r.root),
		slog.Int("documents", len(docs)))
	return docs, nil
}

// ListFiles enumerates Markdown files under the vault without reading them,
// returning relative path → modification time (truncated to seconds).
// Used by the incremental indexer for change detection.
func (r *Reader) ListFiles(ctx context.Context) (map[string]time.Time, error) {
	files := make(map[string]time.Time)

	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// A directory that vanished mid-walk is not fatal
			r.logger.Warn("Walk error", slog.String("path", path), slog.String("error", walkErr.Error()))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(r.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || r.isExcluded(rel) {
				return fs.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") || r.isExcluded(rel) {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			r.logger.Warn("Skipping unstattable file",
				slog.String("path", rel), slog.String("error", err.Error()))
			return nil
		}
		files[rel] = info.ModTime().Truncate(time.Second)
		return nil
	})
	if err != nil {
		if err == ctx.Err() {
			return nil, err
		}
		return nil, vmcperrors.VaultReadError("walking vault", err).
			WithDetail("root", r.root)
	}
	return files, nil
}

// ReadFile reads and parses a single note by its relative path.
func (r *Reader) ReadFile(relPath string) (*Document, error) {
	full := filepath.Join(r.root, filepath.FromSlash(relPath))

	info, err := os.Stat(full)
	if err != nil {
		return nil, vmcperrors.VaultReadError("stat note", err).WithDetail("path", relPath)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, vmcperrors.VaultReadError("read note", err).WithDetail("path", relPath)
	}
	if !utf8.Valid(data) {
		return nil, vmcperrors.VaultReadError("note is not valid UTF-8", nil).
			WithDetail("path", relPath)
	}

	content := string(data)
	fm, body := splitFrontmatter(content)

	mtime := info.ModTime().Truncate(time.Second)
	cleaned := CleanMarkdown(body)

	title := TitleFromPath(relPath)
	if fm != nil {
		if t, ok := fm["title"].(string); ok && strings.TrimSpace(t) != "" {
			title = strings.TrimSpace(t)
		}
	}

	return &Document{
		RelativePath:  relPath,
		Title:         title,
		RawBody:       body,
		CleanedBody:   cleaned,
		Tags:          extractTags(fm),
		Frontmatter:   fm,
		CreatedDate:   extractCreatedDate(fm, relPath, mtime),
		ModifiedTime:  mtime,
		ContentLength: len(cleaned),
	}, nil
}

func (r *Reader) isExcluded(rel string) bool {
	for _, ex := range r.excludes {
		ex = strings.Trim(filepath.ToSlash(ex), "/")
		if ex == "" {
			continue
		}
		if rel == ex || strings.HasPrefix(rel, ex+"/") {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]time.Time) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
