// Package vault reads a Markdown note collection: walking the tree, parsing
// YAML front-matter, and cleaning bodies for indexing. The vault itself is
// never written to.
package vault

import (
	"path/filepath"
	"strings"
	"time"
)

// Document is the logical unit read from one Markdown file.
type Document struct {
	// RelativePath is the path relative to the vault root, slash-separated.
	RelativePath string

	// Title is frontmatter.title, or the filename stem.
	Title string

	// RawBody is the file content after the front-matter block.
	RawBody string

	// CleanedBody has markdown syntax stripped and newlines collapsed.
	CleanedBody string

	// Tags are the deduplicated front-matter tags. Inline #hashtags in the
	// body are not collected.
	Tags []string

	// Frontmatter is the parsed YAML mapping, nil when absent or malformed.
	Frontmatter map[string]any

	// CreatedDate comes from frontmatter.created, the filename YYYY-MM-DD
	// prefix, or the file modification time, in that order.
	CreatedDate time.Time

	// ModifiedTime is the filesystem mtime, truncated to seconds so that
	// round-tripping through JSON compares equal.
	ModifiedTime time.Time

	// ContentLength is len(CleanedBody).
	ContentLength int
}

// Description returns frontmatter.description when present.
func (d *Document) Description() string {
	if d.Frontmatter == nil {
		return ""
	}
	if s, ok := d.Frontmatter["description"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// Type returns frontmatter.type when present (e.g. "repo", "daily").
func (d *Document) Type() string {
	if d.Frontmatter == nil {
		return ""
	}
	if s, ok := d.Frontmatter["type"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// EmbeddingText returns the text handed to the encoder: the curated
// description, when present, prepended to the cleaned body so it influences
// semantic placement.
func (d *Document) EmbeddingText() string {
	desc := d.Description()
	if desc == "" {
		return d.CleanedBody
	}
	if d.CleanedBody == "" {
		return desc
	}
	return desc + " " + d.CleanedBody
}

// HasTag reports whether the document carries the given tag, case-insensitive.
func (d *Document) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// TitleFromPath derives the default title for a note path: the filename stem.
func TitleFromPath(relPath string) string {
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
