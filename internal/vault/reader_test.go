package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNote(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestWalkCollectsMarkdownOnly(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "a.md", "alpha")
	writeNote(t, root, "sub/b.md", "beta")
	writeNote(t, root, "notes.txt", "ignored")
	writeNote(t, root, ".obsidian/cache.md", "hidden")
	writeNote(t, root, "sub/.hidden.md", "hidden file")

	r, err := NewReader(root)
	require.NoError(t, err)

	docs, err := r.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.md", docs[0].RelativePath)
	assert.Equal(t, "sub/b.md", docs[1].RelativePath)
}

func TestWalkExcludes(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "keep.md", "kept")
	writeNote(t, root, "vendor/dep.md", "excluded")

	r, err := NewReader(root, WithExcludes("vendor"))
	require.NoError(t, err)

	docs, err := r.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "keep.md", docs[0].RelativePath)
}

func TestFrontmatterParsing(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "note.md", `---
title: My Note
tags: [search, bm25, search]
description: a curated summary
---
Body text here.`)

	r, err := NewReader(root)
	require.NoError(t, err)

	doc, err := r.ReadFile("note.md")
	require.NoError(t, err)

	assert.Equal(t, "My Note", doc.Title)
	assert.Equal(t, []string{"search", "bm25"}, doc.Tags)
	assert.Equal(t, "a curated summary", doc.Description())
	assert.Equal(t, "Body text here.", doc.CleanedBody)
	assert.Equal(t, "a curated summary Body text here.", doc.EmbeddingText())
}

func TestMalformedFrontmatterTreatedAsBody(t *testing.T) {
	root := t.TempDir()
	content := "---\ntags: [unclosed\nbroken: : yaml\n---\nBody."
	writeNote(t, root, "bad.md", content)

	r, err := NewReader(root)
	require.NoError(t, err)

	doc, err := r.ReadFile("bad.md")
	require.NoError(t, err)

	assert.Nil(t, doc.Frontmatter)
	assert.Empty(t, doc.Tags)
	assert.Contains(t, doc.RawBody, "tags: [unclosed")
}

func TestUnterminatedFrontmatterTreatedAsBody(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "open.md", "---\ntitle: never closed\nBody without closing fence")

	r, err := NewReader(root)
	require.NoError(t, err)

	doc, err := r.ReadFile("open.md")
	require.NoError(t, err)
	assert.Nil(t, doc.Frontmatter)
	assert.Equal(t, "open", doc.Title)
}

func TestTagsFromString(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "s.md", "---\ntags: search, #vector\n---\nx")

	r, err := NewReader(root)
	require.NoError(t, err)

	doc, err := r.ReadFile("s.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"search", "vector"}, doc.Tags)
}

func TestTitleFallsBackToStem(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "sub/2024-03-10 meeting.md", "no front matter")

	r, err := NewReader(root)
	require.NoError(t, err)

	doc, err := r.ReadFile("sub/2024-03-10 meeting.md")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10 meeting", doc.Title)
}

func TestCreatedDatePrecedence(t *testing.T) {
	root := t.TempDir()

	writeNote(t, root, "fm.md", "---\ncreated: \"2023-05-01\"\n---\nx")
	writeNote(t, root, "2022-11-20-ideas.md", "x")
	writeNote(t, root, "plain.md", "x")

	r, err := NewReader(root)
	require.NoError(t, err)

	fmDoc, err := r.ReadFile("fm.md")
	require.NoError(t, err)
	assert.Equal(t, 2023, fmDoc.CreatedDate.Year())
	assert.Equal(t, time.May, fmDoc.CreatedDate.Month())

	nameDoc, err := r.ReadFile("2022-11-20-ideas.md")
	require.NoError(t, err)
	assert.Equal(t, 2022, nameDoc.CreatedDate.Year())
	assert.Equal(t, time.November, nameDoc.CreatedDate.Month())

	plainDoc, err := r.ReadFile("plain.md")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), plainDoc.CreatedDate, time.Minute)
}

func TestInvalidUTF8Skipped(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "good.md", "fine")
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.md"), []byte{0xff, 0xfe, 0x00, 0xc3}, 0o644))

	r, err := NewReader(root)
	require.NoError(t, err)

	docs, err := r.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "good.md", docs[0].RelativePath)
}

func TestListFilesMtimeTruncated(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "a.md", "x")

	r, err := NewReader(root)
	require.NoError(t, err)

	files, err := r.ListFiles(context.Background())
	require.NoError(t, err)
	require.Contains(t, files, "a.md")
	assert.Zero(t, files["a.md"].Nanosecond())
}

func TestNewReaderMissingDir(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
