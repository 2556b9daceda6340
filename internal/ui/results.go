package ui

import (
	"fmt"
	"strings"

	"github.com/vaultmcp/vaultmcp/internal/search"
)

// snippetLength caps the content preview per result.
const snippetLength = 200

// RenderResults formats a search response for the terminal.
func RenderResults(resp *search.Response, noColor bool) string {
	styles := GetStyles(noColor)
	var b strings.Builder

	if len(resp.Results) == 0 {
		b.WriteString(styles.Dim.Render(fmt.Sprintf("No results for %q.", resp.Query)))
		b.WriteString("\n")
		return b.String()
	}

	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = r.RelativePath
		}
		b.WriteString(fmt.Sprintf("%s %s",
			styles.Label.Render(fmt.Sprintf("%d.", i+1)),
			styles.Title.Render(title)))
		if r.TagBoosted {
			b.WriteString(" " + styles.Accent.Render("[tag match]"))
		}
		b.WriteString("\n")

		location := r.RelativePath
		if r.IsChunk {
			location += fmt.Sprintf(" (chunk %d/%d)", r.ChunkIndex+1, r.ChunkTotal)
		}
		b.WriteString("   " + styles.Path.Render(location))
		b.WriteString(" " + styles.Score.Render(fmt.Sprintf("score %.4f", r.Score)))
		b.WriteString("\n")

		if len(r.Tags) > 0 {
			b.WriteString("   " + styles.Tag.Render("#"+strings.Join(r.Tags, " #")))
			b.WriteString("\n")
		}
		if snippet := makeSnippet(r.Content); snippet != "" {
			b.WriteString("   " + snippet)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	footer := fmt.Sprintf("%d results · profile %s · %dms", len(resp.Results), resp.Profile, resp.ElapsedMS)
	if resp.TimedOut {
		footer += " · partial (deadline hit)"
	}
	b.WriteString(styles.Dim.Render(footer))
	b.WriteString("\n")

	for _, w := range resp.Warnings {
		b.WriteString(styles.Warning.Render("WARN: " + w))
		b.WriteString("\n")
	}
	return b.String()
}

func makeSnippet(content string) string {
	s := strings.Join(strings.Fields(content), " ")
	if len(s) <= snippetLength {
		return s
	}
	cut := strings.LastIndex(s[:snippetLength], " ")
	if cut <= 0 {
		cut = snippetLength
	}
	return s[:cut] + "…"
}
