package vault

import (
	"regexp"
	"strings"
)

var (
	fencedCodePattern  = regexp.MustCompile("(?s)```.*?```")
	wikiLinkPattern    = regexp.MustCompile(`\[\[([^\]|]+)(\|([^\]]+))?\]\]`)
	imageLinkPattern   = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]*)\)`)
	inlineLinkPattern  = regexp.MustCompile(`\[([^\]]+)\]\(([^)]*)\)`)
	headingPattern     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	boldPattern        = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	emphasisPattern    = regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`)
	inlineCodePattern  = regexp.MustCompile("`([^`]*)`")
	whitespacePattern  = regexp.MustCompile(`\s+`)
	blockquotePattern  = regexp.MustCompile(`(?m)^>\s?`)
	listMarkerPattern  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedPattern    = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	horizontalRulePtrn = regexp.MustCompile(`(?m)^(-{3,}|\*{3,})\s*$`)
)

// CleanMarkdown strips markdown syntax for indexing: wiki-links reduce to
// their label, inline links to their text, heading/emphasis/code markers are
// removed, and all whitespace runs collapse to single spaces.
func CleanMarkdown(content string) string {
	s := content

	s = fencedCodePattern.ReplaceAllString(s, " ")

	// [[target|label]] keeps the label, [[target]] keeps the target
	s = wikiLinkPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := wikiLinkPattern.FindStringSubmatch(m)
		if parts[3] != "" {
			return parts[3]
		}
		return parts[1]
	})

	s = imageLinkPattern.ReplaceAllString(s, "$1")
	s = inlineLinkPattern.ReplaceAllString(s, "$1")
	s = headingPattern.ReplaceAllString(s, "")
	s = horizontalRulePtrn.ReplaceAllString(s, " ")
	s = blockquotePattern.ReplaceAllString(s, "")
	s = listMarkerPattern.ReplaceAllString(s, "")
	s = numberedPattern.ReplaceAllString(s, "")
	s = boldPattern.ReplaceAllString(s, "$1$2")
	s = emphasisPattern.ReplaceAllString(s, "$1$2")
	s = inlineCodePattern.ReplaceAllString(s, "$1")

	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
