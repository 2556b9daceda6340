package vault

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// filenameDatePattern matches a YYYY-MM-DD date embedded in a filename.
var filenameDatePattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

// splitFrontmatter separates a leading ----delimited YAML block from the
// body. A malformed block is treated as no front-matter: the full text is
// returned as the body and the mapping is nil.
func splitFrontmatter(content string) (map[string]any, string) {
	if !strings.HasPrefix(content, "---\n") && content != "---" && !strings.HasPrefix(content, "---\r\n") {
		return nil, content
	}

	rest := strings.TrimPrefix(content, "---\r\n")
	rest = strings.TrimPrefix(rest, "---\n")

	// The closing delimiter is a --- alone on its line.
	end := -1
	if strings.HasPrefix(rest, "---\n") || rest == "---" {
		end = 0
	} else {
		for _, marker := range []string{"\n---\n", "\n---\r\n"} {
			if i := strings.Index(rest, marker); i >= 0 && (end < 0 || i < end) {
				end = i
			}
		}
		if end < 0 {
			if strings.HasSuffix(rest, "\n---") {
				end = len(rest) - len("\n---")
			}
		}
	}
	if end < 0 {
		return nil, content
	}

	block := rest[:end]
	body := rest[end:]
	if i := strings.Index(body, "---"); i >= 0 {
		body = body[i+len("---"):]
	}
	body = strings.TrimPrefix(body, "\r\n")
	body = strings.TrimPrefix(body, "\n")

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil || fm == nil {
		return nil, content
	}
	return fm, body
}

// extractTags collects front-matter tags. Accepts a YAML list or a single
// string (optionally comma-separated). Tags are deduplicated preserving
// first-seen order.
func extractTags(fm map[string]any) []string {
	if fm == nil {
		return nil
	}
	raw, ok := fm["tags"]
	if !ok {
		return nil
	}

	var collected []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			collected = append(collected, fmt.Sprintf("%v", item))
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			collected = append(collected, part)
		}
	default:
		return nil
	}

	seen := make(map[string]struct{}, len(collected))
	var tags []string
	for _, t := range collected {
		t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

// createdDateFormats are the accepted frontmatter.created layouts.
var createdDateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// extractCreatedDate resolves the note's creation date: frontmatter.created,
// then a YYYY-MM-DD pattern in the filename, then the modification time.
func extractCreatedDate(fm map[string]any, relPath string, mtime time.Time) time.Time {
	if fm != nil {
		switch v := fm["created"].(type) {
		case time.Time:
			return v
		case string:
			s := strings.TrimSpace(v)
			for _, layout := range createdDateFormats {
				if t, err := time.Parse(layout, s); err == nil {
					return t
				}
			}
		}
	}

	if m := filenameDatePattern.FindString(relPath); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return t
		}
	}

	return mtime
}
