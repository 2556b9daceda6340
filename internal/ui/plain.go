package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// PlainRenderer writes one line per progress step. Suitable for pipes,
// logs, and CI.
type PlainRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	warnings int
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// Update implements Renderer.
func (r *PlainRenderer) Update(stage Stage, done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if total > 0 {
		fmt.Fprintf(r.out, "[%s] %d/%d\n", stage.Label(), done, total)
	} else {
		fmt.Fprintf(r.out, "[%s]\n", stage.Label())
	}
}

// Warn implements Renderer.
func (r *PlainRenderer) Warn(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.warnings++
	if path != "" {
		fmt.Fprintf(r.out, "WARN: %s: %v\n", path, err)
	} else {
		fmt.Fprintf(r.out, "WARN: %v\n", err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(summary IndexSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if summary.UpToDate {
		fmt.Fprintf(r.out, "Index up to date: %d chunks\n", summary.Total)
		return
	}

	fmt.Fprintf(r.out, "Indexed %d chunks (+%d new, ~%d modified, -%d deleted)",
		summary.Total, summary.New, summary.Modified, summary.Deleted)
	if summary.Elapsed != "" {
		fmt.Fprintf(r.out, " in %s", summary.Elapsed)
	}
	fmt.Fprintln(r.out)

	if summary.Encoder != "" {
		fmt.Fprintf(r.out, "Encoder: %s\n", summary.Encoder)
	}
	if r.warnings > 0 {
		fmt.Fprintf(r.out, "%d files skipped with warnings\n", r.warnings)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
