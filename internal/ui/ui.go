// Package ui renders indexing progress, search results, and archaeology
// timelines for the terminal. Interactive terminals get a live TUI; pipes
// and CI get plain text.
package ui

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Stage identifies an indexing pipeline stage. The values match the stage
// names the index manager reports.
type Stage string

const (
	StageScanning  Stage = "scanning"
	StageChunking  Stage = "chunking"
	StageEmbedding Stage = "embedding"
	StageComplete  Stage = "complete"
)

// Label returns the short tag used in plain output.
func (s Stage) Label() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageChunking:
		return "CHUNK"
	case StageEmbedding:
		return "EMBED"
	case StageComplete:
		return "DONE"
	default:
		return "WORK"
	}
}

// IndexSummary is the final report shown after a build.
type IndexSummary struct {
	New      int
	Modified int
	Deleted  int
	Total    int
	UpToDate bool
	Elapsed  string
	Encoder  string
}

// Renderer displays indexing progress.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Update reports progress within a stage.
	Update(stage Stage, done, total int)

	// Warn surfaces a non-fatal problem, e.g. an unreadable note.
	Warn(path string, err error)

	// Complete shows the final summary.
	Complete(summary IndexSummary)

	// Stop tears the renderer down.
	Stop() error
}

// Config configures renderer construction.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	VaultName  string
}

// NewRenderer picks a TUI for interactive terminals and plain text
// otherwise.
func NewRenderer(cfg Config) Renderer {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	return NewTUIRenderer(cfg)
}

// IsTTY checks whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor honors the NO_COLOR convention.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks for common CI environment markers.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
