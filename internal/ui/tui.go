package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer shows a live progress bar using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *indexModel
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. Callers should have verified the
// output is a terminal; NewRenderer does this.
func NewTUIRenderer(cfg Config) *TUIRenderer {
	return &TUIRenderer{
		cfg:   cfg,
		model: newIndexModel(cfg),
		done:  make(chan struct{}),
	}
}

// Start implements Renderer.
func (r *TUIRenderer) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Update implements Renderer.
func (r *TUIRenderer) Update(stage Stage, done, total int) {
	r.send(progressMsg{stage: stage, done: done, total: total})
}

// Warn implements Renderer.
func (r *TUIRenderer) Warn(path string, err error) {
	r.send(warnMsg{path: path, err: err})
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(summary IndexSummary) {
	r.send(completeMsg(summary))
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program == nil {
		return nil
	}

	r.program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		// Don't hang shutdown on an unresponsive terminal.
	}
	return nil
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(msg)
	}
}

type progressMsg struct {
	stage Stage
	done  int
	total int
}

type warnMsg struct {
	path string
	err  error
}

type completeMsg IndexSummary

// indexModel is the bubbletea model for indexing progress.
type indexModel struct {
	styles    Styles
	vaultName string

	spinner spinner.Model
	bar     progress.Model

	stage    Stage
	done     int
	total    int
	warnings []warnMsg
	summary  *IndexSummary
	quitting bool
}

func newIndexModel(cfg Config) *indexModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	bar := progress.New(
		progress.WithSolidFill(ColorAccent),
		progress.WithWidth(40),
	)

	return &indexModel{
		styles:    GetStyles(cfg.NoColor),
		vaultName: cfg.VaultName,
		spinner:   s,
		bar:       bar,
		stage:     StageScanning,
	}
}

// Init implements tea.Model.
func (m *indexModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *indexModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		width := msg.Width - 20
		if width < 20 {
			width = 20
		}
		m.bar.Width = width

	case progressMsg:
		m.stage = msg.stage
		m.done = msg.done
		m.total = msg.total
		return m, nil

	case warnMsg:
		m.warnings = append(m.warnings, msg)
		return m, nil

	case completeMsg:
		summary := IndexSummary(msg)
		m.summary = &summary
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *indexModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.summary != nil {
		return m.renderSummary()
	}

	var b strings.Builder

	title := "vaultmcp"
	if m.vaultName != "" {
		title += " · " + m.vaultName
	}
	b.WriteString(m.styles.Header.Render(title))
	b.WriteString("\n\n")

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.styles.Label.Render(stageTitle(m.stage)))
	b.WriteString("\n")

	if m.total > 0 {
		b.WriteString(m.bar.ViewAs(float64(m.done) / float64(m.total)))
		b.WriteString(fmt.Sprintf(" %d/%d\n", m.done, m.total))
	}

	for _, w := range m.warnings {
		b.WriteString(m.styles.Warning.Render(fmt.Sprintf("WARN %s: %v", w.path, w.err)))
		b.WriteString("\n")
	}
	return b.String()
}

// stageTitle capitalizes a stage name for display. Stage names are ASCII.
func stageTitle(s Stage) string {
	name := string(s)
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func (m *indexModel) renderSummary() string {
	s := m.summary
	if s.UpToDate {
		return m.styles.Success.Render(fmt.Sprintf("Index up to date: %d chunks", s.Total)) + "\n"
	}
	line := fmt.Sprintf("Indexed %d chunks (+%d new, ~%d modified, -%d deleted)",
		s.Total, s.New, s.Modified, s.Deleted)
	if s.Elapsed != "" {
		line += " in " + s.Elapsed
	}
	return m.styles.Success.Render(line) + "\n"
}
