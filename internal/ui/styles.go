package ui

import "github.com/charmbracelet/lipgloss"

// Color palette. A single cyan accent keeps the output quiet; notes are the
// content, the chrome stays out of the way.
const (
	ColorAccent    = "51"  // bright cyan
	ColorAccentDim = "30"  // dimmed cyan
	ColorGray      = "245" // secondary text
	ColorDarkGray  = "238" // separators
	ColorRed       = "196" // errors
	ColorYellow    = "220" // warnings
)

// Styles holds the lipgloss styles used across renderers.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Label   lipgloss.Style
	Accent  lipgloss.Style
	Bar     lipgloss.Style
	Title   lipgloss.Style
	Path    lipgloss.Style
	Tag     lipgloss.Style
	Score   lipgloss.Style
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentDim)),
		Bar:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Title:   lipgloss.NewStyle().Bold(true),
		Path:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentDim)),
		Tag:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Score:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
	}
}

// NoColorStyles returns an unstyled set for plain or NO_COLOR output.
func NoColorStyles() Styles {
	return Styles{}
}

// GetStyles picks the style set for the color preference.
func GetStyles(noColor bool) Styles {
	if noColor || DetectNoColor() {
		return NoColorStyles()
	}
	return DefaultStyles()
}
