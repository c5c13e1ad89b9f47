package ui

import (
	"cursordb/pkg/ui/base"

	"github.com/charmbracelet/lipgloss"
)

// styles for the browser, derived from one palette.
type styles struct {
	palette base.ColorPalette

	app       lipgloss.Style
	title     lipgloss.Style
	dbBadge   lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
	statusBar lipgloss.Style
	success   lipgloss.Style
	errorIcon lipgloss.Style
	errorText lipgloss.Style
	panel     lipgloss.Style
	label     lipgloss.Style
	muted     lipgloss.Style
}

func newStyles(p base.ColorPalette) styles {
	return styles{
		palette: p,
		app: lipgloss.NewStyle().
			Background(p.Background).
			Foreground(p.Text).
			Padding(1, 2),
		title: lipgloss.NewStyle().
			Background(p.Primary).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 2),
		dbBadge: lipgloss.NewStyle().
			Background(p.Secondary).
			Foreground(p.Background).
			Bold(true).
			Padding(0, 1),
		tab: lipgloss.NewStyle().
			Foreground(p.TextDim).
			Padding(0, 1),
		activeTab: lipgloss.NewStyle().
			Foreground(p.Background).
			Background(p.Accent).
			Bold(true).
			Padding(0, 1),
		statusBar: lipgloss.NewStyle().
			Background(p.Surface).
			Foreground(p.TextDim).
			Padding(0, 1),
		success: lipgloss.NewStyle().
			Foreground(p.Accent).
			Bold(true),
		errorIcon: lipgloss.NewStyle().
			Background(p.Error).
			Foreground(p.Text).
			Bold(true).
			Padding(0, 1),
		errorText: lipgloss.NewStyle().
			Foreground(p.Error),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),
		label: lipgloss.NewStyle().
			Foreground(p.Primary).
			Bold(true),
		muted: lipgloss.NewStyle().
			Foreground(p.Muted),
	}
}
