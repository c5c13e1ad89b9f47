package base

import "github.com/charmbracelet/lipgloss"

// ColorPalette defines a consistent color scheme
type ColorPalette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color

	Background lipgloss.Color
	Surface    lipgloss.Color
	Border     lipgloss.Color
	Text       lipgloss.Color
	TextDim    lipgloss.Color
}

// DarkPalette is the default dark theme palette
var DarkPalette = ColorPalette{
	Primary:   lipgloss.Color("#7C3AED"), // Purple
	Secondary: lipgloss.Color("#06B6D4"), // Cyan
	Accent:    lipgloss.Color("#10B981"), // Emerald
	Success:   lipgloss.Color("#10B981"), // Emerald
	Warning:   lipgloss.Color("#F59E0B"), // Amber
	Error:     lipgloss.Color("#EF4444"), // Red
	Muted:     lipgloss.Color("#94A3B8"), // Slate

	Background: lipgloss.Color("#0F172A"),
	Surface:    lipgloss.Color("#1E293B"),
	Border:     lipgloss.Color("#334155"),
	Text:       lipgloss.Color("#F8FAFC"),
	TextDim:    lipgloss.Color("#CBD5E1"),
}

// LightPalette is an optional light theme palette
var LightPalette = ColorPalette{
	Primary:   lipgloss.Color("#5A56E0"), // Lighter Purple
	Secondary: lipgloss.Color("#EE6FF8"), // Pink
	Accent:    lipgloss.Color("#02BA84"), // Green
	Success:   lipgloss.Color("#02BA84"), // Green
	Warning:   lipgloss.Color("#FF8C00"), // Orange
	Error:     lipgloss.Color("#FF5F56"), // Red
	Muted:     lipgloss.Color("#9B9B9B"), // Gray

	Background: lipgloss.Color("#FFFFFF"),
	Surface:    lipgloss.Color("#F1F5F9"),
	Border:     lipgloss.Color("#CBD5E1"),
	Text:       lipgloss.Color("#0F172A"),
	TextDim:    lipgloss.Color("#475569"),
}

// Palette returns the light palette when light is set, the dark one
// otherwise.
func Palette(light bool) ColorPalette {
	if light {
		return LightPalette
	}
	return DarkPalette
}
