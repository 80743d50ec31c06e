package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
// Half-block tiles need TrueColor to look like images; on lower profiles
// lipgloss down-converts and the footer shows a degraded-color hint.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Theme carries the adaptive colors and pre-computed styles for the feed
// view. Styles are created once at startup, not per frame.
type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor
	Warning   lipgloss.AdaptiveColor
	Danger    lipgloss.AdaptiveColor

	// Footer
	StatusKey   lipgloss.Style
	StatusLabel lipgloss.Style
	StatusInfo  lipgloss.Style
	StatusWarn  lipgloss.Style
	StatusGood  lipgloss.Style
	StatusBad   lipgloss.Style

	// Overlays
	Overlay      lipgloss.Style
	OverlayTitle lipgloss.Style
	OverlayText  lipgloss.Style
	OverlayHint  lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},
		Border:    lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#999999", Dark: "#6272A4"},
		Success:   lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
		Warning:   lipgloss.AdaptiveColor{Light: "#AA6600", Dark: "#F1FA8C"},
		Danger:    lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
	}

	t.StatusKey = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.StatusLabel = r.NewStyle().Foreground(t.Muted)
	t.StatusInfo = r.NewStyle().Foreground(t.Subtext)
	t.StatusWarn = r.NewStyle().Foreground(t.Warning).Bold(true)
	t.StatusGood = r.NewStyle().Foreground(t.Success).Bold(true)
	t.StatusBad = r.NewStyle().Foreground(t.Danger).Bold(true)

	t.Overlay = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Secondary).
		Padding(1, 2)
	t.OverlayTitle = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.OverlayText = r.NewStyle().Foreground(t.Subtext)
	t.OverlayHint = r.NewStyle().Foreground(t.Muted).Italic(true)

	return t
}
