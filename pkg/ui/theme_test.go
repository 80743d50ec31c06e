package ui

import (
	"io"
	"testing"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

func TestThemeFg_ProfileBranches(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	TermProfile = colorprofile.TrueColor
	if got := ThemeFg("#BD93F9"); got != lipgloss.Color("#BD93F9") {
		t.Errorf("truecolor profile: got %v, want the hex color", got)
	}

	TermProfile = colorprofile.ANSI256
	if got := ThemeFg("#BD93F9"); got != lipgloss.Color("#BD93F9") {
		t.Errorf("ansi256 profile: got %v, want the hex color", got)
	}

	TermProfile = colorprofile.ANSI
	if got := ThemeFg("#BD93F9"); got != lipgloss.ANSIColor(7) {
		t.Errorf("ansi profile: got %v, want ANSI white", got)
	}

	TermProfile = colorprofile.NoTTY
	if got := ThemeFg("#BD93F9"); got != lipgloss.ANSIColor(7) {
		t.Errorf("no-tty profile: got %v, want ANSI white", got)
	}
}

func TestDefaultTheme_StylesBound(t *testing.T) {
	theme := DefaultTheme(lipgloss.NewRenderer(io.Discard))

	if theme.Renderer == nil {
		t.Fatal("theme has no renderer")
	}
	if theme.Primary.Dark == "" || theme.Primary.Light == "" {
		t.Error("primary color missing a variant")
	}
	if !theme.StatusKey.GetBold() {
		t.Error("status key style should be bold")
	}
	if !theme.StatusBad.GetBold() {
		t.Error("status bad style should be bold")
	}
	if theme.Overlay.GetPaddingLeft() != 2 || theme.Overlay.GetPaddingTop() != 1 {
		t.Errorf("overlay padding = %d,%d, want 2,1",
			theme.Overlay.GetPaddingLeft(), theme.Overlay.GetPaddingTop())
	}
	if !theme.OverlayHint.GetItalic() {
		t.Error("overlay hint style should be italic")
	}

	// Styling a string must not panic regardless of the ambient profile.
	if out := theme.Overlay.Render("x"); out == "" {
		t.Error("overlay render produced nothing")
	}
}
