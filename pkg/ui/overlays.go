package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/reel/pkg/feed"
	"github.com/vanderheijden86/reel/pkg/metrics"
)

// renderStatsOverlay builds the engine diagnostics panel. This is where
// fetch errors and halts become visible; the feed itself never shows them.
func (m Model) renderStatsOverlay() string {
	t := m.theme
	st := m.sess.ctrl.Stats()

	kv := func(label, value string) string {
		return t.OverlayHint.Render(fmt.Sprintf("%-14s", label)) + t.OverlayText.Render(value)
	}

	lines := []string{
		t.OverlayTitle.Render("engine"),
		"",
		kv("state", st.State.String()),
	}
	if m.sess.query != "" {
		lines = append(lines, kv("query", m.sess.query))
	}
	if st.HaltReason != feed.HaltNone {
		lines = append(lines, kv("halted", st.HaltReason.String()))
	}
	if !st.ResumeAt.IsZero() {
		lines = append(lines, kv("retrying in", time.Until(st.ResumeAt).Round(time.Second).String()))
	}
	if !st.RateLimitResume.IsZero() {
		lines = append(lines, kv("resume hint", st.RateLimitResume.Format("15:04:05")))
	}
	if st.LastErr != nil {
		lines = append(lines,
			kv("last error", feed.KindOf(st.LastErr).String()),
			kv("", truncateTo(st.LastErr.Error(), 48)),
		)
	}

	b := st.Buffer
	lines = append(lines,
		"",
		kv("buffer", fmt.Sprintf("%d/%d queued, %d served", b.Len, b.Capacity, b.Served)),
		kv("refills", fmt.Sprintf("%d (%d failed, %d dup dropped)", b.Refills, b.RefillFailures, b.DupDropped)),
		kv("window", fmt.Sprintf("%d tiles (%d appended, %d evicted)", st.WindowLen, st.Appended, st.Evicted)),
		kv("demands", fmt.Sprintf("%d (%d ignored)", st.Demands, st.DemandsIgnored)),
	)
	if st.UnitFailures > 0 {
		lines = append(lines, kv("unit failures", fmt.Sprintf("%d", st.UnitFailures)))
	}

	if timings := metrics.AllTimingStats(); len(timings) > 0 {
		lines = append(lines, "", t.OverlayTitle.Render("timings"))
		lines = append(lines, t.OverlayHint.Render(
			fmt.Sprintf("%-14s %7s %9s %9s", "", "count", "avg", "max")))
		for _, ts := range timings {
			lines = append(lines, t.OverlayText.Render(
				fmt.Sprintf("%-14s %7d %8.1fms %8.1fms", ts.Name, ts.Count, ts.AvgMs, ts.MaxMs)))
		}
	}

	if dists := metrics.AllDistributions(); len(dists) > 0 {
		lines = append(lines, "", t.OverlayTitle.Render("latency"))
		lines = append(lines, t.OverlayHint.Render(
			fmt.Sprintf("%-14s %9s %9s %9s", "", "p50", "p90", "p99")))
		for _, d := range dists {
			lines = append(lines, t.OverlayText.Render(
				fmt.Sprintf("%-14s %8.1fms %8.1fms %8.1fms", d.Name, d.P50Ms, d.P90Ms, d.P99Ms)))
		}
	}

	lines = append(lines, "", t.OverlayHint.Render("tab or esc closes"))
	return t.Overlay.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

const helpMarkdown = `# reel

An endless image stream for your terminal. Scroll down and more
images arrive; scroll far enough and old ones are let go.

## Keys

| Key | Action |
|-----|--------|
| j / k, ↓ / ↑ | scroll one row |
| d / u | scroll half a page |
| f / b, pgdn / pgup | scroll a full page |
| / | filter by tag (enter applies, esc cancels) |
| y | copy the focused image URL |
| e | export the window as a contact sheet |
| tab | engine stats |
| ? | this help |
| q | quit |

## Behavior

New images are requested ahead of where you are, so the stream
usually stays ahead of your scrolling. When the source has nothing
more, the footer says *caught up*; scrolling down later asks again.

Applying a tag filter restarts the stream from scratch, so images
you have already seen may come back.

Edits to the config file are picked up while running. Batch size
and eviction distance apply immediately; source and layout changes
apply on the next filter restart.
`

// renderHelp renders the help markdown at the given terminal width.
func renderHelp(width int) string {
	wrap := width - 8
	if wrap > 72 {
		wrap = 72
	}
	if wrap < 30 {
		wrap = 30
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return strings.TrimRight(out, " \n\r\t")
}
