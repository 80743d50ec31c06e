package ui

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/reel/pkg/config"
	"github.com/vanderheijden86/reel/pkg/feed"
)

func writeTilePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return path
}

// newTestModel builds a model over a JSONL catalog of n locally stored
// tiles, one column, six rows per card.
func newTestModel(t *testing.T, n int) Model {
	t.Helper()
	dir := t.TempDir()

	var cat bytes.Buffer
	for i := 0; i < n; i++ {
		img := writeTilePNG(t, dir, fmt.Sprintf("t%d.png", i))
		fmt.Fprintf(&cat, `{"id":"t%d","download_url":%q,"author":"Tester"}`+"\n", i, img)
	}
	catPath := filepath.Join(dir, "catalog.jsonl")
	if err := os.WriteFile(catPath, cat.Bytes(), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	captions := false
	cfg := config.DefaultConfig()
	cfg.Source.Provider = "file"
	cfg.Source.Catalog = catPath
	cfg.UI.Columns = 1
	cfg.UI.CardRows = 6
	cfg.UI.Captions = &captions

	m, err := NewModel(cfg, "")
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

// pumpEvents feeds real engine events through Update until pred holds.
func pumpEvents(t *testing.T, m Model, pred func(Model) bool) Model {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !pred(m) {
		select {
		case ev := <-m.sess.ctrl.Events():
			next, _ := m.Update(engineEventMsg{gen: m.sess.gen, ev: ev})
			m = next.(Model)
		case <-deadline:
			t.Fatalf("condition never held: state=%v feedRows=%d exhausted=%v",
				m.sess.ctrl.State(), m.feedRows, m.exhausted)
		}
	}
	return m
}

func TestModel_MountsWholeCatalogOnDemand(t *testing.T) {
	m := newTestModel(t, 5)

	m.sess.ctrl.Demand()
	m = pumpEvents(t, m, func(m Model) bool { return m.exhausted })

	if want := 5 * 6; m.feedRows != want {
		t.Errorf("feedRows = %d, want %d (five cards of six rows)", m.feedRows, want)
	}
	if m.renderedTop != 0 {
		t.Errorf("renderedTop = %d, want 0 before any eviction", m.renderedTop)
	}
	if got := m.sess.ctrl.Stats().Appended; got != 5 {
		t.Errorf("appended = %d, want 5", got)
	}

	view := m.View()
	if !strings.Contains(view, "scroll") {
		t.Error("footer should list the scroll hint")
	}
}

func TestModel_StaleSessionEventIgnored(t *testing.T) {
	m := newTestModel(t, 0)

	next, cmd := m.Update(engineEventMsg{gen: 99, ev: feed.Event{Kind: feed.EventAppended, Count: 3}})
	m2 := next.(Model)

	if cmd != nil {
		t.Error("stale event should not re-arm the pump")
	}
	if m2.feedRows != m.feedRows {
		t.Errorf("feedRows changed to %d on a stale event", m2.feedRows)
	}
}

func TestModel_EmptyRefillMarksExhausted(t *testing.T) {
	m := newTestModel(t, 0)

	next, _ := m.Update(engineEventMsg{gen: m.sess.gen, ev: feed.Event{Kind: feed.EventRefilled, Count: 0}})
	m2 := next.(Model)
	if !m2.exhausted {
		t.Fatal("empty refill with a dry buffer should mark the stream exhausted")
	}

	next2, _ := m2.Update(catalogGrewMsg{})
	if next2.(Model).exhausted {
		t.Error("catalog growth should clear the exhausted latch")
	}
}

func TestModel_StatsOverlayToggles(t *testing.T) {
	m := newTestModel(t, 0)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m2 := next.(Model)
	if !m2.showStats {
		t.Fatal("tab should open the stats overlay")
	}
	if view := m2.View(); !strings.Contains(view, "engine") {
		t.Error("stats overlay should show the engine section")
	}

	next2, _ := m2.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if next2.(Model).showStats {
		t.Error("esc should close the stats overlay")
	}
}

func TestModel_HelpOverlayRenders(t *testing.T) {
	m := newTestModel(t, 0)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	m2 := next.(Model)
	if !m2.showHelp {
		t.Fatal("? should open help")
	}
	if m2.helpView == "" {
		t.Fatal("help view should be rendered on first open")
	}
	if !strings.Contains(m2.helpView, "contact sheet") {
		t.Error("help should mention the export action")
	}
}

func TestModel_QueryRestartBumpsGeneration(t *testing.T) {
	m := newTestModel(t, 3)
	oldCtrl := m.sess.ctrl

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	m2 := next.(Model)
	if !m2.queryActive {
		t.Fatal("/ should focus the query prompt")
	}

	next2, _ := m2.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	next3, _ := next2.(Model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	m4 := next3.(Model)
	t.Cleanup(func() { m4.sess.stop() })

	if m4.queryActive {
		t.Error("enter should leave the query prompt")
	}
	if m4.sess.gen != 2 {
		t.Errorf("session gen = %d, want 2 after restart", m4.sess.gen)
	}
	if m4.sess.query != "x" {
		t.Errorf("session query = %q, want x", m4.sess.query)
	}
	if m4.renderedTop != 0 || m4.feedRows != 0 {
		t.Errorf("restart should reset content; renderedTop=%d feedRows=%d", m4.renderedTop, m4.feedRows)
	}
	select {
	case <-oldCtrl.Done():
	default:
		t.Error("old session controller still running after restart")
	}
}

func TestModel_WindowSizeReshapesViewport(t *testing.T) {
	m := newTestModel(t, 0)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m2 := next.(Model)

	if m2.viewport.Width != 80 || m2.viewport.Height != 23 {
		t.Errorf("viewport = %dx%d, want 80x23", m2.viewport.Width, m2.viewport.Height)
	}
	if m2.geo.cellW != 80 {
		t.Errorf("cellW = %d, want the full width for one column", m2.geo.cellW)
	}
}

func TestModel_StatusMessageLifecycle(t *testing.T) {
	m := newTestModel(t, 0)

	m.setStatus("sheet written", false)
	if foot := m.renderFooter(); !strings.Contains(foot, "sheet written") {
		t.Errorf("footer = %q, want the status message", foot)
	}

	next, _ := m.Update(statusExpiredMsg{seq: m.statusSeq - 1})
	if next.(Model).statusMsg == "" {
		t.Error("stale expiry cleared a newer message")
	}

	next2, _ := next.(Model).Update(statusExpiredMsg{seq: m.statusSeq})
	if next2.(Model).statusMsg != "" {
		t.Error("matching expiry should clear the message")
	}
}

func TestModel_ActionsOnEmptyWindowReportErrors(t *testing.T) {
	m := newTestModel(t, 0)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	if m2 := next.(Model); !m2.statusIsErr {
		t.Errorf("copy with no tiles should set an error status, got %q", m2.statusMsg)
	}

	next2, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	if m3 := next2.(Model); !m3.statusIsErr {
		t.Errorf("export with no tiles should set an error status, got %q", m3.statusMsg)
	}
}

func TestTruncateTo_CountsDisplayWidth(t *testing.T) {
	if got := truncateTo("short", 10); got != "short" {
		t.Errorf("expected untouched string, got %q", got)
	}
	if got := truncateTo("anything", 0); got != "" {
		t.Errorf("expected empty for zero width, got %q", got)
	}

	got := truncateTo("abcdefgh", 5)
	if w := runewidth.StringWidth(got); w > 5 {
		t.Errorf("width = %d, want <= 5 (%q)", w, got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected truncation ellipsis, got %q", got)
	}

	// Wide runes occupy two cells each; rune counting would overflow.
	got = truncateTo("画像を読み込めません", 8)
	if w := runewidth.StringWidth(got); w > 8 {
		t.Errorf("wide-rune width = %d, want <= 8 (%q)", w, got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected truncation ellipsis, got %q", got)
	}
}
