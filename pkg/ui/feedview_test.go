package ui

import (
	"context"
	"strings"
	"testing"

	"github.com/vanderheijden86/reel/pkg/feed"
	"github.com/vanderheijden86/reel/pkg/render"
)

func testGeometry() cellGeometry {
	return cellGeometry{cols: 1, cellW: 10, tileRows: 5, cardRows: 6, captions: false}
}

func testSink(t *testing.T) *tileSink {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return newTileSink(ctx, render.NewLoader(), 1, 10, 5)
}

func TestNewCellGeometry_SplitsWidth(t *testing.T) {
	geo := newCellGeometry(120, 2, 14, true)

	if geo.cols != 2 {
		t.Errorf("cols = %d, want 2", geo.cols)
	}
	if want := (120 - tileGap) / 2; geo.cellW != want {
		t.Errorf("cellW = %d, want %d", geo.cellW, want)
	}
	// cardRows minus the spacing row and the caption line.
	if geo.tileRows != 12 {
		t.Errorf("tileRows = %d, want 12", geo.tileRows)
	}
	if geo.cardRows != 14 {
		t.Errorf("cardRows = %d, want 14", geo.cardRows)
	}
}

func TestNewCellGeometry_WithoutCaptions(t *testing.T) {
	geo := newCellGeometry(80, 2, 10, false)
	if geo.tileRows != 9 {
		t.Errorf("tileRows = %d, want 9 (only the spacing row reserved)", geo.tileRows)
	}
}

func TestNewCellGeometry_ClampsDegenerateInput(t *testing.T) {
	geo := newCellGeometry(4, 0, 2, false)

	if geo.cols != 1 {
		t.Errorf("cols = %d, want 1", geo.cols)
	}
	if geo.cardRows != 4 {
		t.Errorf("cardRows = %d, want 4", geo.cardRows)
	}
	if geo.cellW != 8 {
		t.Errorf("cellW = %d, want the 8-column floor", geo.cellW)
	}
}

func TestFeedContent_Empty(t *testing.T) {
	if got := feedContent(nil, testSink(t), testGeometry()); got != "" {
		t.Errorf("feedContent(nil) = %q, want empty", got)
	}
}

func TestFeedContent_OneBlockPerOffset(t *testing.T) {
	geo := testGeometry()
	entries := []feed.WindowEntry{
		{ID: "a", Offset: 0},
		{ID: "b", Offset: 6},
	}

	lines := strings.Split(feedContent(entries, testSink(t), geo), "\n")

	if got, want := len(lines), 2*geo.cardRows; got != want {
		t.Fatalf("rendered %d lines, want %d", got, want)
	}
	if lines[0] == "" {
		t.Error("line 0 empty, want the first tile's top row")
	}
	if lines[5] != "" {
		t.Errorf("line 5 = %q, want the empty spacing row", lines[5])
	}
	if lines[6] == "" {
		t.Error("line 6 empty, want the second tile starting on its offset")
	}
}

func TestFeedContent_FillsGapFromLostRow(t *testing.T) {
	geo := testGeometry()
	// The row at offset 6 failed out of the window entirely; the row at 12
	// must still start on line 12.
	entries := []feed.WindowEntry{
		{ID: "a", Offset: 0},
		{ID: "c", Offset: 12},
	}

	lines := strings.Split(feedContent(entries, testSink(t), geo), "\n")

	if got, want := len(lines), 3*geo.cardRows; got != want {
		t.Fatalf("rendered %d lines, want %d", got, want)
	}
	for i := 5; i < 12; i++ {
		if lines[i] != "" {
			t.Errorf("line %d = %q, want blank filler", i, lines[i])
		}
	}
	if lines[12] == "" {
		t.Error("line 12 empty, want tile c on its recorded offset")
	}
}

func TestFeedContent_PlaceholderShowsID(t *testing.T) {
	geo := testGeometry()
	entries := []feed.WindowEntry{{ID: "pic-42", Offset: 0}}

	content := feedContent(entries, testSink(t), geo)
	if !strings.Contains(content, "pic-42") {
		t.Error("placeholder should carry the tile ID while loading")
	}
}

func TestRenderRow_SideBySideTiles(t *testing.T) {
	geo := cellGeometry{cols: 2, cellW: 8, tileRows: 3, cardRows: 4, captions: false}
	entries := []feed.WindowEntry{
		{ID: "l", Offset: 0},
		{ID: "r", Offset: 0},
	}

	row := renderRow(entries, testSink(t), geo)
	lines := strings.Split(strings.TrimSuffix(row, "\n"), "\n")

	if got, want := len(lines), geo.cardRows-1; got != want {
		t.Fatalf("row has %d lines, want %d", got, want)
	}
	if !strings.Contains(lines[1], "l") || !strings.Contains(lines[1], "r") {
		t.Errorf("middle line %q should show both tile labels", lines[1])
	}
}
