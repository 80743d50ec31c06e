package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/reel/pkg/feed"
	"github.com/vanderheijden86/reel/pkg/metrics"
	"github.com/vanderheijden86/reel/pkg/render"
)

// tileGap is the space between tiles in a row, in terminal columns.
const tileGap = 2

// cellGeometry is the tile layout derived from the terminal size and the
// UI config. One content row is exactly cardRows terminal rows, which is
// also the engine's unit extent, so window offsets line up with rendered
// lines.
type cellGeometry struct {
	cols     int // tiles per content row
	cellW    int // tile width in terminal columns
	tileRows int // half-block image rows per tile
	cardRows int // total rows per content row (tile + caption + spacing)
	captions bool
}

func newCellGeometry(width, columns, cardRows int, captions bool) cellGeometry {
	if columns < 1 {
		columns = 1
	}
	if cardRows < 4 {
		cardRows = 4
	}
	cellW := (width - (columns-1)*tileGap) / columns
	if cellW < 8 {
		cellW = 8
	}
	tileRows := cardRows - 1 // one spacing row per card
	if captions {
		tileRows--
	}
	return cellGeometry{
		cols:     columns,
		cellW:    cellW,
		tileRows: tileRows,
		cardRows: cardRows,
		captions: captions,
	}
}

// feedContent renders window entries into the scrollable feed body. Rows
// are grouped by the offset the engine assigned at append time; a row lost
// entirely to unit failures renders as blank filler so later offsets still
// land on their lines.
func feedContent(entries []feed.WindowEntry, sink *tileSink, geo cellGeometry) string {
	defer metrics.Timer(metrics.UIRender)()

	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	next := entries[0].Offset
	for i := 0; i < len(entries); {
		off := entries[i].Offset
		for next < off {
			b.WriteString(blankRow(geo))
			b.WriteByte('\n')
			next += geo.cardRows
		}

		j := i
		for j < len(entries) && entries[j].Offset == off {
			j++
		}
		b.WriteString(renderRow(entries[i:j], sink, geo))
		i = j
		next = off + geo.cardRows
		if i < len(entries) {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// renderRow renders up to cols tiles side by side, followed by the card's
// spacing row. The block is always cardRows lines tall.
func renderRow(entries []feed.WindowEntry, sink *tileSink, geo cellGeometry) string {
	cells := make([]string, 0, len(entries)*2)
	for i, e := range entries {
		if i > 0 {
			cells = append(cells, strings.Repeat(" ", tileGap))
		}
		cells = append(cells, renderCell(e, sink, geo))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...) + "\n"
}

// renderCell renders one tile: the half-block image (or a placeholder while
// it loads) plus the author caption.
func renderCell(e feed.WindowEntry, sink *tileSink, geo cellGeometry) string {
	lines, ok := sink.Lines(e.ID)
	if !ok {
		label := e.ID
		if label == "" {
			label = "loading"
		}
		lines = render.Placeholder(geo.cellW, geo.tileRows, label)
	}
	cell := strings.Join(lines, "\n")
	if geo.captions {
		cell += "\n" + render.Caption(sink.Author(e.ID), geo.cellW)
	}
	return cell
}

// blankRow is a filler content row: cardRows empty lines.
func blankRow(geo cellGeometry) string {
	return strings.Repeat("\n", geo.cardRows-1)
}
