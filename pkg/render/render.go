// Package render turns decoded images into terminal tile art. Each tile row
// is a line of upper-half-block runes where the rune's foreground carries
// the top pixel and its background the bottom pixel, so one terminal cell
// shows two pixels vertically.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/reel/pkg/metrics"
)

const halfBlock = "▀"

// Tile renders img into cols x rows terminal cells. The image is
// cover-scaled first so the tile is always filled edge to edge.
func Tile(img image.Image, cols, rows int) []string {
	if img == nil || cols <= 0 || rows <= 0 {
		return nil
	}
	defer metrics.Timer(metrics.CellRender)()

	px := Cover(img, cols, rows*2)

	lines := make([]string, rows)
	var b strings.Builder
	for row := 0; row < rows; row++ {
		b.Reset()
		for col := 0; col < cols; col++ {
			top := px.RGBAAt(col, row*2)
			bottom := px.RGBAAt(col, row*2+1)
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexRGB(top))).
				Background(lipgloss.Color(hexRGB(bottom)))
			b.WriteString(style.Render(halfBlock))
		}
		lines[row] = b.String()
	}
	return lines
}

// Placeholder renders a cols x rows tile holding a centered label, used
// while a tile's image is loading or after its download failed.
func Placeholder(cols, rows int, label string) []string {
	if cols <= 0 || rows <= 0 {
		return nil
	}

	style := lipgloss.NewStyle().Faint(true)
	blank := style.Render(strings.Repeat("·", cols))

	label = runewidth.Truncate(label, cols, "…")
	pad := cols - runewidth.StringWidth(label)
	left := pad / 2
	labelLine := style.Render(strings.Repeat(" ", left) + label + strings.Repeat(" ", pad-left))

	lines := make([]string, rows)
	mid := rows / 2
	for i := range lines {
		if i == mid {
			lines[i] = labelLine
		} else {
			lines[i] = blank
		}
	}
	return lines
}

// Caption renders an author line fitted to cols cells.
func Caption(author string, cols int) string {
	if cols <= 0 {
		return ""
	}
	text := runewidth.Truncate(author, cols, "…")
	pad := cols - runewidth.StringWidth(text)
	return lipgloss.NewStyle().Faint(true).Render(text + strings.Repeat(" ", pad))
}

func hexRGB(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
