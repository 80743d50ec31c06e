// Package export writes contact sheets: a grid of the currently windowed
// tiles with their attributions, as PNG or SVG.
package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/reel/pkg/metrics"
	"github.com/vanderheijden86/reel/pkg/render"
)

// SheetItem is one tile on the sheet. A nil Image renders as a labeled
// placeholder box, so a sheet exported mid-load still lines up.
type SheetItem struct {
	ID     string
	Author string
	Image  image.Image
}

// SheetOptions controls contact-sheet output.
type SheetOptions struct {
	Title   string   // rendered in the header block
	Summary []string // extra header lines (session stats, timestamp)
	Columns int      // thumbnails per row, default 4
	CellPx  int      // thumbnail edge in pixels, default 240
	Format  string   // "png" or "svg" (case-insensitive), default png
	Dir     string   // output directory, created if missing
}

const (
	defaultSheetColumns = 4
	defaultSheetCellPx  = 240

	sheetMargin  = 24
	sheetGutter  = 16
	sheetCaption = 40 // two text lines under each thumbnail
)

var (
	sheetBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	sheetHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	sheetCellBG   = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
	sheetStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	sheetText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	sheetSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
)

type sheetLayout struct {
	Cols   int
	Rows   int
	CellPx int
	Header int
	Width  int
	Height int
}

// WriteContactSheet renders items into a timestamped file under opts.Dir and
// returns its path.
func WriteContactSheet(items []SheetItem, opts SheetOptions) (string, error) {
	defer metrics.Timer(metrics.ContactSheet)()

	if len(items) == 0 {
		return "", fmt.Errorf("no tiles to export")
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		format = "png"
	}
	if format != "png" && format != "svg" {
		return "", fmt.Errorf("unsupported format %q (want png or svg)", format)
	}

	layout := buildSheetLayout(len(items), opts)
	thumbs := scaleThumbs(items, layout.CellPx)

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("reel-sheet-%s.%s", time.Now().Format("20060102-150405"), format))

	switch format {
	case "png":
		if err := renderSheetPNG(path, items, thumbs, layout, opts); err != nil {
			return "", err
		}
	case "svg":
		if err := renderSheetSVG(path, items, thumbs, layout, opts); err != nil {
			return "", err
		}
	}
	return path, nil
}

func buildSheetLayout(n int, opts SheetOptions) sheetLayout {
	cols := opts.Columns
	if cols < 1 {
		cols = defaultSheetColumns
	}
	if cols > n {
		cols = n
	}
	cellPx := opts.CellPx
	if cellPx < 32 {
		cellPx = defaultSheetCellPx
	}
	rows := (n + cols - 1) / cols

	header := 64 + 18*len(opts.Summary)
	cellH := cellPx + sheetCaption

	return sheetLayout{
		Cols:   cols,
		Rows:   rows,
		CellPx: cellPx,
		Header: header,
		Width:  2*sheetMargin + cols*cellPx + (cols-1)*sheetGutter,
		Height: sheetMargin + header + sheetGutter + rows*cellH + (rows-1)*sheetGutter + sheetMargin,
	}
}

// scaleThumbs crops every available image to the uniform cell size. Scaling
// dominates export time, so cells are processed in parallel.
func scaleThumbs(items []SheetItem, cellPx int) []*image.RGBA {
	thumbs := make([]*image.RGBA, len(items))
	var g errgroup.Group
	g.SetLimit(4)
	for i := range items {
		if items[i].Image == nil {
			continue
		}
		i := i
		g.Go(func() error {
			thumbs[i] = render.Cover(items[i].Image, cellPx, cellPx)
			return nil
		})
	}
	g.Wait() // workers never return errors
	return thumbs
}

// cellOrigin returns the top-left pixel of cell i.
func (l sheetLayout) cellOrigin(i int) (x, y int) {
	col := i % l.Cols
	row := i / l.Cols
	x = sheetMargin + col*(l.CellPx+sheetGutter)
	y = sheetMargin + l.Header + sheetGutter + row*(l.CellPx+sheetCaption+sheetGutter)
	return x, y
}

func renderSheetPNG(path string, items []SheetItem, thumbs []*image.RGBA, layout sheetLayout, opts SheetOptions) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(sheetBackdrop)
	dc.Clear()

	// header
	dc.SetColor(sheetHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, float64(layout.Header)-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(sheetText)
	dc.DrawString(opts.Title, 32, 40)
	dc.SetColor(sheetSubtle)
	for i, line := range opts.Summary {
		dc.DrawString(line, 32, float64(58+18*i))
	}

	for i, item := range items {
		x, y := layout.cellOrigin(i)
		if thumbs[i] != nil {
			dc.DrawImage(thumbs[i], x, y)
		} else {
			dc.SetColor(sheetCellBG)
			dc.DrawRoundedRectangle(float64(x), float64(y), float64(layout.CellPx), float64(layout.CellPx), 8)
			dc.Fill()
			dc.SetColor(sheetSubtle)
			dc.DrawStringAnchored("not loaded", float64(x+layout.CellPx/2), float64(y+layout.CellPx/2), 0.5, 0.5)
		}

		dc.SetColor(sheetText)
		dc.DrawString(item.ID, float64(x), float64(y+layout.CellPx+16))
		if item.Author != "" {
			dc.SetColor(sheetSubtle)
			dc.DrawString(truncateLabel(item.Author, layout.CellPx/7), float64(x), float64(y+layout.CellPx+32))
		}
	}

	return dc.SavePNG(path)
}

func renderSheetSVG(path string, items []SheetItem, thumbs []*image.RGBA, layout sheetLayout, opts SheetOptions) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderSheetSVGToWriter(file, items, thumbs, layout, opts)
}

func renderSheetSVGToWriter(w io.Writer, items []SheetItem, thumbs []*image.RGBA, layout sheetLayout, opts SheetOptions) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", sheetCSS(sheetBackdrop)))
	canvas.Roundrect(16, 16, layout.Width-32, layout.Header-24, 10, 10, fmt.Sprintf("fill:%s", sheetCSS(sheetHeaderBG)))

	canvas.Text(32, 40, opts.Title,
		fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", sheetCSS(sheetText)))
	for i, line := range opts.Summary {
		canvas.Text(32, 58+18*i, line,
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", sheetCSS(sheetSubtle)))
	}

	for i, item := range items {
		x, y := layout.cellOrigin(i)
		if thumbs[i] != nil {
			uri, err := pngDataURI(thumbs[i])
			if err != nil {
				return fmt.Errorf("encoding %s: %w", item.ID, err)
			}
			canvas.Image(x, y, layout.CellPx, layout.CellPx, uri)
		} else {
			canvas.Roundrect(x, y, layout.CellPx, layout.CellPx, 8, 8,
				fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", sheetCSS(sheetCellBG), sheetCSS(sheetStroke)))
			canvas.Text(x+layout.CellPx/2, y+layout.CellPx/2, "not loaded",
				fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;text-anchor:middle", sheetCSS(sheetSubtle)))
		}

		canvas.Text(x, y+layout.CellPx+16, item.ID,
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", sheetCSS(sheetText)))
		if item.Author != "" {
			canvas.Text(x, y+layout.CellPx+32, truncateLabel(item.Author, layout.CellPx/7),
				fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", sheetCSS(sheetSubtle)))
		}
	}

	canvas.End()
	return nil
}

// pngDataURI encodes img as an inline data URI for SVG embedding.
func pngDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func sheetCSS(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func truncateLabel(s string, max int) string {
	if max < 4 {
		max = 4
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
