package ui

import (
	"context"
	"fmt"
	"image"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/vanderheijden86/reel/pkg/feed"
	"github.com/vanderheijden86/reel/pkg/render"
)

// thumbCapPx bounds the cached per-tile thumbnail so a native-resolution
// decode is never pinned in memory. Big enough for contact-sheet export and
// re-tiling after a resize.
const thumbCapPx = 360

// tileHandle is the engine's token for one mounted tile.
type tileHandle struct {
	id string
}

func (h tileHandle) ID() string { return h.id }

// tileCell is the sink-side state of one mounted unit.
type tileCell struct {
	desc  feed.Descriptor
	img   *image.RGBA // fitted thumbnail, nil until loaded
	lines []string    // rendered half-block lines, sized linesW x linesH
	ready bool

	linesW int
	linesH int
}

// tileSink implements feed.Sink for the terminal feed. Mount schedules an
// asynchronous download+decode bounded by a semaphore; the completion
// callback fires outside the sink lock once the tile is renderable.
//
// All methods are safe for concurrent use. View-path reads go through
// Lines/Image, which re-tile lazily when the cell size changed.
type tileSink struct {
	mu    sync.Mutex
	cells map[string]*tileCell

	ctx    context.Context
	loader *render.Loader
	sem    *semaphore.Weighted

	cellW int
	cellH int
}

// newTileSink builds a sink whose decode goroutines are bounded by
// concurrency and cancelled with ctx.
func newTileSink(ctx context.Context, loader *render.Loader, concurrency int64, cellW, cellH int) *tileSink {
	if concurrency < 1 {
		concurrency = 1
	}
	return &tileSink{
		cells:  make(map[string]*tileCell),
		ctx:    ctx,
		loader: loader,
		sem:    semaphore.NewWeighted(concurrency),
		cellW:  cellW,
		cellH:  cellH,
	}
}

// Mount registers the unit and schedules its load. done is invoked exactly
// once from the load goroutine, never synchronously and never under the
// sink lock.
func (s *tileSink) Mount(d feed.Descriptor, done func(error)) feed.Handle {
	s.mu.Lock()
	s.cells[d.ID] = &tileCell{desc: d}
	s.mu.Unlock()

	go s.load(d, done)
	return tileHandle{id: d.ID}
}

// Unmount drops the cell and its cached thumbnail. Idempotent.
func (s *tileSink) Unmount(h feed.Handle) {
	if h == nil {
		return
	}
	s.mu.Lock()
	delete(s.cells, h.ID())
	s.mu.Unlock()
}

// load downloads, decodes and tiles one unit, then reports completion.
func (s *tileSink) load(d feed.Descriptor, done func(error)) {
	if err := s.sem.Acquire(s.ctx, 1); err != nil {
		done(err)
		return
	}
	defer s.sem.Release(1)

	url := d.DownloadURL
	if url == "" {
		url = d.URL
	}
	if url == "" {
		done(fmt.Errorf("descriptor %s has no image URL", d.ID))
		return
	}

	data, err := s.loader.Load(s.ctx, url)
	if err != nil {
		done(fmt.Errorf("loading %s: %w", d.ID, err))
		return
	}
	img, err := render.Decode(data)
	if err != nil {
		done(fmt.Errorf("decoding %s: %w", d.ID, err))
		return
	}
	thumb := render.Fit(img, thumbCapPx, thumbCapPx)

	s.mu.Lock()
	cell, ok := s.cells[d.ID]
	if ok {
		cell.img = thumb
		cell.lines = render.Tile(thumb, s.cellW, s.cellH)
		cell.linesW = s.cellW
		cell.linesH = s.cellH
		cell.ready = true
	}
	s.mu.Unlock()

	// Unmounted while loading: still report success so the engine can
	// finish its bookkeeping; the engine ignores IDs it no longer tracks.
	done(nil)
}

// SetCellSize updates the tile dimensions. Cached lines are invalidated and
// re-rendered lazily on the next Lines call.
func (s *tileSink) SetCellSize(w, h int) {
	s.mu.Lock()
	if w != s.cellW || h != s.cellH {
		s.cellW = w
		s.cellH = h
		for _, c := range s.cells {
			c.lines = nil
		}
	}
	s.mu.Unlock()
}

// CellSize returns the current tile dimensions.
func (s *tileSink) CellSize() (w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cellW, s.cellH
}

// Lines returns the rendered half-block lines for id, re-tiling from the
// cached thumbnail if the cell size changed. ok is false when the unit is
// unknown or not yet loaded; callers draw a placeholder then.
func (s *tileSink) Lines(id string) (lines []string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, present := s.cells[id]
	if !present || !c.ready || c.img == nil {
		return nil, false
	}
	if c.lines == nil || c.linesW != s.cellW || c.linesH != s.cellH {
		c.lines = render.Tile(c.img, s.cellW, s.cellH)
		c.linesW = s.cellW
		c.linesH = s.cellH
	}
	return c.lines, true
}

// Image returns the cached thumbnail for id, for contact-sheet export.
func (s *tileSink) Image(id string) (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, present := s.cells[id]
	if !present || !c.ready || c.img == nil {
		return nil, false
	}
	return c.img, true
}

// Author returns the attribution line for id, empty when unknown.
func (s *tileSink) Author(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, present := s.cells[id]; present {
		return c.desc.Author
	}
	return ""
}

// Descriptor returns the descriptor mounted under id.
func (s *tileSink) Descriptor(id string) (feed.Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, present := s.cells[id]; present {
		return c.desc, true
	}
	return feed.Descriptor{}, false
}

// Len returns the number of mounted cells.
func (s *tileSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cells)
}
