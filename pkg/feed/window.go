package feed

// WindowEntry is one mounted unit tracked by the render window.
type WindowEntry struct {
	// ID is the descriptor ID.
	ID string
	// Offset is the scroll offset recorded when the unit was appended.
	// Offsets never decrease across appends within a session.
	Offset int
	// Handle is the sink's token for the mounted unit.
	Handle Handle
	// Ready is set once the sink reports the unit loaded.
	Ready bool
}

// Window is the bounded set of currently mounted units, ordered by append.
// It is not safe for concurrent use; the Controller guards it with its own
// lock.
type Window struct {
	entries   []WindowEntry
	byID      map[string]int
	highWater int
	evictDist int
}

// NewWindow creates a window that evicts entries more than evictDist behind
// the scroll position once the window holds more than highWater entries.
func NewWindow(highWater, evictDist int) *Window {
	return &Window{
		byID:      make(map[string]int),
		highWater: highWater,
		evictDist: evictDist,
	}
}

// Append adds a mounted unit at the tail.
func (w *Window) Append(id string, offset int, h Handle) {
	w.byID[id] = len(w.entries)
	w.entries = append(w.entries, WindowEntry{ID: id, Offset: offset, Handle: h})
}

// Remove deletes the entry with the given ID, returning it if present.
func (w *Window) Remove(id string) (WindowEntry, bool) {
	i, ok := w.byID[id]
	if !ok {
		return WindowEntry{}, false
	}
	e := w.entries[i]
	w.entries = append(w.entries[:i], w.entries[i+1:]...)
	w.reindex(i)
	delete(w.byID, id)
	return e, true
}

// MarkReady flags the entry as loaded. Reports whether the ID was present.
func (w *Window) MarkReady(id string) bool {
	i, ok := w.byID[id]
	if !ok {
		return false
	}
	w.entries[i].Ready = true
	return true
}

// EvictBehind removes and returns entries that are both more than the
// eviction distance behind scrollPos and in excess of the high-water mark.
// Entries are evicted oldest-first; eviction stops as soon as the window is
// back at the high-water mark or the oldest remaining entry is close enough
// to the viewport.
func (w *Window) EvictBehind(scrollPos int) []WindowEntry {
	var evicted []WindowEntry
	for len(w.entries) > w.highWater {
		head := w.entries[0]
		if scrollPos-head.Offset <= w.evictDist {
			break
		}
		evicted = append(evicted, head)
		w.entries = w.entries[1:]
		delete(w.byID, head.ID)
	}
	if len(evicted) > 0 {
		w.reindex(0)
	}
	return evicted
}

// SetEvictDistance changes the eviction distance for later passes. Entries
// already evicted stay evicted.
func (w *Window) SetEvictDistance(d int) {
	w.evictDist = d
}

// reindex rebuilds byID positions from index from onward.
func (w *Window) reindex(from int) {
	for i := from; i < len(w.entries); i++ {
		w.byID[w.entries[i].ID] = i
	}
}

// Len returns the number of mounted entries.
func (w *Window) Len() int {
	return len(w.entries)
}

// Entries returns a copy of the window contents in append order.
func (w *Window) Entries() []WindowEntry {
	out := make([]WindowEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// IDs returns the entry IDs in append order.
func (w *Window) IDs() []string {
	out := make([]string, len(w.entries))
	for i, e := range w.entries {
		out[i] = e.ID
	}
	return out
}

// Contains reports whether id is currently mounted.
func (w *Window) Contains(id string) bool {
	_, ok := w.byID[id]
	return ok
}
