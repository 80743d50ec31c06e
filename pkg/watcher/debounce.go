package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration is used when NewDebouncer is given a non-positive
// duration. Editors often emit several events per save; 300ms coalesces a
// save burst without making reloads feel sluggish.
const DefaultDebounceDuration = 300 * time.Millisecond

// Debouncer coalesces rapid triggers into a single callback invocation.
// Each Trigger resets the timer; the callback of the last Trigger wins.
type Debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timer    *time.Timer
}

// NewDebouncer creates a debouncer with the given duration.
func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &Debouncer{duration: d}
}

// Trigger schedules fn to run after the debounce duration. A pending
// invocation from an earlier Trigger is replaced.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Cancel drops any pending invocation.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Duration returns the debounce duration.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}
