package feed

import "time"

// Defaults for Tunables. The distance-valued defaults (UnitExtent,
// LeadDistance, EvictDistance) are in abstract scroll units; the UI maps them
// to terminal rows via its config before constructing the engine.
const (
	DefaultSteadyBatch     = 6
	DefaultInitialFloor    = 10
	DefaultUnitExtent      = 200
	DefaultPerRow          = 2
	DefaultBufferCapacity  = 20
	DefaultBufferLowWater  = 5
	DefaultLeadDistance    = 1000
	DefaultWindowHighWater = 50
	DefaultEvictDistance   = 2000
	DefaultMaxAttempts     = 3
)

// DefaultRetryDelays is the escalating backoff schedule between failed fetch
// attempts.
var DefaultRetryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// Tunables collects every knob of the engine. The zero value of any field
// means "use the default"; pass Tunables{} for an all-default engine.
type Tunables struct {
	// SteadyBatch is the number of descriptors served per demand once the
	// stream has content.
	SteadyBatch int
	// InitialFloor is the minimum size of the very first batch.
	InitialFloor int
	// UnitExtent is the estimated scroll extent of one content row.
	UnitExtent int
	// PerRow is how many units share one content row.
	PerRow int
	// BufferCapacity is the prefetch buffer's refill target.
	BufferCapacity int
	// BufferLowWater triggers a background refill when the buffer's
	// remaining size drops to or below it.
	BufferLowWater int
	// LeadDistance is how far ahead of the viewport bottom edge the trigger
	// fires, in scroll units. Used by the UI, carried here so one struct
	// configures the whole pipeline.
	LeadDistance int
	// WindowHighWater is the render window size above which eviction kicks
	// in.
	WindowHighWater int
	// EvictDistance is how far behind the scroll position a unit must be
	// before it is evictable.
	EvictDistance int
	// RetryDelays is the backoff schedule; attempts beyond its length reuse
	// the last entry.
	RetryDelays []time.Duration
	// MaxAttempts is the number of consecutive transient failures tolerated
	// before the controller halts.
	MaxAttempts int
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (t Tunables) withDefaults() Tunables {
	if t.SteadyBatch <= 0 {
		t.SteadyBatch = DefaultSteadyBatch
	}
	if t.InitialFloor <= 0 {
		t.InitialFloor = DefaultInitialFloor
	}
	if t.UnitExtent <= 0 {
		t.UnitExtent = DefaultUnitExtent
	}
	if t.PerRow <= 0 {
		t.PerRow = DefaultPerRow
	}
	if t.BufferCapacity <= 0 {
		t.BufferCapacity = DefaultBufferCapacity
	}
	if t.BufferLowWater <= 0 {
		t.BufferLowWater = DefaultBufferLowWater
	}
	if t.BufferLowWater >= t.BufferCapacity {
		t.BufferLowWater = t.BufferCapacity / 2
	}
	if t.LeadDistance <= 0 {
		t.LeadDistance = DefaultLeadDistance
	}
	if t.WindowHighWater <= 0 {
		t.WindowHighWater = DefaultWindowHighWater
	}
	if t.EvictDistance <= 0 {
		t.EvictDistance = DefaultEvictDistance
	}
	if len(t.RetryDelays) == 0 {
		t.RetryDelays = DefaultRetryDelays
	}
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = DefaultMaxAttempts
	}
	return t
}

// InitialBatch sizes the very first batch from the viewport extent: enough
// rows to cover the viewport, times units per row, but never below the
// floor. A non-positive extent falls back to the floor.
func (t Tunables) InitialBatch(viewportExtent int) int {
	t = t.withDefaults()
	if viewportExtent <= 0 {
		return t.InitialFloor
	}
	rows := (viewportExtent + t.UnitExtent - 1) / t.UnitExtent
	n := rows * t.PerRow
	if n < t.InitialFloor {
		n = t.InitialFloor
	}
	return n
}

// retryDelay returns the backoff before retry number attempt (1-based).
// Attempts past the end of the schedule reuse the last delay.
func (t Tunables) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(t.RetryDelays) {
		attempt = len(t.RetryDelays)
	}
	return t.RetryDelays[attempt-1]
}
