package feed

import (
	"fmt"
	"time"
)

// EventKind discriminates engine events.
type EventKind int

const (
	// EventStateChanged fires on every controller state transition.
	EventStateChanged EventKind = iota
	// EventAppended fires after a demand mounted new units.
	EventAppended
	// EventRefilled fires when a background refill lands descriptors.
	EventRefilled
	// EventEvicted fires after eviction unmounted units.
	EventEvicted
	// EventUnitReady fires when the sink reports a unit loaded.
	EventUnitReady
	// EventUnitFailed fires when the sink reports a unit failed; the unit
	// has already been removed from the window.
	EventUnitFailed
	// EventHalted fires once when the controller gives up for the session.
	EventHalted
)

// String returns the event name used in the feed log.
func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventAppended:
		return "appended"
	case EventRefilled:
		return "refilled"
	case EventEvicted:
		return "evicted"
	case EventUnitReady:
		return "unit_ready"
	case EventUnitFailed:
		return "unit_failed"
	case EventHalted:
		return "halted"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is one engine notification. Only the fields relevant to Kind are
// set. Consumers drain Events() and typically just re-render; the stats
// overlay and the feed log read the details.
type Event struct {
	Kind  EventKind
	State State
	// Count is the number of units appended, refilled or evicted.
	Count int
	// ID is the unit concerned, for unit events.
	ID string
	// Attempt and ResumeAt describe a backoff transition.
	Attempt  int
	ResumeAt time.Time
	// Reason and Err describe a halt.
	Reason HaltReason
	Err    error
}
