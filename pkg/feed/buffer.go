package feed

import (
	"context"
	"sync"
	"time"

	"github.com/vanderheijden86/reel/pkg/debug"
	"github.com/vanderheijden86/reel/pkg/metrics"
)

// Buffer is the prefetch stage between the source and the controller. It
// holds descriptors that have been fetched but not yet served, remembers the
// ID of everything it ever served, and keeps at most one refill in flight.
//
// All methods are safe for concurrent use.
type Buffer struct {
	mu        sync.Mutex
	src       Source
	queue     []Descriptor
	queued    map[string]struct{}
	served    map[string]struct{}
	refilling bool
	capacity  int
	lowWater  int
	notify    func(added int, err error)

	takes          int64
	refills        int64
	refillFailures int64
	dupDropped     int64
}

// NewBuffer creates a buffer over src. capacity is the refill target,
// lowWater the remaining-size threshold at or below which a take starts a
// background refill. notify, if non-nil, is invoked after every refill
// completes, successfully or not, with the buffer's lock released.
func NewBuffer(src Source, capacity, lowWater int, notify func(added int, err error)) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	if lowWater < 0 || lowWater >= capacity {
		lowWater = capacity / 4
	}
	return &Buffer{
		src:      src,
		queued:   make(map[string]struct{}),
		served:   make(map[string]struct{}),
		capacity: capacity,
		lowWater: lowWater,
		notify:   notify,
	}
}

// Take removes and returns up to n descriptors from the front of the queue.
// It never blocks and never returns an error: an empty buffer yields an
// empty slice. Every returned descriptor is recorded as served before Take
// returns. If the remaining size is at or below the low-water mark and no
// refill is in flight, a background refill starts.
func (b *Buffer) Take(n int) []Descriptor {
	if n <= 0 {
		return nil
	}
	b.mu.Lock()
	k := n
	if k > len(b.queue) {
		k = len(b.queue)
	}
	out := make([]Descriptor, k)
	copy(out, b.queue[:k])
	b.queue = b.queue[k:]
	for _, d := range out {
		b.served[d.ID] = struct{}{}
		delete(b.queued, d.ID)
	}
	b.takes++

	var target int
	start := len(b.queue) <= b.lowWater && !b.refilling && b.src != nil
	if start {
		b.refilling = true
		target = b.capacity - len(b.queue)
	}
	b.mu.Unlock()

	if start {
		debug.Log("buffer: low water (%d left), refilling %d", b.Len(), target)
		go b.refill(target)
	}
	return out
}

// Refill starts a background refill topping the buffer up to capacity,
// unless one is already in flight. It reports whether a refill was started.
// The controller uses it to re-issue the attempt when a backoff expires.
func (b *Buffer) Refill() bool {
	b.mu.Lock()
	if b.refilling || b.src == nil {
		b.mu.Unlock()
		return false
	}
	b.refilling = true
	target := b.capacity - len(b.queue)
	b.mu.Unlock()

	go b.refill(target)
	return true
}

// refill fetches target descriptors, drops anything already served or
// queued, and appends the survivors. It always clears the in-flight flag
// and fires the completion callback, in that order.
func (b *Buffer) refill(target int) {
	if target <= 0 {
		b.finishRefill(0, nil)
		return
	}

	start := time.Now()
	descs, err := b.src.Fetch(context.Background(), target)
	elapsed := time.Since(start)
	metrics.SourceFetch.Record(elapsed)
	metrics.SourceFetchDist.Record(elapsed)

	if err != nil {
		debug.Log("buffer: refill(%d) failed after %v: %v", target, elapsed, err)
		b.finishRefill(0, err)
		return
	}

	b.mu.Lock()
	added := 0
	for _, d := range descs {
		if d.ID == "" {
			continue
		}
		if _, ok := b.served[d.ID]; ok {
			b.dupDropped++
			continue
		}
		if _, ok := b.queued[d.ID]; ok {
			b.dupDropped++
			continue
		}
		b.queue = append(b.queue, d)
		b.queued[d.ID] = struct{}{}
		added++
	}
	b.mu.Unlock()

	debug.Log("buffer: refill(%d) added %d of %d in %v", target, added, len(descs), elapsed)
	b.finishRefill(added, nil)
}

// finishRefill clears the in-flight flag, then notifies. The callback runs
// without the buffer lock held so it may call back into the buffer.
func (b *Buffer) finishRefill(added int, err error) {
	b.mu.Lock()
	b.refilling = false
	b.refills++
	if err != nil {
		b.refillFailures++
	}
	notify := b.notify
	b.mu.Unlock()

	if notify != nil {
		notify(added, err)
	}
}

// Len returns the number of buffered descriptors.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Capacity returns the refill target.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Served reports whether id has ever been served from this buffer.
func (b *Buffer) Served(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.served[id]
	return ok
}

// ServedCount returns the size of the served-identifier set.
func (b *Buffer) ServedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.served)
}

// RefillInFlight reports whether a refill is currently running.
func (b *Buffer) RefillInFlight() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refilling
}

// BufferStats is a snapshot of buffer counters.
type BufferStats struct {
	Len            int   `json:"len"`
	Capacity       int   `json:"capacity"`
	Served         int   `json:"served"`
	Refilling      bool  `json:"refilling"`
	Takes          int64 `json:"takes"`
	Refills        int64 `json:"refills"`
	RefillFailures int64 `json:"refill_failures"`
	DupDropped     int64 `json:"dup_dropped"`
}

// Stats returns a consistent snapshot of the buffer counters.
func (b *Buffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Len:            len(b.queue),
		Capacity:       b.capacity,
		Served:         len(b.served),
		Refilling:      b.refilling,
		Takes:          b.takes,
		Refills:        b.refills,
		RefillFailures: b.refillFailures,
		DupDropped:     b.dupDropped,
	}
}
