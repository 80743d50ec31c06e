package feed

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vanderheijden86/reel/pkg/debug"
)

// State is the controller's position in its fetch lifecycle.
type State int

const (
	// StateIdle means the controller is waiting for the next demand.
	StateIdle State = iota
	// StateFetching means a demand or a re-issued attempt is being
	// processed.
	StateFetching
	// StateBackoff means a transient failure scheduled a delayed retry.
	StateBackoff
	// StateHalted means the controller gave up for the rest of the session.
	StateHalted
)

// String returns the state name used in logs and the stats overlay.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateBackoff:
		return "backoff"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// HaltReason explains why a controller halted.
type HaltReason int

const (
	// HaltNone means the controller is not halted.
	HaltNone HaltReason = iota
	// HaltRateLimited means the source sent an explicit rate-limit signal.
	HaltRateLimited
	// HaltRetriesExhausted means the transient-retry budget ran out.
	HaltRetriesExhausted
	// HaltInvalidRequest means the source rejected the request outright.
	HaltInvalidRequest
)

// String returns the reason name used in logs and the stats overlay.
func (r HaltReason) String() string {
	switch r {
	case HaltNone:
		return "none"
	case HaltRateLimited:
		return "rate_limited"
	case HaltRetriesExhausted:
		return "retries_exhausted"
	case HaltInvalidRequest:
		return "invalid_request"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Config wires a Controller to its collaborators.
type Config struct {
	// Source supplies descriptors. Required.
	Source Source
	// Sink receives mounted units. Required.
	Sink Sink
	// Tunables configures the pipeline; zero fields use defaults.
	Tunables Tunables
	// ViewportExtent is the initial viewport size in scroll units, used to
	// size the very first batch. Zero falls back to the floor.
	ViewportExtent int
	// EventBuffer is the capacity of the Events channel. Zero means 16.
	EventBuffer int
}

// DefaultEventBuffer is the Events channel capacity when Config leaves it
// zero.
const DefaultEventBuffer = 16

// Controller owns the stream session: it serves demands from the buffer,
// mounts served units into the sink, evicts far-behind units, and reacts to
// refill failures with escalating backoff.
type Controller struct {
	mu   sync.Mutex
	tun  Tunables
	buf  *Buffer
	win  *Window
	sink Sink

	state           State
	attempt         int
	resumeAt        time.Time
	haltReason      HaltReason
	lastErr         error
	rateLimitResume time.Time

	primed         bool
	viewportExtent int
	scrollPos      int
	nextOffset     int
	col            int

	demands        int64
	demandsIgnored int64
	appended       int64
	evicted        int64
	unitFailures   int64

	events chan Event
	done   chan struct{}
	closed bool

	resumeTimer *time.Timer

	// test seams; production uses the real clock
	afterFunc func(time.Duration, func()) *time.Timer
	now       func() time.Time
}

// New creates a controller over the given source and sink. The controller
// starts in StateIdle with an empty buffer; the first demand both serves
// whatever is available (nothing, initially) and kicks off the first refill.
func New(cfg Config) (*Controller, error) {
	if cfg.Source == nil {
		return nil, errors.New("feed: Config.Source is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("feed: Config.Sink is required")
	}
	tun := cfg.Tunables.withDefaults()
	evBuf := cfg.EventBuffer
	if evBuf <= 0 {
		evBuf = DefaultEventBuffer
	}
	c := &Controller{
		tun:            tun,
		sink:           cfg.Sink,
		win:            NewWindow(tun.WindowHighWater, tun.EvictDistance),
		state:          StateIdle,
		viewportExtent: cfg.ViewportExtent,
		events:         make(chan Event, evBuf),
		done:           make(chan struct{}),
		afterFunc:      time.AfterFunc,
		now:            time.Now,
	}
	c.buf = NewBuffer(cfg.Source, tun.BufferCapacity, tun.BufferLowWater, c.refillDone)
	return c, nil
}

// Demand serves one batch from the buffer into the sink. It is the only way
// units enter the stream. The call is synchronous and never fetches from the
// source itself; if the buffer runs low it starts a background refill.
//
// Demands arriving while the controller is not idle are counted and ignored.
func (c *Controller) Demand() {
	var evs []Event
	c.mu.Lock()
	c.demands++
	if c.closed || c.state != StateIdle {
		c.demandsIgnored++
		st := c.state
		c.mu.Unlock()
		debug.Log("controller: demand ignored in state %s", st)
		return
	}
	c.state = StateFetching
	evs = append(evs, Event{Kind: EventStateChanged, State: StateFetching})

	got := c.buf.Take(c.batchLocked())
	for _, d := range got {
		id := d.ID
		h := c.sink.Mount(d, func(err error) { c.unitDone(id, err) })
		c.win.Append(id, c.nextOffsetLocked(), h)
	}
	if len(got) > 0 {
		c.primed = true
		c.appended += int64(len(got))
		evs = append(evs, Event{Kind: EventAppended, State: StateFetching, Count: len(got)})
	}
	evictees := c.evictLocked(&evs)
	c.state = StateIdle
	evs = append(evs, Event{Kind: EventStateChanged, State: StateIdle})
	c.mu.Unlock()

	for _, e := range evictees {
		c.sink.Unmount(e.Handle)
	}
	c.emitAll(evs)
}

// UpdateScroll records the current scroll position and runs an eviction
// pass. Callers throttle this to actual position changes; a repeated
// position is a no-op.
func (c *Controller) UpdateScroll(pos int) {
	var evs []Event
	c.mu.Lock()
	if c.closed || pos == c.scrollPos {
		c.mu.Unlock()
		return
	}
	c.scrollPos = pos
	evictees := c.evictLocked(&evs)
	c.mu.Unlock()

	for _, e := range evictees {
		c.sink.Unmount(e.Handle)
	}
	c.emitAll(evs)
}

// SetViewportExtent updates the viewport size used for initial batch
// sizing. Only matters before the first non-empty demand.
func (c *Controller) SetViewportExtent(extent int) {
	c.mu.Lock()
	c.viewportExtent = extent
	c.mu.Unlock()
}

// Retune applies the knobs that are safe to change mid-session: the steady
// batch size and the eviction distance. Structural knobs (buffer sizing,
// retry schedule, window high-water) keep their session values; changing
// those takes a fresh Controller.
func (c *Controller) Retune(t Tunables) {
	t = t.withDefaults()
	c.mu.Lock()
	c.tun.SteadyBatch = t.SteadyBatch
	c.tun.EvictDistance = t.EvictDistance
	c.win.SetEvictDistance(t.EvictDistance)
	c.mu.Unlock()
	debug.Log("controller: retuned steady=%d evict=%d", t.SteadyBatch, t.EvictDistance)
}

// batchLocked returns the batch size for the next demand. The first batch
// that can actually land content is sized from the viewport; after that the
// steady batch applies.
func (c *Controller) batchLocked() int {
	if c.primed {
		return c.tun.SteadyBatch
	}
	return c.tun.InitialBatch(c.viewportExtent)
}

// nextOffsetLocked assigns the scroll offset for the next appended unit.
// PerRow units share an offset before it advances by one unit extent.
func (c *Controller) nextOffsetLocked() int {
	off := c.nextOffset
	c.col++
	if c.col >= c.tun.PerRow {
		c.col = 0
		c.nextOffset += c.tun.UnitExtent
	}
	return off
}

// evictLocked runs one eviction pass against the current scroll position and
// returns the removed entries for the caller to unmount after unlocking.
func (c *Controller) evictLocked(evs *[]Event) []WindowEntry {
	evictees := c.win.EvictBehind(c.scrollPos)
	if len(evictees) > 0 {
		c.evicted += int64(len(evictees))
		*evs = append(*evs, Event{Kind: EventEvicted, State: c.state, Count: len(evictees)})
	}
	return evictees
}

// unitDone is the completion callback handed to Sink.Mount.
func (c *Controller) unitDone(id string, err error) {
	if err != nil {
		c.unitFailed(id, err)
		return
	}
	c.unitReady(id)
}

func (c *Controller) unitReady(id string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ok := c.win.MarkReady(id)
	c.mu.Unlock()
	if ok {
		c.emit(Event{Kind: EventUnitReady, ID: id})
	}
}

func (c *Controller) unitFailed(id string, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.unitFailures++
	e, ok := c.win.Remove(id)
	c.mu.Unlock()

	if ok {
		c.sink.Unmount(e.Handle)
	}
	debug.Log("controller: unit %s failed: %v", id, err)
	c.emit(Event{Kind: EventUnitFailed, ID: id, Err: err})
}

// refillDone is the buffer's completion callback. Success resets the retry
// budget; failure escalates through backoff toward a halt.
func (c *Controller) refillDone(added int, err error) {
	var evs []Event
	c.mu.Lock()
	if c.closed || c.state == StateHalted {
		c.mu.Unlock()
		return
	}
	switch {
	case err == nil:
		c.attempt = 0
		c.lastErr = nil
		if c.state != StateIdle {
			c.state = StateIdle
			evs = append(evs, Event{Kind: EventStateChanged, State: StateIdle})
		}
		evs = append(evs, Event{Kind: EventRefilled, State: c.state, Count: added})

	case KindOf(err) == ErrRateLimited:
		c.haltLocked(HaltRateLimited, err, &evs)

	case KindOf(err) == ErrInvalidRequest:
		c.haltLocked(HaltInvalidRequest, err, &evs)

	default: // transient
		c.attempt++
		c.lastErr = err
		if c.attempt >= c.tun.MaxAttempts {
			c.haltLocked(HaltRetriesExhausted, err, &evs)
			break
		}
		delay := c.tun.retryDelay(c.attempt)
		c.state = StateBackoff
		c.resumeAt = c.now().Add(delay)
		c.resumeTimer = c.afterFunc(delay, c.resume)
		debug.Log("controller: attempt %d failed, backing off %v: %v", c.attempt, delay, err)
		evs = append(evs, Event{
			Kind:     EventStateChanged,
			State:    StateBackoff,
			Attempt:  c.attempt,
			ResumeAt: c.resumeAt,
			Err:      err,
		})
	}
	c.mu.Unlock()
	c.emitAll(evs)
}

// resume fires when a backoff expires: re-issue the failed refill.
func (c *Controller) resume() {
	c.mu.Lock()
	if c.closed || c.state != StateBackoff {
		c.mu.Unlock()
		return
	}
	c.state = StateFetching
	attempt := c.attempt
	c.resumeTimer = nil
	c.mu.Unlock()

	debug.Log("controller: backoff expired, re-issuing after attempt %d", attempt)
	c.emit(Event{Kind: EventStateChanged, State: StateFetching, Attempt: attempt})
	c.buf.Refill()
}

// haltLocked parks the controller for the rest of the session. Nothing
// leaves StateHalted; a fresh session means a fresh Controller.
func (c *Controller) haltLocked(reason HaltReason, err error, evs *[]Event) {
	c.state = StateHalted
	c.haltReason = reason
	c.lastErr = err
	if t := c.resumeTimer; t != nil {
		t.Stop()
		c.resumeTimer = nil
	}
	if hint := RetryAfterHint(err); hint > 0 {
		c.rateLimitResume = c.now().Add(hint)
	}
	debug.Log("controller: halted (%s): %v", reason, err)
	*evs = append(*evs,
		Event{Kind: EventStateChanged, State: StateHalted, Reason: reason},
		Event{Kind: EventHalted, State: StateHalted, Reason: reason, Err: err},
	)
}

// Stop releases the controller's timer and marks it closed. Idempotent.
// The Events channel is never closed; readers should also select on Done.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	t := c.resumeTimer
	c.resumeTimer = nil
	c.mu.Unlock()

	if t != nil {
		t.Stop()
	}
	close(c.done)
}

// Done is closed once Stop has run.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Events returns the engine notification channel. Sends never block: when
// the channel is full the oldest event is dropped to make room, so slow
// consumers see recent history rather than stalling the engine.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Halted reports whether the controller has given up for the session.
func (c *Controller) Halted() bool {
	return c.State() == StateHalted
}

// WindowEntries returns a copy of the render window in append order.
func (c *Controller) WindowEntries() []WindowEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.win.Entries()
}

// emit sends one event without blocking, dropping the oldest queued event
// if the channel is full.
func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		select {
		case <-c.events:
		default:
		}
		select {
		case c.events <- ev:
		default:
		}
	}
}

func (c *Controller) emitAll(evs []Event) {
	for _, ev := range evs {
		c.emit(ev)
	}
}
