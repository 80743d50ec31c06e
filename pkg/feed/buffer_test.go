package feed_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vanderheijden86/reel/pkg/feed"
	"github.com/vanderheijden86/reel/pkg/feed/feedtest"
)

var errBoom = errors.New("boom")

// waitUntil polls cond until it holds or the timeout expires.
func waitUntil(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type refillResult struct {
	added int
	err   error
}

func refillNotify() (chan refillResult, func(int, error)) {
	ch := make(chan refillResult, 16)
	return ch, func(added int, err error) {
		ch <- refillResult{added: added, err: err}
	}
}

func waitRefill(t *testing.T, ch chan refillResult) refillResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refill completion")
		return refillResult{}
	}
}

func TestBufferTakeEmptyNeverBlocks(t *testing.T) {
	src := &feedtest.ScriptedSource{}
	ch, notify := refillNotify()
	b := feed.NewBuffer(src, 20, 5, notify)

	done := make(chan []feed.Descriptor, 1)
	go func() { done <- b.Take(5) }()

	select {
	case got := <-done:
		if len(got) != 0 {
			t.Fatalf("Take on empty buffer returned %d descriptors, want 0", len(got))
		}
	case <-time.After(time.Second):
		t.Fatal("Take blocked on empty buffer")
	}

	// Empty is at the low-water mark, so the take kicked off a refill.
	r := waitRefill(t, ch)
	if r.err != nil || r.added != 20 {
		t.Errorf("refill result = (%d, %v), want (20, nil)", r.added, r.err)
	}
}

func TestBufferRefillTopsUpToCapacity(t *testing.T) {
	src := &feedtest.ScriptedSource{}
	ch, notify := refillNotify()
	b := feed.NewBuffer(src, 20, 5, notify)

	if !b.Refill() {
		t.Fatal("Refill() = false, want true")
	}
	waitRefill(t, ch)

	if got := b.Len(); got != 20 {
		t.Errorf("Len() = %d, want 20", got)
	}
	if counts := src.Counts(); len(counts) != 1 || counts[0] != 20 {
		t.Errorf("fetch counts = %v, want [20]", counts)
	}
}

func TestBufferTakeMarksServedFIFO(t *testing.T) {
	src := &feedtest.ScriptedSource{}
	ch, notify := refillNotify()
	b := feed.NewBuffer(src, 20, 5, notify)
	b.Refill()
	waitRefill(t, ch)

	got := b.Take(3)
	if len(got) != 3 {
		t.Fatalf("Take(3) returned %d", len(got))
	}
	want := []string{"img-0001", "img-0002", "img-0003"}
	for i, d := range got {
		if d.ID != want[i] {
			t.Errorf("got[%d].ID = %s, want %s (FIFO order)", i, d.ID, want[i])
		}
		if !b.Served(d.ID) {
			t.Errorf("Served(%s) = false after take", d.ID)
		}
	}
	if got := b.ServedCount(); got != 3 {
		t.Errorf("ServedCount() = %d, want 3", got)
	}
	if got := b.Len(); got != 17 {
		t.Errorf("Len() = %d, want 17", got)
	}
}

func TestBufferLowWaterSingleRefill(t *testing.T) {
	gate := make(chan struct{})
	src := &feedtest.ScriptedSource{Gate: gate}
	ch, notify := refillNotify()
	b := feed.NewBuffer(src, 20, 5, notify)

	b.Refill()
	gate <- struct{}{} // release the priming fetch
	waitRefill(t, ch)
	if b.Len() != 20 {
		t.Fatalf("primed Len() = %d, want 20", b.Len())
	}

	// Drain in threes of five: the third take leaves 5 remaining, at the
	// low-water mark, and must start exactly one refill.
	b.Take(5)
	b.Take(5)
	b.Take(5)
	waitUntil(t, time.Second, "refill to start", func() bool {
		return b.RefillInFlight() && src.Calls() == 2
	})

	// More takes while the refill is held open must not start another.
	if got := b.Take(3); len(got) != 3 {
		t.Fatalf("Take(3) = %d descriptors", len(got))
	}
	if got := b.Take(5); len(got) != 2 {
		t.Fatalf("Take(5) on 2 remaining = %d descriptors", len(got))
	}
	if calls := src.Calls(); calls != 2 {
		t.Fatalf("source calls while refill in flight = %d, want 2", calls)
	}

	gate <- struct{}{} // release the second fetch
	r := waitRefill(t, ch)
	if r.err != nil {
		t.Fatalf("refill failed: %v", r.err)
	}

	// Target was chosen when the refill started: capacity 20 - 5 remaining.
	if counts := src.Counts(); counts[1] != 15 {
		t.Errorf("refill target = %d, want 15", counts[1])
	}
	if src.Calls() != 2 {
		t.Errorf("source calls = %d, want 2", src.Calls())
	}
	if src.Overlapped() {
		t.Error("two fetches overlapped")
	}
	if got := b.ServedCount(); got != 20 {
		t.Errorf("ServedCount() = %d, want 20", got)
	}
}

func TestBufferDupesFiltered(t *testing.T) {
	src := &feedtest.FixedSource{Items: feedtest.Descriptors("pic", 10)}
	ch, notify := refillNotify()
	b := feed.NewBuffer(src, 10, 2, notify)

	b.Refill()
	if r := waitRefill(t, ch); r.added != 10 {
		t.Fatalf("first refill added %d, want 10", r.added)
	}
	if got := b.Take(10); len(got) != 10 {
		t.Fatalf("Take(10) = %d", len(got))
	}

	// The source replays the same items; all are already served.
	b.Refill()
	if r := waitRefill(t, ch); r.added != 0 || r.err != nil {
		t.Fatalf("replay refill = (%d, %v), want (0, nil)", r.added, r.err)
	}
	if got := b.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0 (dupes filtered)", got)
	}
	if st := b.Stats(); st.DupDropped != 10 {
		t.Errorf("DupDropped = %d, want 10", st.DupDropped)
	}
}

func TestBufferRefillFailureKeepsContents(t *testing.T) {
	src := &feedtest.ScriptedSource{Errs: []error{nil, errBoom}}
	ch, notify := refillNotify()
	b := feed.NewBuffer(src, 20, 5, notify)

	b.Refill()
	waitRefill(t, ch)
	b.Take(15) // leaves 5, triggers the failing refill

	r := waitRefill(t, ch)
	if !errors.Is(r.err, errBoom) {
		t.Fatalf("refill error = %v, want errBoom", r.err)
	}
	if got := b.Len(); got != 5 {
		t.Errorf("Len() after failed refill = %d, want 5", got)
	}
	if b.RefillInFlight() {
		t.Error("refill flag still set after failure")
	}
	if st := b.Stats(); st.RefillFailures != 1 {
		t.Errorf("RefillFailures = %d, want 1", st.RefillFailures)
	}

	// The flag cleared, so a re-issued refill goes through.
	if !b.Refill() {
		t.Fatal("Refill() after failure = false, want true")
	}
	if r := waitRefill(t, ch); r.err != nil {
		t.Fatalf("re-issued refill failed: %v", r.err)
	}
	if got := b.Len(); got != 20 {
		t.Errorf("Len() after recovery = %d, want 20", got)
	}
}

func TestBufferRefillNoOpWhenFull(t *testing.T) {
	src := &feedtest.ScriptedSource{}
	ch, notify := refillNotify()
	b := feed.NewBuffer(src, 20, 5, notify)
	b.Refill()
	waitRefill(t, ch)

	b.Refill()
	if r := waitRefill(t, ch); r.added != 0 || r.err != nil {
		t.Fatalf("full-buffer refill = (%d, %v), want (0, nil)", r.added, r.err)
	}
	if got := src.Calls(); got != 1 {
		t.Errorf("source calls = %d, want 1 (no fetch for a full buffer)", got)
	}
}

func TestBufferRefillWhileInFlightReturnsFalse(t *testing.T) {
	gate := make(chan struct{})
	src := &feedtest.ScriptedSource{Gate: gate}
	ch, notify := refillNotify()
	b := feed.NewBuffer(src, 20, 5, notify)

	if !b.Refill() {
		t.Fatal("first Refill() = false")
	}
	if b.Refill() {
		t.Error("second Refill() = true while one is in flight")
	}
	gate <- struct{}{}
	waitRefill(t, ch)
}
