// Package feedtest provides scripted sources and a recording sink for
// exercising the feed engine without network or terminal.
package feedtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/vanderheijden86/reel/pkg/feed"
)

// ScriptedSource generates fresh descriptors on every call, with optional
// scripted failures and an optional gate for holding fetches open.
//
// The zero value is a source that always succeeds and always has more.
type ScriptedSource struct {
	// Errs is the per-call error script: call i returns Errs[i] when set.
	// Calls beyond the script succeed.
	Errs []error
	// Gate, when non-nil, blocks every Fetch until a value (or close)
	// arrives. Lets tests hold a refill in flight.
	Gate chan struct{}
	// Limit caps the number of descriptors returned per call. Zero means
	// return exactly what was asked for.
	Limit int
	// Prefix namespaces generated IDs. Defaults to "img".
	Prefix string

	mu         sync.Mutex
	serial     int
	calls      int
	counts     []int
	inFlight   int
	overlapped bool
}

// Fetch implements feed.Source.
func (s *ScriptedSource) Fetch(_ context.Context, count int) ([]feed.Descriptor, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.counts = append(s.counts, count)
	s.inFlight++
	if s.inFlight > 1 {
		s.overlapped = true
	}
	var scriptErr error
	if idx < len(s.Errs) {
		scriptErr = s.Errs[idx]
	}
	gate := s.Gate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if scriptErr != nil {
		return nil, scriptErr
	}

	n := count
	if s.Limit > 0 && n > s.Limit {
		n = s.Limit
	}
	s.mu.Lock()
	prefix := s.Prefix
	if prefix == "" {
		prefix = "img"
	}
	out := make([]feed.Descriptor, n)
	for i := range out {
		s.serial++
		id := fmt.Sprintf("%s-%04d", prefix, s.serial)
		out[i] = feed.Descriptor{
			ID:          id,
			URL:         "https://example.test/" + id,
			DownloadURL: "mem://" + id,
			Author:      "Test Author",
			Width:       400,
			Height:      300,
		}
	}
	s.mu.Unlock()
	return out, nil
}

// Calls returns how many times Fetch has been invoked.
func (s *ScriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Counts returns the count argument of every Fetch call in order.
func (s *ScriptedSource) Counts() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.counts))
	copy(out, s.counts)
	return out
}

// Overlapped reports whether two fetches were ever in flight at once.
func (s *ScriptedSource) Overlapped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlapped
}

// FixedSource returns the same leading items on every call, which makes it a
// duplicate generator: anything already served comes back again.
type FixedSource struct {
	Items []feed.Descriptor

	mu    sync.Mutex
	calls int
}

// Fetch implements feed.Source.
func (s *FixedSource) Fetch(_ context.Context, count int) ([]feed.Descriptor, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	n := count
	if n > len(s.Items) {
		n = len(s.Items)
	}
	out := make([]feed.Descriptor, n)
	copy(out, s.Items[:n])
	return out, nil
}

// Calls returns how many times Fetch has been invoked.
func (s *FixedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Descriptors generates n descriptors with IDs prefix-1 .. prefix-n.
func Descriptors(prefix string, n int) []feed.Descriptor {
	out := make([]feed.Descriptor, n)
	for i := range out {
		id := fmt.Sprintf("%s-%d", prefix, i+1)
		out[i] = feed.Descriptor{ID: id, DownloadURL: "mem://" + id}
	}
	return out
}

type handle string

func (h handle) ID() string { return string(h) }

// RecordingSink implements feed.Sink and records every mount and unmount.
// Completion callbacks are held until the test releases them via Complete or
// CompleteAll, so load outcomes happen exactly when the test says so.
type RecordingSink struct {
	mu       sync.Mutex
	order    []string
	dones    map[string]func(error)
	mounted  map[string]bool
	unmounts map[string]int
}

// NewRecordingSink creates an empty recording sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{
		dones:    make(map[string]func(error)),
		mounted:  make(map[string]bool),
		unmounts: make(map[string]int),
	}
}

// Mount implements feed.Sink. The done callback is stored, never invoked
// here.
func (s *RecordingSink) Mount(d feed.Descriptor, done func(error)) feed.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, d.ID)
	s.dones[d.ID] = done
	s.mounted[d.ID] = true
	return handle(d.ID)
}

// Unmount implements feed.Sink. Idempotent; every call is counted.
func (s *RecordingSink) Unmount(h feed.Handle) {
	if h == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := h.ID()
	s.unmounts[id]++
	s.mounted[id] = false
}

// Complete fires the held completion for id with err. Reports whether a
// completion was pending.
func (s *RecordingSink) Complete(id string, err error) bool {
	s.mu.Lock()
	done, ok := s.dones[id]
	delete(s.dones, id)
	s.mu.Unlock()
	if !ok || done == nil {
		return false
	}
	done(err)
	return true
}

// CompleteAll fires every held completion with err and returns how many
// fired.
func (s *RecordingSink) CompleteAll(err error) int {
	s.mu.Lock()
	pending := make([]func(error), 0, len(s.dones))
	for id, done := range s.dones {
		if done != nil {
			pending = append(pending, done)
		}
		delete(s.dones, id)
	}
	s.mu.Unlock()
	for _, done := range pending {
		done(err)
	}
	return len(pending)
}

// MountOrder returns every mounted ID in mount order, including remounts.
func (s *RecordingSink) MountOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// MountCount returns the total number of Mount calls.
func (s *RecordingSink) MountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Mounted reports whether id is currently mounted.
func (s *RecordingSink) Mounted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted[id]
}

// UnmountCount returns how many times id has been unmounted.
func (s *RecordingSink) UnmountCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unmounts[id]
}
