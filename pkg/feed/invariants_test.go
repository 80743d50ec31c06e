package feed_test

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/reel/pkg/feed"
	"github.com/vanderheijden86/reel/pkg/feed/feedtest"
)

// TestStreamInvariants drives random schedules of demands, scrolls and unit
// completions against a healthy source and checks the session invariants
// after every step: no duplicate mounts, no overlapping fetches, window
// offsets nondecreasing, window contents always a subset of the served set.
func TestStreamInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tun := feed.Tunables{
			SteadyBatch:     rapid.IntRange(1, 8).Draw(rt, "steady"),
			InitialFloor:    rapid.IntRange(1, 10).Draw(rt, "floor"),
			UnitExtent:      100,
			PerRow:          rapid.IntRange(1, 3).Draw(rt, "perRow"),
			BufferCapacity:  rapid.IntRange(8, 30).Draw(rt, "cap"),
			BufferLowWater:  rapid.IntRange(1, 4).Draw(rt, "low"),
			WindowHighWater: rapid.IntRange(3, 25).Draw(rt, "high"),
			EvictDistance:   rapid.IntRange(100, 1500).Draw(rt, "evict"),
		}
		src := &feedtest.ScriptedSource{}
		sink := feedtest.NewRecordingSink()
		c, err := feed.New(feed.Config{
			Source:         src,
			Sink:           sink,
			Tunables:       tun,
			ViewportExtent: rapid.IntRange(0, 2000).Draw(rt, "extent"),
		})
		if err != nil {
			rt.Fatalf("New: %v", err)
		}
		defer c.Stop()

		scroll := 0
		steps := rapid.IntRange(5, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			op := rapid.SampledFrom([]string{"demand", "scroll", "back", "complete", "settle"}).
				Draw(rt, fmt.Sprintf("op%d", i))
			switch op {
			case "demand":
				c.Demand()
			case "scroll":
				scroll += rapid.IntRange(0, 400).Draw(rt, fmt.Sprintf("fwd%d", i))
				c.UpdateScroll(scroll)
			case "back":
				scroll -= rapid.IntRange(0, 300).Draw(rt, fmt.Sprintf("back%d", i))
				if scroll < 0 {
					scroll = 0
				}
				c.UpdateScroll(scroll)
			case "complete":
				sink.CompleteAll(nil)
			case "settle":
				settle(c)
			}
			checkStreamInvariants(rt, c, src, sink)
		}

		settle(c)
		checkStreamInvariants(rt, c, src, sink)
	})
}

// settle waits for any in-flight refill to finish.
func settle(c *feed.Controller) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !c.BufferForTest().RefillInFlight() {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func checkStreamInvariants(rt *rapid.T, c *feed.Controller, src *feedtest.ScriptedSource, sink *feedtest.RecordingSink) {
	if src.Overlapped() {
		rt.Fatalf("two source fetches were in flight at once")
	}
	if c.Halted() {
		rt.Fatalf("controller halted although the source never failed")
	}

	seen := make(map[string]bool)
	for _, id := range sink.MountOrder() {
		if seen[id] {
			rt.Fatalf("unit %s mounted twice in one session", id)
		}
		seen[id] = true
	}

	buf := c.BufferForTest()
	prev := -1
	for _, e := range c.WindowEntries() {
		if !buf.Served(e.ID) {
			rt.Fatalf("window entry %s missing from served set", e.ID)
		}
		if e.Offset < prev {
			rt.Fatalf("window offsets decreasing: %d after %d", e.Offset, prev)
		}
		prev = e.Offset
	}
}
