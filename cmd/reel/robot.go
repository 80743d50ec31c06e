package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/reel/pkg/config"
	"github.com/vanderheijden86/reel/pkg/feed"
	"github.com/vanderheijden86/reel/pkg/metrics"
	"github.com/vanderheijden86/reel/pkg/source"
)

// robotSink acknowledges mounts without rendering anything. Robot runs
// measure the supply pipeline, not terminal drawing.
type robotSink struct{}

type robotHandle string

func (h robotHandle) ID() string { return string(h) }

func (robotSink) Mount(d feed.Descriptor, done func(error)) feed.Handle {
	go done(nil)
	return robotHandle(d.ID)
}

func (robotSink) Unmount(feed.Handle) {}

// robotReport is the machine-readable result of a headless run.
type robotReport struct {
	Cycles     int                    `json:"cycles"`
	State      string                 `json:"state"`
	HaltReason string                 `json:"halt_reason,omitempty"`
	LastError  string                 `json:"last_error,omitempty"`
	Demands    int64                  `json:"demands"`
	Ignored    int64                  `json:"demands_ignored"`
	Appended   int64                  `json:"appended"`
	Evicted    int64                  `json:"evicted"`
	WindowLen  int                    `json:"window_len"`
	Buffer     feed.BufferStats       `json:"buffer"`
	Timings    []metrics.TimingStats  `json:"timings,omitempty"`
	Latency    []metrics.Distribution `json:"latency,omitempty"`
}

// runRobot drives the engine without a terminal and prints a JSON stats
// report, for scripted smoke tests against a real source.
func runRobot(cfg config.Config, cycles int) error {
	return robotRun(os.Stdout, cfg, cycles)
}

// robotRun demands, waits for quiescence, scrolls to the window bottom and
// repeats, so steady-state batching, dedup and eviction all get exercised.
func robotRun(w io.Writer, cfg config.Config, cycles int) error {
	src, err := source.New(cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	ctrl, err := feed.New(feed.Config{
		Source:         src,
		Sink:           robotSink{},
		Tunables:       cfg.Tunables(),
		ViewportExtent: 40,
	})
	if err != nil {
		return err
	}
	defer ctrl.Stop()

	for i := 0; i < cycles && !ctrl.Halted(); i++ {
		ctrl.Demand()
		if err := waitQuiescent(ctrl, 30*time.Second); err != nil {
			return err
		}
		if entries := ctrl.WindowEntries(); len(entries) > 0 {
			ctrl.UpdateScroll(entries[len(entries)-1].Offset)
		}
	}

	st := ctrl.Stats()
	report := robotReport{
		Cycles:    cycles,
		State:     st.State.String(),
		Demands:   st.Demands,
		Ignored:   st.DemandsIgnored,
		Appended:  st.Appended,
		Evicted:   st.Evicted,
		WindowLen: st.WindowLen,
		Buffer:    st.Buffer,
		Timings:   metrics.AllTimingStats(),
		Latency:   metrics.AllDistributions(),
	}
	if st.HaltReason != feed.HaltNone {
		report.HaltReason = st.HaltReason.String()
	}
	if st.LastErr != nil {
		report.LastError = st.LastErr.Error()
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// waitQuiescent polls until nothing is in flight: the controller idle or
// halted and no background refill running. Demands are served synchronously
// from the buffer, so the refill flag is what actually signals pending work.
func waitQuiescent(c *feed.Controller, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		st := c.Stats()
		switch st.State {
		case feed.StateHalted:
			return nil
		case feed.StateIdle:
			if !st.Buffer.Refilling {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("engine still busy after %s", timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
