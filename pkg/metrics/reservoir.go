package metrics

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// reservoirCap is the number of most-recent samples kept per distribution.
// Old samples are overwritten ring-buffer style.
const reservoirCap = 512

// Reservoir keeps a sliding window of recent duration samples so the stats
// overlay can show latency percentiles, not just count/avg/max.
// All methods are thread-safe.
type Reservoir struct {
	mu      sync.Mutex
	name    string
	samples []float64 // milliseconds
	next    int
	total   int64
}

// newReservoir creates a new distribution with the given name.
func newReservoir(name string) *Reservoir {
	return &Reservoir{
		name:    name,
		samples: make([]float64, 0, reservoirCap),
	}
}

// Name returns the distribution name.
func (r *Reservoir) Name() string {
	return r.name
}

// Record adds a single duration sample.
func (r *Reservoir) Record(d time.Duration) {
	if !enabled {
		return
	}
	ms := float64(d.Nanoseconds()) / 1e6

	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if len(r.samples) < reservoirCap {
		r.samples = append(r.samples, ms)
		return
	}
	r.samples[r.next] = ms
	r.next = (r.next + 1) % reservoirCap
}

// Count returns the total number of samples ever recorded, which can exceed
// the number currently retained.
func (r *Reservoir) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Quantile returns the p-quantile (0 <= p <= 1) of the retained samples in
// milliseconds. Returns 0 if no samples have been recorded.
func (r *Reservoir) Quantile(p float64) float64 {
	r.mu.Lock()
	xs := make([]float64, len(r.samples))
	copy(xs, r.samples)
	r.mu.Unlock()

	if len(xs) == 0 {
		return 0
	}
	sort.Float64s(xs)
	return stat.Quantile(p, stat.Empirical, xs, nil)
}

// Snapshot returns the common percentiles in one locked pass.
func (r *Reservoir) Snapshot() Distribution {
	r.mu.Lock()
	xs := make([]float64, len(r.samples))
	copy(xs, r.samples)
	total := r.total
	r.mu.Unlock()

	d := Distribution{Name: r.name, Count: total}
	if len(xs) == 0 {
		return d
	}
	sort.Float64s(xs)
	d.P50Ms = stat.Quantile(0.50, stat.Empirical, xs, nil)
	d.P90Ms = stat.Quantile(0.90, stat.Empirical, xs, nil)
	d.P99Ms = stat.Quantile(0.99, stat.Empirical, xs, nil)
	d.MaxMs = xs[len(xs)-1]
	return d
}

// Reset clears all retained samples.
func (r *Reservoir) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = r.samples[:0]
	r.next = 0
	r.total = 0
}

// Distribution holds a snapshot of latency percentiles.
type Distribution struct {
	Name  string  `json:"name"`
	Count int64   `json:"count"`
	P50Ms float64 `json:"p50_ms"`
	P90Ms float64 `json:"p90_ms"`
	P99Ms float64 `json:"p99_ms"`
	MaxMs float64 `json:"max_ms"`
}

// Global latency distributions.
var (
	SourceFetchDist = newReservoir("source_fetch")
	ImageDecodeDist = newReservoir("image_decode")
)

// AllReservoirs returns all registered distributions.
func AllReservoirs() []*Reservoir {
	return []*Reservoir{
		SourceFetchDist,
		ImageDecodeDist,
	}
}

// AllDistributions returns snapshots for all distributions with data.
func AllDistributions() []Distribution {
	rs := AllReservoirs()
	out := make([]Distribution, 0, len(rs))
	for _, r := range rs {
		if r.Count() > 0 {
			out = append(out, r.Snapshot())
		}
	}
	return out
}
