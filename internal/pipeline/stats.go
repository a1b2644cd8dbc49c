package pipeline

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// maxLatencySamples bounds memory for long sessions; older samples are
// overwritten.
const maxLatencySamples = 4096

// Stats counts what a session has done. All methods are safe for
// concurrent use.
type Stats struct {
	dispatched       atomic.Uint64
	completed        atomic.Uint64
	failed           atomic.Uint64
	bodies           atomic.Uint64
	rows             atomic.Uint64
	lateRows         atomic.Uint64
	missingIndexMaps atomic.Uint64

	mu        sync.Mutex
	latencies []float64 // milliseconds, ring buffer
	next      int
}

// NewStats returns zeroed counters.
func NewStats() *Stats {
	return &Stats{latencies: make([]float64, 0, 64)}
}

func (s *Stats) recordLatency(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latencies) < maxLatencySamples {
		s.latencies = append(s.latencies, ms)
		return
	}
	s.latencies[s.next] = ms
	s.next = (s.next + 1) % maxLatencySamples
}

// LatencySummary describes the time from dispatch to the last row of a
// frame, in milliseconds.
type LatencySummary struct {
	Count    int     `json:"count"`
	MeanMs   float64 `json:"mean_ms"`
	StdDevMs float64 `json:"stddev_ms"`
	P95Ms    float64 `json:"p95_ms"`
	MaxMs    float64 `json:"max_ms"`
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Dispatched       uint64         `json:"dispatched"`
	Completed        uint64         `json:"completed"`
	Failed           uint64         `json:"failed"`
	InFlight         uint64         `json:"in_flight"`
	Bodies           uint64         `json:"bodies"`
	Rows             uint64         `json:"rows"`
	LateRows         uint64         `json:"late_rows"`
	MissingIndexMaps uint64         `json:"missing_index_maps"`
	Latency          LatencySummary `json:"latency"`
}

// Snapshot returns the current counters and latency summary.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Dispatched:       s.dispatched.Load(),
		Completed:        s.completed.Load(),
		Failed:           s.failed.Load(),
		Bodies:           s.bodies.Load(),
		Rows:             s.rows.Load(),
		LateRows:         s.lateRows.Load(),
		MissingIndexMaps: s.missingIndexMaps.Load(),
	}
	if done := snap.Completed + snap.Failed; snap.Dispatched > done {
		snap.InFlight = snap.Dispatched - done
	}

	s.mu.Lock()
	samples := append([]float64(nil), s.latencies...)
	s.mu.Unlock()
	snap.Latency = summarise(samples)
	return snap
}

func summarise(samples []float64) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	sort.Float64s(samples)
	sum := LatencySummary{
		Count: len(samples),
		P95Ms: stat.Quantile(0.95, stat.Empirical, samples, nil),
		MaxMs: floats.Max(samples),
	}
	if len(samples) == 1 {
		sum.MeanMs = samples[0]
		return sum
	}
	sum.MeanMs, sum.StdDevMs = stat.MeanStdDev(samples, nil)
	return sum
}
