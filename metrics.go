package ringbuf

import "go.uber.org/atomic"

// State is the ring's geometry as derived from the relative position of
// head and tail. It is recomputed on every call and never stored.
type State int

const (
	// StateEmpty means nothing is outstanding (head == tail).
	StateEmpty State = iota
	// StateSingleWrap means head has wrapped behind tail (tail > head);
	// only the run between them is free.
	StateSingleWrap
	// StateMultiWrap means tail is behind head (tail < head); the run after
	// head and the run before tail are both candidates.
	StateMultiWrap
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateSingleWrap:
		return "single-wrap"
	case StateMultiWrap:
		return "multi-wrap"
	default:
		return "unknown"
	}
}

// stats counts ring activity. Producer-side counters are written only by
// the acquiring goroutine and consumer-side counters only by the releasing
// one; any goroutine may read them.
type stats struct {
	// producer
	acquires      atomic.Uint64
	acquiredBytes atomic.Uint64
	failures      atomic.Uint64
	invalid       atomic.Uint64
	wraps         atomic.Uint64
	rewinds       atomic.Uint64
	wrapAt        atomic.Int64 // head at the most recent wrap

	// consumer
	releases      atomic.Uint64
	releasedBytes atomic.Uint64
}

func (s *stats) acquired(n int64) {
	s.acquires.Inc()
	s.acquiredBytes.Add(uint64(n))
}

func (s *stats) released(n int64) {
	s.releases.Inc()
	s.releasedBytes.Add(uint64(n))
}

// State returns the current geometry.
func (r *Ring) State() State {
	tail := r.tail.Load()
	head := r.head.Load()
	switch {
	case head == tail:
		return StateEmpty
	case tail > head:
		return StateSingleWrap
	default:
		return StateMultiWrap
	}
}

// Outstanding returns the number of bytes between tail and head, counting
// across a wrap. Bytes skipped at the arena end by a wrap are not counted.
// Read from a third goroutine while the ring is in use, the value is an
// estimate.
func (r *Ring) Outstanding() int {
	tail := r.tail.Load()
	head := r.head.Load()
	var n int64
	switch {
	case head >= tail:
		n = head - tail
	default:
		n = r.stats.wrapAt.Load() - tail + head
	}
	return int(max(0, min(n, r.capacity)))
}

// Utilization returns the ratio of outstanding bytes to capacity
// (0.0 to 1.0). Returns 0.0 if the ring has no capacity.
func (r *Ring) Utilization() float64 {
	if r.capacity == 0 {
		return 0
	}
	return float64(r.Outstanding()) / float64(r.capacity)
}

// Metrics returns a snapshot of ring statistics.
func (r *Ring) Metrics() RingMetrics {
	return RingMetrics{
		Capacity:        r.Capacity(),
		Outstanding:     r.Outstanding(),
		Utilization:     r.Utilization(),
		State:           r.State(),
		Acquires:        r.stats.acquires.Load(),
		AcquiredBytes:   r.stats.acquiredBytes.Load(),
		AcquireFailures: r.stats.failures.Load(),
		InvalidRequests: r.stats.invalid.Load(),
		Wraps:           r.stats.wraps.Load(),
		Rewinds:         r.stats.rewinds.Load(),
		Releases:        r.stats.releases.Load(),
		ReleasedBytes:   r.stats.releasedBytes.Load(),
	}
}

// RingMetrics contains statistical information about a ring.
type RingMetrics struct {
	Capacity        int     // Arena size in bytes
	Outstanding     int     // Bytes acquired and not yet released
	Utilization     float64 // Outstanding / Capacity (0.0-1.0)
	State           State   // Geometry at snapshot time
	Acquires        uint64  // Successful acquisitions
	AcquiredBytes   uint64  // Bytes handed out
	AcquireFailures uint64  // Acquisitions refused for lack of space
	InvalidRequests uint64  // Acquisitions with a non-positive size
	Wraps           uint64  // Acquisitions that continued from offset 0
	Rewinds         uint64  // Wraps of an empty ring that also reset tail
	Releases        uint64  // Released slices
	ReleasedBytes   uint64  // Bytes returned
}
