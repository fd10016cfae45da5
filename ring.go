package ringbuf

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sys/cpu"
)

// Ring carves a single arena into contiguous slices. Exactly one goroutine
// may call Acquire/AcquireUpTo and exactly one may call Release; the two
// may run in parallel. Releases must follow acquisition order.
//
// head is the offset just past the newest vended byte and is written by the
// producer. tail is the offset of the oldest outstanding byte and is written
// by the consumer. head == tail means nothing is outstanding.
type Ring struct {
	head atomic.Int64
	_    cpu.CacheLinePad
	tail atomic.Int64
	_    cpu.CacheLinePad

	buf      []byte
	capacity int64

	alloc        Allocator
	logger       log.Logger
	checkRelease bool

	stats stats
}

// New allocates a capacity-byte arena and returns an empty Ring.
// A zero capacity is allowed; every acquire on such a ring fails.
func New(capacity int, opts ...Option) (*Ring, error) {
	if capacity < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "capacity %d", capacity)
	}

	r := &Ring{
		alloc:  NewGoAllocator(),
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	buf, err := r.alloc.Allocate(capacity)
	if err == nil && len(buf) != capacity {
		_ = r.alloc.Free(buf)
		err = errors.Errorf("allocator returned %d bytes", len(buf))
	}
	if err != nil {
		level.Warn(r.logger).Log("msg", "ring allocation failed", "capacity", capacity, "err", err)
		return nil, &AllocationError{Size: capacity, Err: err}
	}

	r.buf = buf
	r.capacity = int64(capacity)
	level.Debug(r.logger).Log("msg", "ring initialised", "capacity", capacity, "allocator", allocatorName(r.alloc))
	return r, nil
}

// Cleanup hands the arena back to the backing allocator and leaves the
// ring empty with zero capacity. Outstanding slices become invalid.
// Calling Cleanup more than once is harmless.
func (r *Ring) Cleanup() {
	if r.buf != nil {
		if err := r.alloc.Free(r.buf); err != nil {
			level.Warn(r.logger).Log("msg", "failed to free ring arena", "capacity", r.capacity, "err", err)
		}
		level.Debug(r.logger).Log("msg", "ring cleaned up", "capacity", r.capacity)
	}
	r.buf = nil
	r.capacity = 0
	r.head.Store(0)
	r.tail.Store(0)
}

// Capacity returns the arena size in bytes.
func (r *Ring) Capacity() int { return int(r.capacity) }

// Acquire vends exactly n contiguous bytes or fails with
// ErrNoAvailableBuffers. It never waits for space.
func (r *Ring) Acquire(n int) (Slice, error) {
	if n <= 0 {
		r.stats.invalid.Inc()
		return Slice{}, ErrInvalidArgument
	}
	size := int64(n)
	tail := r.tail.Load()
	head := r.head.Load()

	switch {
	case head == tail:
		if size > r.capacity {
			break
		}
		if r.capacity-head >= size {
			return r.vend(head, size), nil
		}
		return r.wrapEmpty(head, tail, size), nil

	case tail > head:
		// Only [head, tail-1) is free; the byte before tail stays unused
		// so that head can never catch up with tail.
		if tail-head-1 >= size {
			return r.vend(head, size), nil
		}

	default:
		if r.capacity-head >= size {
			return r.vend(head, size), nil
		}
		if tail-1 >= size {
			return r.wrap(head, size), nil
		}
	}

	r.stats.failures.Inc()
	return Slice{}, ErrNoAvailableBuffers
}

// AcquireUpTo vends the largest contiguous run of at most limit bytes. It
// fails with ErrNoAvailableBuffers only when not a single byte can be
// vended.
func (r *Ring) AcquireUpTo(limit int) (Slice, error) {
	if limit <= 0 {
		r.stats.invalid.Inc()
		return Slice{}, ErrInvalidArgument
	}
	size := int64(limit)
	tail := r.tail.Load()
	head := r.head.Load()

	switch {
	case head == tail:
		if r.capacity == 0 {
			break
		}
		if r.capacity-head >= size {
			return r.vend(head, size), nil
		}
		return r.wrapEmpty(head, tail, min(size, r.capacity)), nil

	case tail > head:
		if space := tail - head - 1; space > 0 {
			return r.vend(head, min(space, size)), nil
		}

	default:
		headFree := r.capacity - head
		tailFree := tail - 1

		if headFree >= size {
			return r.vend(head, size), nil
		}
		if tailFree >= size {
			return r.wrap(head, size), nil
		}
		if headFree > 0 && headFree >= tailFree {
			return r.vend(head, headFree), nil
		}
		if tailFree > 0 {
			return r.wrap(head, tailFree), nil
		}
	}

	r.stats.failures.Inc()
	return Slice{}, ErrNoAvailableBuffers
}

// vend hands out [head, head+size) and publishes the new head.
func (r *Ring) vend(head, size int64) Slice {
	r.head.Store(head + size)
	r.stats.acquired(size)
	return Slice{ring: r, off: int(head), n: int(size)}
}

// wrap hands out [0, size) while older slices are still outstanding.
func (r *Ring) wrap(head, size int64) Slice {
	r.stats.wrapAt.Store(head)
	r.stats.wraps.Inc()
	r.head.Store(size)
	r.stats.acquired(size)
	return Slice{ring: r, off: 0, n: int(size)}
}

// wrapEmpty hands out [0, size) from an empty ring. If the new head would
// reach the stale tail, tail is rewound to 0 first: the consumer has
// nothing left to release, so it cannot be writing tail concurrently.
func (r *Ring) wrapEmpty(head, tail, size int64) Slice {
	if size >= tail {
		r.tail.Store(0)
		r.stats.rewinds.Inc()
		r.head.Store(size)
		r.stats.acquired(size)
		return Slice{ring: r, off: 0, n: int(size)}
	}
	return r.wrap(head, size)
}

// Release returns s, which must be the oldest outstanding slice, to the
// ring. Releasing out of order, twice, or after Cleanup corrupts the ring.
func (r *Ring) Release(s Slice) {
	if r.checkRelease {
		r.mustBeOldest(s)
	}
	r.tail.Store(int64(s.End()))
	r.stats.released(int64(s.n))
}

func (r *Ring) mustBeOldest(s Slice) {
	if !r.BelongsToPool(s) {
		panic("ringbuf: release of a slice not vended by this ring")
	}
	if tail := r.tail.Load(); int64(s.off) != tail && s.off != 0 {
		panic("ringbuf: release out of acquisition order")
	}
}

// BelongsToPool reports whether s was vended by r and lies inside the
// arena. It may be called from any goroutine.
func (r *Ring) BelongsToPool(s Slice) bool {
	return s.ring == r && s.off >= 0 && s.n >= 0 && int64(s.End()) <= r.capacity
}

// Bytes returns the memory behind s. It is equivalent to s.Bytes().
func (r *Ring) Bytes(s Slice) []byte {
	return s.Bytes()
}
