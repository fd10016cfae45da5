package ringbuf

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// acquireAt acquires exactly n bytes and checks where they landed.
func acquireAt(t *testing.T, r *Ring, n, off int) Slice {
	t.Helper()
	s, err := r.Acquire(n)
	require.NoError(t, err, "Acquire(%d)", n)
	require.Equal(t, off, s.Offset(), "Acquire(%d) offset", n)
	require.Equal(t, n, s.Len(), "Acquire(%d) length", n)
	require.True(t, r.BelongsToPool(s))
	return s
}

// acquireUpToAt acquires up to limit bytes and checks the grant.
func acquireUpToAt(t *testing.T, r *Ring, limit, off, n int) Slice {
	t.Helper()
	s, err := r.AcquireUpTo(limit)
	require.NoError(t, err, "AcquireUpTo(%d)", limit)
	require.Equal(t, off, s.Offset(), "AcquireUpTo(%d) offset", limit)
	require.Equal(t, n, s.Len(), "AcquireUpTo(%d) length", limit)
	require.True(t, r.BelongsToPool(s))
	return s
}

func newTestRing(t *testing.T, capacity int, opts ...Option) *Ring {
	t.Helper()
	r, err := New(capacity, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Cleanup)
	return r
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  error
	}{
		{"zero capacity", 0, nil},
		{"small capacity", 16, nil},
		{"odd capacity", 63, nil},
		{"negative capacity", -1, ErrInvalidArgument},
		{"impossible capacity", math.MaxInt / 2, ErrAllocationFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.capacity)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New(%d) error = %v, want %v", tt.capacity, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%d) unexpected error: %v", tt.capacity, err)
			}
			defer r.Cleanup()
			if r.Capacity() != tt.capacity {
				t.Errorf("Capacity() = %d, want %d", r.Capacity(), tt.capacity)
			}
			if r.State() != StateEmpty {
				t.Errorf("State() = %v, want %v", r.State(), StateEmpty)
			}
		})
	}
}

func TestAcquireReleaseWraps(t *testing.T) {
	r := newTestRing(t, 16)

	s := acquireAt(t, r, 4, 0)
	r.Release(s)

	s = acquireAt(t, r, 8, 4)
	r.Release(s)

	s = acquireAt(t, r, 4, 12)
	r.Release(s)

	// head sits at the very end, so this one wraps.
	s = acquireAt(t, r, 8, 0)
	r.Release(s)

	s = acquireAt(t, r, 8, 8)
	r.Release(s)

	require.Equal(t, StateEmpty, r.State())
	require.Equal(t, uint64(1), r.Metrics().Wraps)
}

func TestReleaseAfterFull(t *testing.T) {
	r := newTestRing(t, 16)

	first := acquireAt(t, r, 12, 0)
	second := acquireAt(t, r, 4, 12)
	require.Equal(t, 16, r.Outstanding())

	_, err := r.Acquire(1)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)

	r.Release(first)

	third := acquireAt(t, r, 8, 0)
	r.Release(second)
	r.Release(third)
	require.Equal(t, StateEmpty, r.State())
}

func TestAcquireUpTo(t *testing.T) {
	r := newTestRing(t, 16)

	first := acquireUpToAt(t, r, 12, 0, 12)
	// Only four bytes remain before the end of the arena.
	second := acquireUpToAt(t, r, 8, 12, 4)

	_, err := r.AcquireUpTo(1)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)

	r.Release(first)
	r.Release(second)

	first = acquireUpToAt(t, r, 8, 0, 8)
	// The byte before tail stays free, so the run after head is 7 long.
	second = acquireUpToAt(t, r, 8, 8, 7)

	r.Release(first)
	r.Release(second)
}

func TestTailChasesHead(t *testing.T) {
	r := newTestRing(t, 16)

	first := acquireAt(t, r, 12, 0)
	second := acquireAt(t, r, 4, 12)

	_, err := r.Acquire(1)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)

	r.Release(first)

	// Turns over here; from now on one byte is always held back.
	first = acquireAt(t, r, 8, 0)
	r.Release(second)

	_, err = r.Acquire(8)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)
	second = acquireAt(t, r, 7, 8)

	// tail flips behind head.
	r.Release(first)

	_, err = r.Acquire(8)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)
	first = acquireAt(t, r, 7, 0)

	r.Release(second)

	_, err = r.Acquire(8)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)
	acquireAt(t, r, 7, 7)
}

func TestInvalidSizes(t *testing.T) {
	r := newTestRing(t, 16)

	check := func(state string) {
		t.Helper()
		for _, n := range []int{0, -1, math.MinInt} {
			if _, err := r.Acquire(n); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("%s: Acquire(%d) error = %v, want %v", state, n, err, ErrInvalidArgument)
			}
			if _, err := r.AcquireUpTo(n); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("%s: AcquireUpTo(%d) error = %v, want %v", state, n, err, ErrInvalidArgument)
			}
		}
	}

	check("empty")

	first := acquireAt(t, r, 12, 0)
	check("multi-wrap")

	second := acquireAt(t, r, 4, 12)
	r.Release(first)
	acquireAt(t, r, 4, 0)
	require.Equal(t, StateSingleWrap, r.State())
	check("single-wrap")
	r.Release(second)

	require.Equal(t, uint64(9*2), r.Metrics().InvalidRequests)
}

func TestAcquireLargerThanCapacity(t *testing.T) {
	r := newTestRing(t, 16)

	_, err := r.Acquire(17)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)

	// AcquireUpTo settles for the whole arena instead.
	s := acquireUpToAt(t, r, 17, 0, 16)
	r.Release(s)

	// Also from an empty ring whose cursors sit mid-arena.
	s = acquireAt(t, r, 5, 0)
	r.Release(s)
	_, err = r.Acquire(17)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)
	s = acquireUpToAt(t, r, 100, 0, 16)
	r.Release(s)
}

func TestZeroCapacity(t *testing.T) {
	r := newTestRing(t, 0)

	_, err := r.Acquire(1)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)
	_, err = r.AcquireUpTo(1)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)
	require.Equal(t, float64(0), r.Utilization())
}

func TestEmptyWrapRewindsTail(t *testing.T) {
	r := newTestRing(t, 16)

	s := acquireAt(t, r, 10, 0)
	r.Release(s)

	// Only 6 bytes remain after head and the request ends exactly where
	// the stale tail sits. The ring must not look empty afterwards.
	s = acquireAt(t, r, 10, 0)
	require.Equal(t, StateMultiWrap, r.State())
	require.Equal(t, 10, r.Outstanding())
	require.Equal(t, uint64(1), r.Metrics().Rewinds)

	rest := acquireAt(t, r, 6, 10)
	_, err := r.Acquire(1)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)

	r.Release(s)
	// [10, 16) is still outstanding; the tail-side run is [0, 9).
	next := acquireAt(t, r, 9, 0)
	require.LessOrEqual(t, next.End(), rest.Offset())

	r.Release(rest)
	r.Release(next)
	require.Equal(t, StateEmpty, r.State())
}

func TestAcquireUpToLargestRun(t *testing.T) {
	r := newTestRing(t, 16)

	a := acquireAt(t, r, 6, 0)
	b := acquireAt(t, r, 6, 6)
	r.Release(a)
	// head=12, tail=6: 4 bytes after head, 5 usable before tail.
	c := acquireUpToAt(t, r, 8, 0, 5)
	r.Release(b)
	r.Release(c)

	a = acquireAt(t, r, 5, 5)
	b = acquireAt(t, r, 3, 10)
	r.Release(a)
	// head=13, tail=10: 3 bytes after head, 9 before tail; the full
	// request fits before tail.
	c = acquireUpToAt(t, r, 8, 0, 8)
	r.Release(b)
	r.Release(c)

	a = acquireAt(t, r, 4, 8)
	b = acquireAt(t, r, 1, 12)
	r.Release(a)
	// head=13, tail=12: the request fits after head, so the larger run
	// before tail is left alone.
	c = acquireUpToAt(t, r, 3, 13, 3)
	r.Release(b)
	r.Release(c)
}

func TestAcquireUpToTieGoesToHead(t *testing.T) {
	r := newTestRing(t, 16)

	a := acquireAt(t, r, 5, 0)
	b := acquireAt(t, r, 7, 5)
	r.Release(a)
	// head=12 and tail=5: 4 free after head, 4 usable before tail.
	c := acquireUpToAt(t, r, 10, 12, 4)
	r.Release(b)
	r.Release(c)
}

func TestSingleWrapNeverWrapsAgain(t *testing.T) {
	r := newTestRing(t, 16)

	a := acquireAt(t, r, 8, 0)
	b := acquireAt(t, r, 8, 8)
	r.Release(a)
	c := acquireAt(t, r, 2, 0)
	require.Equal(t, StateSingleWrap, r.State())

	// [2, 7) is free; nothing past tail may be used.
	_, err := r.Acquire(6)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)
	d := acquireUpToAt(t, r, 6, 2, 5)

	_, err = r.AcquireUpTo(1)
	require.ErrorIs(t, err, ErrNoAvailableBuffers)

	r.Release(b)
	r.Release(c)
	r.Release(d)
}

func TestBelongsToPool(t *testing.T) {
	r := newTestRing(t, 16)
	other := newTestRing(t, 16)

	s := acquireAt(t, r, 4, 0)
	foreign := acquireAt(t, other, 4, 0)

	tests := []struct {
		name  string
		slice Slice
		want  bool
	}{
		{"vended", s, true},
		{"zero", Slice{}, false},
		{"other ring", foreign, false},
		{"whole arena", Slice{ring: r, off: 0, n: 16}, true},
		{"empty at end", Slice{ring: r, off: 16, n: 0}, true},
		{"past end", Slice{ring: r, off: 10, n: 7}, false},
		{"negative offset", Slice{ring: r, off: -1, n: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.BelongsToPool(tt.slice); got != tt.want {
				t.Errorf("BelongsToPool(%+v) = %v, want %v", tt.slice, got, tt.want)
			}
		})
	}
}

func TestSliceBytes(t *testing.T) {
	r := newTestRing(t, 16)

	a := acquireAt(t, r, 4, 0)
	b := acquireAt(t, r, 4, 4)

	copy(a.Bytes(), "aaaa")
	copy(b.Bytes(), "bbbb")

	// Appending must not spill into the neighbour.
	grown := append(a.Bytes(), 'x')
	require.Equal(t, "aaaax", string(grown))
	require.Equal(t, "bbbb", string(r.Bytes(b)))
	require.Equal(t, 4, cap(a.Bytes()))

	require.Nil(t, Slice{}.Bytes())
}

func TestReleaseCheck(t *testing.T) {
	r := newTestRing(t, 16, WithReleaseCheck())
	other := newTestRing(t, 16)

	a := acquireAt(t, r, 4, 0)
	b := acquireAt(t, r, 4, 4)

	require.PanicsWithValue(t, "ringbuf: release out of acquisition order", func() { r.Release(b) })

	foreign := acquireAt(t, other, 4, 0)
	require.PanicsWithValue(t, "ringbuf: release of a slice not vended by this ring", func() { r.Release(foreign) })

	require.NotPanics(t, func() {
		r.Release(a)
		r.Release(b)
	})

	// Wrapped slices start at offset 0 rather than at tail.
	c := acquireAt(t, r, 8, 8)
	d := acquireAt(t, r, 4, 0)
	require.NotPanics(t, func() {
		r.Release(c)
		r.Release(d)
	})
}

type recordingAllocator struct {
	GoAllocator
	frees int
}

func (a *recordingAllocator) Free(b []byte) error {
	a.frees++
	return nil
}

func TestCleanup(t *testing.T) {
	alloc := &recordingAllocator{}
	r, err := New(16, WithAllocator(alloc))
	require.NoError(t, err)

	acquireAt(t, r, 4, 0)
	r.Cleanup()

	if r.Capacity() != 0 {
		t.Errorf("Capacity after Cleanup = %d, want 0", r.Capacity())
	}
	if r.State() != StateEmpty {
		t.Errorf("State after Cleanup = %v, want %v", r.State(), StateEmpty)
	}
	if _, err := r.Acquire(1); !errors.Is(err, ErrNoAvailableBuffers) {
		t.Errorf("Acquire after Cleanup error = %v, want %v", err, ErrNoAvailableBuffers)
	}

	r.Cleanup()
	if alloc.frees != 1 {
		t.Errorf("Free called %d times, want 1", alloc.frees)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateEmpty, "empty"},
		{StateSingleWrap, "single-wrap"},
		{StateMultiWrap, "multi-wrap"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
