package ringbuf

// Slice is a borrowed view of a contiguous byte range inside a Ring's
// arena. It does not own the memory and cannot free it; the range is
// valid from the Acquire call that produced it until the matching
// Release. The zero Slice belongs to no ring.
type Slice struct {
	ring *Ring
	off  int
	n    int
}

// Offset returns the position of the first byte within the arena.
func (s Slice) Offset() int { return s.off }

// Len returns the number of bytes in the slice.
func (s Slice) Len() int { return s.n }

// End returns the position just past the last byte.
func (s Slice) End() int { return s.off + s.n }

// Bytes returns the slice's memory. The result has its capacity clipped to
// its length, so appending to it never writes into a neighbouring slice.
// It must not be used after the slice is released.
func (s Slice) Bytes() []byte {
	if s.ring == nil {
		return nil
	}
	return s.ring.buf[s.off : s.off+s.n : s.off+s.n]
}
