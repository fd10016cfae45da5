// Package ringbuf implements a fixed-capacity, lock-free byte-range
// allocator (ring buffer) for one producer and one consumer.
//
// # Overview
//
// A Ring owns a single contiguous arena and hands out contiguous slices
// of it. Slices are returned in the order they were acquired, and once the
// end of the arena is reached vending continues from the start. This lets
// a producer goroutine pass variable-length byte buffers to a consumer
// goroutine without allocating per message and without locks:
//
//   - Staging encoded records between a decoder and a writer
//   - Batching network payloads ahead of a flusher
//   - Any pipeline stage that frees buffers in arrival order
//
// # Basic Usage
//
//	r, err := ringbuf.New(64 << 10) // 64 KiB arena
//	if err != nil {
//		return err
//	}
//	defer r.Cleanup()
//
//	// Producer
//	s, err := r.Acquire(512)
//	if errors.Is(err, ringbuf.ErrNoAvailableBuffers) {
//		// consumer has not caught up yet; retry later
//	}
//	copy(s.Bytes(), payload)
//	queue <- s
//
//	// Consumer
//	s := <-queue
//	use(s.Bytes())
//	r.Release(s)
//
// AcquireUpTo grants a shorter slice instead of failing when the full size
// is not available as one contiguous run.
//
// # Thread Safety
//
// At most one goroutine may acquire and at most one goroutine may release
// at any time; the two may run in parallel. Several producers or several
// consumers need their own mutual exclusion around the respective calls.
// BelongsToPool and the metrics accessors may be called from anywhere.
//
// # Memory Layout
//
// Two cursors describe the arena: head, just past the newest vended byte,
// and tail, at the oldest outstanding byte. head == tail means the ring is
// empty, so a vend never moves head onto tail: once the ring has wrapped,
// one byte in front of tail always stays free and the usable capacity is
// Capacity()-1.
//
// # Important Notes
//
//   - Release must be called in acquisition order; this is not checked
//     unless the ring was built WithReleaseCheck
//   - Released memory is not zeroed
//   - Slices are invalid after Release and after Cleanup
//   - Acquire never blocks; callers that want to wait must poll
//
// # Metrics and Monitoring
//
//	m := r.Metrics()
//	fmt.Printf("Outstanding: %d of %d bytes\n", m.Outstanding, m.Capacity)
//
//	prometheus.MustRegister(ringbuf.NewCollector("ingest", r))
package ringbuf
