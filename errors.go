package ringbuf

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument is returned for zero or negative sizes.
	ErrInvalidArgument = errors.New("ringbuf: invalid argument")

	// ErrNoAvailableBuffers is returned when the ring has no contiguous run
	// large enough for the request. Callers may retry once the consumer
	// has released more slices.
	ErrNoAvailableBuffers = errors.New("ringbuf: no available buffers")

	// ErrAllocationFailure is matched by errors returned from New when the
	// backing allocator could not supply the arena.
	ErrAllocationFailure = errors.New("ringbuf: allocation failure")
)

// AllocationError reports a backing allocator failure during New.
// It matches ErrAllocationFailure under errors.Is and unwraps to the
// allocator's own error.
type AllocationError struct {
	Size int
	Err  error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("ringbuf: allocate %d bytes: %v", e.Size, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

func (e *AllocationError) Is(target error) bool { return target == ErrAllocationFailure }
