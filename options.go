package ringbuf

import "github.com/go-kit/log"

// Option configures a Ring at construction time.
type Option func(*Ring)

// WithAllocator sets the backing allocator. Defaults to a GoAllocator.
func WithAllocator(a Allocator) Option {
	return func(r *Ring) {
		if a != nil {
			r.alloc = a
		}
	}
}

// WithLogger sets the logger used for lifecycle events. Acquire and
// Release never log.
func WithLogger(l log.Logger) Option {
	return func(r *Ring) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithReleaseCheck makes Release panic when handed a slice that cannot be
// the oldest outstanding one: a slice from another ring, one outside the
// arena, or one that starts neither at the current tail nor at offset 0.
// The check is weak (it cannot see every ordering mistake) and costs one
// extra atomic load per release.
func WithReleaseCheck() Option {
	return func(r *Ring) { r.checkRelease = true }
}
