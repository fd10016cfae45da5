package ringbuf

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/cpu"
	"modernc.org/memory"
)

// Allocator supplies the single arena a Ring carves slices from.
// Allocate is called once by New and Free once by Cleanup.
type Allocator interface {
	Allocate(size int) ([]byte, error)
	Free(b []byte) error
}

// alignment of the arena start, so that offset 0 begins a cache line.
const alignment = int(unsafe.Sizeof(cpu.CacheLinePad{}))

// GoAllocator allocates arenas on the Go heap. Free is a no-op; the
// garbage collector reclaims the arena once the Ring drops it.
type GoAllocator struct{}

// NewGoAllocator returns the default allocator.
func NewGoAllocator() *GoAllocator { return &GoAllocator{} }

// Allocate returns a cache-line aligned slice of exactly size bytes.
// An impossible size (make panics) is reported as an error.
func (a *GoAllocator) Allocate(size int) (b []byte, err error) {
	if size < 0 {
		return nil, errors.Errorf("negative size %d", size)
	}
	if size == 0 {
		return []byte{}, nil
	}
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, errors.Errorf("go heap: %v", r)
		}
	}()

	buf := make([]byte, size+alignment)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	shift := int((uintptr(alignment) - addr%uintptr(alignment)) % uintptr(alignment))
	return buf[shift : size+shift : size+shift], nil
}

// Free is a no-op.
func (a *GoAllocator) Free([]byte) error { return nil }

// NativeAllocator allocates arenas outside the Go heap using mmap-backed
// pages from modernc.org/memory. Arenas obtained from it are invisible to
// the garbage collector, so they must only ever hold plain bytes, and they
// must be freed explicitly (Ring.Cleanup does this).
//
// NativeAllocator is safe for concurrent use.
type NativeAllocator struct {
	mu    sync.Mutex
	alloc memory.Allocator
}

// NewNativeAllocator returns an allocator backed by modernc.org/memory.
func NewNativeAllocator() *NativeAllocator { return &NativeAllocator{} }

func (a *NativeAllocator) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, errors.Errorf("negative size %d", size)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	b, err := a.alloc.Malloc(size)
	if err != nil {
		return nil, errors.Wrap(err, "native malloc")
	}
	return b, nil
}

func (a *NativeAllocator) Free(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return errors.Wrap(a.alloc.Free(b), "native free")
}

// Close unmaps every page still held by the allocator. Arenas allocated
// from it are invalid afterwards.
func (a *NativeAllocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return errors.Wrap(a.alloc.Close(), "native close")
}

// allocatorName is used in log lines.
func allocatorName(a Allocator) string {
	switch a.(type) {
	case *GoAllocator:
		return "go"
	case *NativeAllocator:
		return "native"
	default:
		return fmt.Sprintf("%T", a)
	}
}
