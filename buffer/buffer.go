// Package buffer implements a growable byte container with a pluggable
// allocator, used by the writer's frame-accumulation buffer and the reader's
// reused work buffer.
package buffer

// Allocator lets a caller install its own allocation strategy (an arena, a
// pool, instrumentation) in place of the default make()-backed one. All
// growth in Buffer routes through it.
type Allocator interface {
	// Alloc returns a new byte slice of length n. If zero is true the
	// returned bytes are guaranteed to be zeroed.
	Alloc(n int, zero bool) []byte
}

type defaultAllocator struct{}

func (defaultAllocator) Alloc(n int, _ bool) []byte {
	// make() always zeroes in Go, so the zero flag is a no-op here; it's
	// threaded through so a pooling Allocator can skip zeroing when its
	// caller doesn't need it.
	return make([]byte, n)
}

// DefaultAllocator is the allocator used when none is supplied to New.
var DefaultAllocator Allocator = defaultAllocator{}

// Buffer is a growable, contiguous byte store. It is not safe for concurrent
// use; callers serialize access the same way the writer and reader do for
// their own work buffers.
type Buffer struct {
	alloc Allocator
	data  []byte
	size  int
}

// New returns a Buffer with at least the given initial capacity.
func New(capacity int, alloc Allocator) *Buffer {
	if alloc == nil {
		alloc = DefaultAllocator
	}
	b := &Buffer{alloc: alloc}
	if capacity > 0 {
		b.data = alloc.Alloc(capacity, false)[:0]
	}
	return b
}

// Reserve ensures capacity for at least n bytes, growing the backing slice
// (doubling it, or rounding up to n if that's larger) when needed. It never
// changes Size.
func (b *Buffer) Reserve(n int) {
	if b == nil || n <= cap(b.data) {
		return
	}
	newCap := cap(b.data) * 2
	if newCap < n {
		newCap = n
	}
	grown := b.alloc.Alloc(newCap, false)[:b.size]
	copy(grown, b.data[:b.size])
	b.data = grown
}

// Resize sets the logical size to n, growing the allocation as required.
// Bytes beyond what has previously been written are unspecified; callers
// must not read past what they themselves wrote.
func (b *Buffer) Resize(n int) {
	if b == nil {
		return
	}
	b.Reserve(n)
	if n > cap(b.data) {
		n = cap(b.data)
	}
	b.data = b.data[:n]
	b.size = n
}

// Push appends src to the buffer, growing as needed.
func (b *Buffer) Push(src []byte) {
	if b == nil || len(src) == 0 {
		return
	}
	b.Reserve(b.size + len(src))
	b.data = b.data[:b.size+len(src)]
	copy(b.data[b.size:], src)
	b.size += len(src)
}

// Reset sets the logical size back to zero, retaining the allocation.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.size = 0
	b.data = b.data[:0]
}

// Data returns the logical contents of the buffer. The slice is only valid
// until the next mutating call.
func (b *Buffer) Data() []byte {
	if b == nil {
		return nil
	}
	return b.data[:b.size]
}

// Size returns the number of logical bytes currently held.
func (b *Buffer) Size() int {
	if b == nil {
		return 0
	}
	return b.size
}

// Capacity returns the number of bytes the buffer can hold before it must
// grow again.
func (b *Buffer) Capacity() int {
	if b == nil {
		return 0
	}
	return cap(b.data)
}
