package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPushGrows(t *testing.T) {
	t.Parallel()

	b := New(4, nil)
	require.Equal(t, 0, b.Size())

	b.Push([]byte("ab"))
	assert.Equal(t, []byte("ab"), b.Data())

	b.Push([]byte("cdefgh"))
	assert.Equal(t, []byte("abcdefgh"), b.Data())
	assert.GreaterOrEqual(t, b.Capacity(), 8)
}

func TestBufferResetRetainsCapacity(t *testing.T) {
	t.Parallel()

	b := New(0, nil)
	b.Push([]byte("hello world"))
	cap0 := b.Capacity()

	b.Reset()
	assert.Equal(t, 0, b.Size())
	assert.Equal(t, cap0, b.Capacity())
}

func TestBufferResize(t *testing.T) {
	t.Parallel()

	b := New(0, nil)
	b.Resize(10)
	assert.Equal(t, 10, b.Size())
	assert.GreaterOrEqual(t, b.Capacity(), 10)

	b.Resize(3)
	assert.Equal(t, 3, b.Size())
}

func TestNilBufferIsNoOp(t *testing.T) {
	t.Parallel()

	var b *Buffer
	assert.Equal(t, 0, b.Size())
	assert.Equal(t, 0, b.Capacity())
	assert.Nil(t, b.Data())
	b.Push([]byte("x"))
	b.Reset()
	b.Resize(4)
}

type countingAllocator struct {
	allocs int
}

func (c *countingAllocator) Alloc(n int, _ bool) []byte {
	c.allocs++
	return make([]byte, n)
}

func TestCustomAllocatorIsUsed(t *testing.T) {
	t.Parallel()

	alloc := &countingAllocator{}
	b := New(2, alloc)
	assert.Equal(t, 1, alloc.allocs)

	b.Push([]byte("abc"))
	assert.Greater(t, alloc.allocs, 1)
}
