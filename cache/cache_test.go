package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledCache(t *testing.T) {
	t.Parallel()

	c := New(0)
	assert.False(t, c.Enabled())
	assert.False(t, c.Insert(Frame{Index: 1, Data: []byte("x")}))
	_, ok := c.Find(1)
	assert.False(t, ok)
	assert.Zero(t, c.Entries())
	assert.Zero(t, c.MemoryUsage())
}

func TestFindPromotesToMRU(t *testing.T) {
	t.Parallel()

	c := New(3)
	require.True(t, c.Insert(Frame{Index: 1, Data: []byte("a")}))
	require.True(t, c.Insert(Frame{Index: 2, Data: []byte("b")}))
	require.True(t, c.Insert(Frame{Index: 3, Data: []byte("c")}))

	// Touch 1 so it's no longer the least-recently-used.
	_, ok := c.Find(1)
	require.True(t, ok)

	require.True(t, c.Insert(Frame{Index: 4, Data: []byte("d")}))

	_, ok = c.Find(1)
	assert.True(t, ok, "frame 1 was promoted by Find and should survive eviction")
	_, ok = c.Find(2)
	assert.False(t, ok, "frame 2 was least-recently-used and should have been evicted")
}

// TestInsertionOrderEviction checks that with no intervening Find, inserting
// 1,2,3,4 into a capacity-3 cache evicts the *first* inserted frame.
func TestInsertionOrderEviction(t *testing.T) {
	t.Parallel()

	c := New(3)
	for i := uint32(1); i <= 4; i++ {
		require.True(t, c.Insert(Frame{Index: i, Data: []byte{byte(i)}}))
	}

	_, ok := c.Find(1)
	assert.False(t, ok, "frame 1 should have been evicted")

	for i := uint32(2); i <= 4; i++ {
		data, ok := c.Find(i)
		require.True(t, ok)
		assert.Equal(t, []byte{byte(i)}, data)
	}
}

func TestInsertFailsOnDuplicateIndex(t *testing.T) {
	t.Parallel()

	c := New(2)
	require.True(t, c.Insert(Frame{Index: 1, Data: []byte("a")}))
	assert.False(t, c.Insert(Frame{Index: 1, Data: []byte("b")}), "re-inserting the same index must fail")

	data, ok := c.Find(1)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), data, "the original data must be retained, not overwritten")
}

func TestMemoryUsageTracksEviction(t *testing.T) {
	t.Parallel()

	c := New(1)
	require.True(t, c.Insert(Frame{Index: 1, Data: make([]byte, 100)}))
	assert.EqualValues(t, 100, c.MemoryUsage())

	require.True(t, c.Insert(Frame{Index: 2, Data: make([]byte, 50)}))
	assert.EqualValues(t, 50, c.MemoryUsage(), "evicting frame 1 should free its bytes")
	assert.Equal(t, 1, c.Entries())
}
