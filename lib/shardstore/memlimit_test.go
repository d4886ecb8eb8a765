package shardstore

import (
	"testing"

	"github.com/ValentinKolb/loadit/lib/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteLRUBound(t *testing.T) {
	c := newByteLRU[int](100)

	c.add(0, []int{0}, 40)
	c.add(4, []int{4}, 40)
	assert.Equal(t, int64(80), c.usedBytes())

	c.add(8, []int{8}, 40)
	assert.LessOrEqual(t, c.usedBytes(), int64(100))
	assert.Equal(t, int64(80), c.usedBytes())

	_, ok := c.get(0)
	assert.False(t, ok, "oldest shard must be evicted")
	for _, start := range []int{4, 8} {
		items, ok := c.get(start)
		require.True(t, ok)
		assert.Equal(t, []int{start}, items)
	}
}

func TestByteLRURecency(t *testing.T) {
	c := newByteLRU[int](100)
	c.add(0, []int{0}, 40)
	c.add(4, []int{4}, 40)

	// 0 becomes the most recent entry, 4 is evicted next
	_, ok := c.get(0)
	require.True(t, ok)
	c.add(8, []int{8}, 40)

	_, ok = c.get(4)
	assert.False(t, ok)
	_, ok = c.get(0)
	assert.True(t, ok)
}

func TestByteLRUReplaceAndOversize(t *testing.T) {
	c := newByteLRU[int](100)
	c.add(0, []int{0}, 40)
	c.add(0, []int{1}, 60)
	assert.Equal(t, int64(60), c.usedBytes(), "replacing an entry must not count it twice")

	items, ok := c.get(0)
	require.True(t, ok)
	assert.Equal(t, []int{1}, items)

	c.add(4, []int{4}, 101)
	_, ok = c.get(4)
	assert.False(t, ok, "entries above the limit are never cached")
	assert.Equal(t, int64(60), c.usedBytes())

	c.purge()
	assert.Equal(t, int64(0), c.usedBytes())
}

func TestByteLRUDisabled(t *testing.T) {
	c := newByteLRU[int](0)
	assert.Nil(t, c)

	c.add(0, []int{0}, 1)
	_, ok := c.get(0)
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.usedBytes())
}

func TestStoreMemoryLimit(t *testing.T) {
	const limit = 256
	opts := DefaultOptions[int](4)
	opts.Codec = codec.NewJSONCodec[int]()
	opts.MemoryLimit = limit

	store, err := Open[int](t.TempDir(), opts)
	require.NoError(t, err)
	defer store.Close()
	ds := store.(*diskStore[int])

	for start := 0; start < 400; start += 4 {
		require.NoError(t, store.Write(start, []int{start, start + 1, start + 2, start + 3}))
		assert.LessOrEqual(t, ds.memory.usedBytes(), int64(limit))
	}
	assert.Greater(t, ds.memory.usedBytes(), int64(0))

	_, cached := ds.memory.get(0)
	assert.False(t, cached, "first shard must have been evicted")

	// evicted shards are still served from disk
	items, ok, err := store.Read(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3}, items)
}
