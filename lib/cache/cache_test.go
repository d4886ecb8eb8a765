package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingLoader returns key*10 and counts its calls per key
type countingLoader struct {
	mu    sync.Mutex
	calls map[int]int
	delay time.Duration
	fail  atomic.Bool
}

func newCountingLoader() *countingLoader {
	return &countingLoader{calls: make(map[int]int)}
}

func (l *countingLoader) load(key int) (int, error) {
	l.mu.Lock()
	l.calls[key]++
	l.mu.Unlock()

	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.fail.Load() {
		return 0, errors.New("load failed")
	}
	return key * 10, nil
}

func (l *countingLoader) count(key int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[key]
}

func TestGetLoadsOnce(t *testing.T) {
	loader := newCountingLoader()
	c := NewMemoryCache[int](loader.load, Options{Capacity: 4, Label: t.Name()})
	defer c.Close()

	for i := 0; i < 3; i++ {
		v, err := c.Get(2)
		require.NoError(t, err)
		assert.Equal(t, 20, v)
	}
	assert.Equal(t, 1, loader.count(2))
	assert.True(t, c.Contains(2))
}

func TestLRUEviction(t *testing.T) {
	loader := newCountingLoader()
	c := NewMemoryCache[int](loader.load, Options{Capacity: 2, Label: t.Name()})
	defer c.Close()

	for _, key := range []int{0, 4} {
		_, err := c.Get(key)
		require.NoError(t, err)
	}

	// touch 0, so 4 becomes the least recently used entry
	_, err := c.Get(0)
	require.NoError(t, err)

	_, err = c.Get(8)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Contains(0))
	assert.False(t, c.Contains(4), "the least recently used entry must be evicted")
	assert.True(t, c.Contains(8))

	// an evicted entry is loaded again
	v, err := c.Get(4)
	require.NoError(t, err)
	assert.Equal(t, 40, v)
	assert.Equal(t, 2, loader.count(4))
}

func TestFailedLoadIsNotCached(t *testing.T) {
	loader := newCountingLoader()
	loader.fail.Store(true)
	c := NewMemoryCache[int](loader.load, Options{Capacity: 2, Label: t.Name()})
	defer c.Close()

	_, err := c.Get(1)
	assert.Error(t, err)
	assert.False(t, c.Contains(1))
	assert.Equal(t, 0, c.Len())

	loader.fail.Store(false)
	v, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, loader.count(1))
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	loader := newCountingLoader()
	loader.delay = 20 * time.Millisecond
	c := NewMemoryCache[int](loader.load, Options{Capacity: 2, Label: t.Name()})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(3)
			assert.NoError(t, err)
			assert.Equal(t, 30, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, loader.count(3))
}

func TestLoadAsync(t *testing.T) {
	loader := newCountingLoader()
	loader.delay = 5 * time.Millisecond
	c := NewMemoryCache[int](loader.load, Options{Capacity: 8, Workers: 2, Label: t.Name()})
	defer c.Close()

	_, err := c.Get(0)
	require.NoError(t, err)

	c.LoadAsync(0, 1, 2, 2, 3)
	c.LoadAsync(1, 2, 3)
	c.Wait()

	for _, key := range []int{0, 1, 2, 3} {
		assert.True(t, c.Contains(key), "key %d", key)
		assert.Equal(t, 1, loader.count(key), "key %d loaded more than once", key)
	}
}

func TestLoadAsyncWithoutWorkers(t *testing.T) {
	loader := newCountingLoader()
	c := NewMemoryCache[int](loader.load, Options{Capacity: 8, Label: t.Name()})
	defer c.Close()

	c.LoadAsync(1, 2, 3)
	c.Wait()
	assert.Equal(t, 0, c.Len(), "without workers prefetching is disabled")
}

func TestRemoveAndClear(t *testing.T) {
	loader := newCountingLoader()
	c := NewMemoryCache[int](loader.load, Options{Capacity: 8, Label: t.Name()})
	defer c.Close()

	for key := 0; key < 4; key++ {
		_, err := c.Get(key)
		require.NoError(t, err)
	}

	c.Remove(1)
	assert.False(t, c.Contains(1))
	assert.Equal(t, 3, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())

	// the recency heap is cleared as well, eviction keeps working
	for key := 10; key < 20; key++ {
		_, err := c.Get(key)
		require.NoError(t, err)
	}
	assert.Equal(t, 8, c.Len())
}

func TestLoadAsyncAfterClose(t *testing.T) {
	loader := newCountingLoader()
	c := NewMemoryCache[int](loader.load, Options{Capacity: 8, Workers: 2, Label: t.Name()})
	c.Close()

	c.LoadAsync(1, 2)
	c.Wait()
	assert.Equal(t, 0, c.Len())

	v, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 0, c.pending.Size())
	c.Close()
}
