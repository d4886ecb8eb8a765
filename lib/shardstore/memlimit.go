package shardstore

import (
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"
)

// sizedEntry is a decoded shard together with its encoded size
type sizedEntry[T any] struct {
	items []T
	size  int64
}

// byteLRU is the stores internal decoded shard cache, bounded by the encoded
// size of the shards it holds rather than by their number.
type byteLRU[T any] struct {
	mu    sync.Mutex
	lru   *simplelru.LRU
	limit int64
	used  int64
}

// newByteLRU returns nil for limit <= 0, all methods accept a nil receiver
func newByteLRU[T any](limit int64) *byteLRU[T] {
	if limit <= 0 {
		return nil
	}
	c := &byteLRU[T]{limit: limit}
	// the entry count is unbounded, the byte limit is enforced in add
	c.lru, _ = simplelru.NewLRU(math.MaxInt32, func(_ interface{}, value interface{}) {
		c.used -= value.(*sizedEntry[T]).size
	})
	return c
}

func (c *byteLRU[T]) get(start int) ([]T, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(start)
	if !ok {
		return nil, false
	}
	return v.(*sizedEntry[T]).items, true
}

func (c *byteLRU[T]) add(start int, items []T, size int64) {
	if c == nil || size > c.limit {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Add on an existing key does not fire the eviction callback
	if old, ok := c.lru.Peek(start); ok {
		c.used -= old.(*sizedEntry[T]).size
	}
	c.lru.Add(start, &sizedEntry[T]{items: items, size: size})
	c.used += size

	for c.used > c.limit {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
}

func (c *byteLRU[T]) usedBytes() int64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *byteLRU[T]) purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
