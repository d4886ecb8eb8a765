package cache

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/ValentinKolb/loadit/lib/util"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

var log = logger.GetLogger("cache")

// DefaultCapacity is the entry bound used when a capacity below 1 is given
const DefaultCapacity = 128

// Loader produces the value of a key on a cache miss
type Loader[V any] func(key int) (V, error)

// MemoryCache is a bounded map from shard start to shard contents with
// load-on-miss and background prefetch.
//
//   - Get on a miss calls the loader; concurrent misses for one key share a single load
//   - LoadAsync schedules loads for keys neither cached nor in flight and returns at once
//   - The least recently used entry is evicted once the capacity is exceeded
//   - A failed load leaves no entry behind
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryCache[V any] struct {
	load     Loader[V]
	capacity int

	mu      sync.Mutex
	entries map[int]V
	recency *util.MapHeap[int]
	tick    uint64

	group    singleflight.Group
	pending  *xsync.MapOf[int, struct{}]
	executor *util.Executor

	hits       *metrics.Counter
	misses     *metrics.Counter
	evictions  *metrics.Counter
	loadErrors *metrics.Counter
}

// Options configures a MemoryCache
type Options struct {
	Capacity int    // maximum number of entries (< 1 = DefaultCapacity)
	Workers  int    // background loaders for LoadAsync (0 = LoadAsync is a no-op)
	Label    string // metrics label distinguishing caches of different stores
}

// NewMemoryCache creates a cache over load
func NewMemoryCache[V any](load Loader[V], opts Options) *MemoryCache[V] {
	if opts.Capacity < 1 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Label == "" {
		opts.Label = "default"
	}

	c := &MemoryCache[V]{
		load:     load,
		capacity: opts.Capacity,
		entries:  make(map[int]V, opts.Capacity),
		recency:  util.NewMapHeap[int](),
		pending:  xsync.NewMapOf[int, struct{}](),
	}
	if opts.Workers > 0 {
		c.executor = util.NewExecutor(opts.Workers)
	}

	label := fmt.Sprintf(`{cache=%q}`, opts.Label)
	c.hits = metrics.GetOrCreateCounter("loadit_cache_hits_total" + label)
	c.misses = metrics.GetOrCreateCounter("loadit_cache_misses_total" + label)
	c.evictions = metrics.GetOrCreateCounter("loadit_cache_evictions_total" + label)
	c.loadErrors = metrics.GetOrCreateCounter("loadit_cache_load_errors_total" + label)
	return c
}

// Get returns the value of key, loading it on a miss
func (c *MemoryCache[V]) Get(key int) (V, error) {
	if v, ok := c.lookup(key); ok {
		c.hits.Inc()
		return v, nil
	}
	c.misses.Inc()

	v, err, _ := c.group.Do(strconv.Itoa(key), func() (interface{}, error) {
		// a load that finished just before this one started already inserted it
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := c.load(key)
		if err != nil {
			c.loadErrors.Inc()
			return nil, err
		}
		c.insert(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// LoadAsync schedules background loads for every key that is neither cached
// nor already being prefetched. It never blocks.
func (c *MemoryCache[V]) LoadAsync(keys ...int) {
	if c.executor == nil {
		return
	}

	for _, key := range keys {
		if c.Contains(key) {
			continue
		}
		if _, inFlight := c.pending.LoadOrStore(key, struct{}{}); inFlight {
			continue
		}

		submitted := c.executor.Submit(func() {
			defer c.pending.Delete(key)
			if _, err := c.Get(key); err != nil {
				log.Debugf("prefetch of %d failed: %v", key, err)
			}
		})
		if !submitted {
			c.pending.Delete(key)
		}
	}
}

// Wait blocks until every scheduled prefetch has finished
func (c *MemoryCache[V]) Wait() {
	if c.executor != nil {
		c.executor.Wait()
	}
}

// ---- Entries ----

func (c *MemoryCache[V]) lookup(key int) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	if ok {
		c.tick++
		c.recency.AddItem(key, c.tick)
	}
	return v, ok
}

func (c *MemoryCache[V]) insert(key int, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = v
	c.tick++
	c.recency.AddItem(key, c.tick)

	for len(c.entries) > c.capacity {
		lru, ok := c.recency.PopMin()
		if !ok {
			break
		}
		delete(c.entries, lru.Key)
		c.evictions.Inc()
	}
}

// Contains reports whether key is cached without refreshing its recency
func (c *MemoryCache[V]) Contains(key int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Remove drops key from the cache
func (c *MemoryCache[V]) Remove(key int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.recency.RemoveByKey(key)
}

// Len returns the number of cached entries
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry. Loads in flight still insert their result.
func (c *MemoryCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]V, c.capacity)
	c.recency.Clear()
}

// Close waits for scheduled prefetches and stops the background loaders
func (c *MemoryCache[V]) Close() {
	if c.executor != nil {
		c.executor.Close()
	}
}
