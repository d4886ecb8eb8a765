package loadit

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/loadit/lib/cache"
	"github.com/ValentinKolb/loadit/lib/common"
	"github.com/ValentinKolb/loadit/lib/sequence"
	"github.com/ValentinKolb/loadit/lib/shardstore"
	"github.com/ValentinKolb/loadit/lib/util"
	"github.com/ValentinKolb/loadit/lib/writer"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("loadit")

// LazySequence gives random access to the output of a forward-only source.
// Items are materialized in shards on disk the first time they are needed.
//
// Thread-safety: all methods are safe for concurrent use.
type LazySequence[T any] struct {
	opts  Options[T]
	store shardstore.IShardStore[T]
	pool  *writer.Pool[T] // nil without a source
	cache *cache.MemoryCache[[]T]

	// -1 until the length is known
	length atomic.Int64
	closed atomic.Bool
}

// New opens (or creates) the shard store at opts.RootDir and returns a lazy
// sequence over it.
func New[T any](opts Options[T]) (*LazySequence[T], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	shardLength, err := resolveShardLength(&opts)
	if err != nil {
		return nil, err
	}

	store, err := shardstore.Open[T](opts.RootDir, shardstore.Options[T]{
		MaxShardLength: shardLength,
		Codec:          opts.Codec,
		Compression:    opts.Compression,
		MemoryLimit:    opts.MemoryLimit,
		Mode:           opts.Mode,
	})
	if err != nil {
		return nil, err
	}

	s := &LazySequence[T]{opts: opts, store: store}
	s.length.Store(-1)

	if opts.Length > 0 {
		if err := store.FinalizeLength(opts.Length); err != nil {
			store.Close()
			if errors.Is(err, common.ErrLengthConflict) {
				return nil, common.WrapError(common.ErrCConfiguration, err, "configured length %d", opts.Length)
			}
			return nil, err
		}
	}
	if n, known := store.Length(); known {
		s.length.Store(int64(n))
	}

	if opts.Source != nil {
		s.pool = writer.NewPool(store, opts.Source, opts.MaxWorkers)
	}
	s.cache = cache.NewMemoryCache[[]T](s.load, cache.Options{
		Capacity: opts.MaxCacheSize,
		Workers:  opts.MaxWorkers - 1,
		Label:    fmt.Sprintf("%x", util.HashString(opts.RootDir, 0)),
	})

	log.Infof("opened lazy sequence at %s (max shard length %d, %d workers)", opts.RootDir, store.MaxShardLength(), opts.MaxWorkers)
	return s, nil
}

// resolveShardLength returns the shard length to create a new store with.
// For an existing store the persisted value is used.
func resolveShardLength[T any](opts *Options[T]) (int, error) {
	var budget int64
	if opts.MaxShardSize != "" {
		var err error
		if budget, err = shardstore.ParseShardSize(opts.MaxShardSize); err != nil {
			return 0, err
		}
	}

	meta, exists, err := shardstore.ReadMeta(opts.RootDir)
	if err != nil {
		return 0, err
	}
	if exists {
		if opts.MaxShardLength > 0 && opts.MaxShardLength != meta.MaxShardLength {
			log.Warningf("store %s exists with max shard length %d, ignoring configured %d", opts.RootDir, meta.MaxShardLength, opts.MaxShardLength)
		}
		if budget > 0 {
			log.Infof("store %s exists, max shard size %s is not estimated again", opts.RootDir, opts.MaxShardSize)
		}
		return meta.MaxShardLength, nil
	}

	switch {
	case opts.MaxShardLength > 0:
		return opts.MaxShardLength, nil
	case budget > 0:
		return shardstore.EstimateShardLength(opts.Source, opts.Codec, budget, opts.EstimateSamples)
	default:
		return 0, common.NewError(common.ErrCConfiguration, "either max shard length or max shard size is required for a new store")
	}
}

// load is the cache loader: disk first, then production
func (s *LazySequence[T]) load(start int) ([]T, error) {
	items, ok, err := s.store.Read(start)
	if err != nil {
		return nil, err
	}
	if ok {
		return items, nil
	}

	if n, known := s.knownLength(); known && start >= n {
		return nil, common.OutOfRange(start)
	}
	if s.pool == nil {
		return nil, common.NewError(common.ErrCNoSource, "shard %d is missing and there is no source to produce it", start)
	}
	return s.pool.Produce(start)
}

// knownLength returns the length if it was finalized, without discovery
func (s *LazySequence[T]) knownLength() (int, bool) {
	if n := s.length.Load(); n >= 0 {
		return int(n), true
	}
	if n, known := s.store.Length(); known {
		s.length.Store(int64(n))
		return n, true
	}
	return 0, false
}

// ---- Sequence ----

// Len returns the dataset length. An unknown length is discovered by producing
// shards at doubling offsets until the source runs out, which never
// terminates for an infinite source.
func (s *LazySequence[T]) Len() (int, error) {
	if n, known := s.knownLength(); known {
		return n, nil
	}

	msl := s.store.MaxShardLength()
	for k := 0; ; k = max(2*k, 1) {
		shard, err := s.cache.Get(k * msl)
		if errors.Is(err, common.ErrOutOfRange) {
			break
		}
		if err != nil {
			return 0, err
		}
		if len(shard) < msl {
			break
		}
	}

	n, known := s.knownLength()
	if !known {
		return 0, common.NewError(common.ErrCInternal, "length of %s is still unknown after probing", s.opts.RootDir)
	}
	log.Debugf("discovered length %d of %s", n, s.opts.RootDir)
	return n, nil
}

// Get returns the item at index i. Negative indices count from the end.
func (s *LazySequence[T]) Get(i int) (T, error) {
	var zero T
	if s.closed.Load() {
		return zero, common.NewError(common.ErrCInternal, "sequence is closed")
	}

	i, err := sequence.Normalize[T](s, i)
	if err != nil {
		return zero, err
	}
	if n, known := s.knownLength(); known && i >= n {
		return zero, common.OutOfRange(i)
	}

	start := util.AlignDown(i, s.store.MaxShardLength())
	s.preload(i, start)

	shard, err := s.cache.Get(start)
	if err != nil {
		if errors.Is(err, common.ErrOutOfRange) {
			return zero, common.OutOfRange(i)
		}
		return zero, err
	}
	if i-start >= len(shard) {
		if n, known := s.knownLength(); known && i < n {
			return zero, common.NewError(common.ErrCConfiguration,
				"index %d is below the length %d, but the source ended after %d items", i, n, start+len(shard))
		}
		return zero, common.OutOfRange(i)
	}
	return shard[i-start], nil
}

// preload schedules the shards proposed by the preload function
func (s *LazySequence[T]) preload(i, current int) {
	if s.opts.MaxWorkers < 2 {
		return
	}
	preload := s.opts.Preload
	if preload == nil {
		preload = DefaultPreload[T]
	}

	msl := s.store.MaxShardLength()
	n, known := s.knownLength()
	seen := map[int]struct{}{current: {}}

	var starts []int
	for _, group := range preload(s, i) {
		for _, idx := range group {
			if idx < 0 || (known && idx >= n) {
				continue
			}
			start := util.AlignDown(idx, msl)
			if _, dup := seen[start]; dup {
				continue
			}
			seen[start] = struct{}{}
			starts = append(starts, start)
		}
	}
	if len(starts) > 0 {
		s.cache.LoadAsync(starts...)
	}
}

// DefaultPreload proposes the next MaxWorkers/2 - 1 shards after the one of idx,
// enough to keep the writers busy during a sequential scan.
func DefaultPreload[T any](seq *LazySequence[T], idx int) [][]int {
	ahead := seq.opts.MaxWorkers/2 - 1
	if ahead < 1 {
		return nil
	}
	msl := seq.MaxShardLength()
	start := util.AlignDown(idx, msl)

	next := make([]int, ahead)
	for k := range next {
		next[k] = start + (k+1)*msl
	}
	return [][]int{next}
}

// ---- Views ----

// Slice returns the view s[start:stop], see sequence.Slice
func (s *LazySequence[T]) Slice(start, stop int) *sequence.View[T] {
	return sequence.Slice[T](s, start, stop)
}

// SliceStep returns the view s[start:stop:step], see sequence.SliceStep
func (s *LazySequence[T]) SliceStep(start, stop, step int) *sequence.View[T] {
	return sequence.SliceStep[T](s, start, stop, step)
}

// Select returns the view of the given indices
func (s *LazySequence[T]) Select(indices []int) *sequence.View[T] {
	return sequence.Select[T](s, indices)
}

// Shuffle returns a chunk shuffled view. A chunk size of 0 uses the shard length,
// a seed of 0 picks a random seed. The length is resolved first.
func (s *LazySequence[T]) Shuffle(chunkSize int, seed uint64) (*sequence.View[T], error) {
	if chunkSize < 1 {
		chunkSize = s.MaxShardLength()
	}
	return sequence.Shuffle[T](s, chunkSize, seed)
}

// ---- Store ----

// Info decodes the user metadata of the store into dst
func (s *LazySequence[T]) Info(dst any) error { return s.store.Info(dst) }

// SetInfo replaces the user metadata of the store
func (s *LazySequence[T]) SetInfo(v any) error { return s.store.SetInfo(v) }

// AllPresent reports whether every shard was materialized. Resolves the length.
func (s *LazySequence[T]) AllPresent() (bool, error) {
	if _, err := s.Len(); err != nil {
		return false, err
	}
	return s.store.AllPresent()
}

// MaxShardLength returns the number of items per shard
func (s *LazySequence[T]) MaxShardLength() int { return s.store.MaxShardLength() }

// Meta returns the persisted store metadata
func (s *LazySequence[T]) Meta() shardstore.Meta { return s.store.Meta() }

// Stats describes the state of a sequence
type Stats struct {
	Length         int           `json:"length"`
	LengthKnown    bool          `json:"length_known"`
	MaxShardLength int           `json:"max_shard_length"`
	CachedShards   int           `json:"cached_shards"`
	Writers        *writer.Stats `json:"writers,omitempty"`
}

// Stats returns a snapshot without resolving the length
func (s *LazySequence[T]) Stats() Stats {
	n, known := s.knownLength()
	stats := Stats{
		Length:         n,
		LengthKnown:    known,
		MaxShardLength: s.store.MaxShardLength(),
		CachedShards:   s.cache.Len(),
	}
	if s.pool != nil {
		ws := s.pool.Stats()
		stats.Writers = &ws
	}
	return stats
}

// Close waits for running prefetches and productions and closes the store
func (s *LazySequence[T]) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cache.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return s.store.Close()
}
