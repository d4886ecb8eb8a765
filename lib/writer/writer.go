package writer

import (
	"errors"
	"sync/atomic"

	"github.com/ValentinKolb/loadit/lib/common"
	"github.com/ValentinKolb/loadit/lib/shardstore"
	"github.com/ValentinKolb/loadit/lib/source"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("writer")

// Writer is a forward-only cursor over one instance of the source iterator.
//
// Thread-safety: a Writer is not safe for concurrent use. The Pool guarantees
// that at most one goroutine drives a writer at a time; Position and the
// counters may be read concurrently.
type Writer[T any] struct {
	id      int
	factory source.Factory[T]

	it       source.Iterator[T]
	current  int  // index of the next item it yields
	finished bool // the source was exhausted at current

	position    atomic.Int64 // mirror of current for the scheduler
	opened      atomic.Int64
	productions atomic.Int64
}

// NewWriter creates a writer; the iterator is created on the first production
func NewWriter[T any](id int, factory source.Factory[T]) *Writer[T] {
	return &Writer[T]{id: id, factory: factory}
}

// ID returns the index of the writer inside its pool
func (w *Writer[T]) ID() int { return w.id }

// Position returns the index of the next item the writer would yield
func (w *Writer[T]) Position() int { return int(w.position.Load()) }

// Restarts returns how often the writer had to re-create its iterator.
// The first creation is not a restart.
func (w *Writer[T]) Restarts() int64 { return max(w.opened.Load()-1, 0) }

// Productions returns the number of shards this writer wrote
func (w *Writer[T]) Productions() int64 { return w.productions.Load() }

// IterateAndWriteShard produces the shard starting at start and writes it to store.
// If start lies behind the cursor the iterator is re-created from the beginning.
// When the source runs out the dataset length is finalized in the store.
func (w *Writer[T]) IterateAndWriteShard(start int, store shardstore.IShardStore[T]) ([]T, error) {
	defer func() { w.position.Store(int64(w.current)) }()

	msl := store.MaxShardLength()
	if start < 0 || start%msl != 0 {
		return nil, common.NewError(common.ErrCMisaligned, "shard start %d is not a multiple of %d", start, msl)
	}

	if start < w.current || (w.it == nil && !w.finished) {
		if err := w.restart(); err != nil {
			return nil, err
		}
	}

	// an exhausted source cannot produce anything at or after its end
	if w.finished {
		if n, known := store.Length(); known && start < n {
			return nil, common.NewError(common.ErrCConfiguration, "source ended after %d items, but the length is %d", w.current, n)
		}
		return nil, common.OutOfRange(start)
	}

	for w.current < start {
		_, ok, err := w.it.Next()
		if err != nil {
			return nil, w.fail(start, err)
		}
		if !ok {
			if err := w.exhausted(store); err != nil {
				return nil, err
			}
			return nil, common.OutOfRange(start)
		}
		w.current++
	}

	items := make([]T, 0, msl)
	for len(items) < msl {
		item, ok, err := w.it.Next()
		if err != nil {
			return nil, w.fail(start, err)
		}
		if !ok {
			break
		}
		items = append(items, item)
		w.current++
	}

	if len(items) > 0 {
		if err := store.Write(start, items); err != nil {
			return nil, err
		}
		w.productions.Add(1)
		log.Debugf("writer %d produced shard %d (%d items)", w.id, start, len(items))
	}

	if len(items) < msl {
		if err := w.exhausted(store); err != nil {
			if len(items) == 0 || !errors.Is(err, common.ErrConfiguration) {
				return nil, err
			}
			// the items are valid, indices past them fail when they are read
			log.Warningf("writer %d: %v", w.id, err)
		}
	}
	if len(items) == 0 {
		return nil, common.OutOfRange(start)
	}
	return items, nil
}

// restart closes the current iterator (if any) and creates a fresh one
func (w *Writer[T]) restart() error {
	w.closeIterator()
	w.current = 0
	w.finished = false

	if w.factory == nil {
		return common.NewError(common.ErrCNoSource, "writer %d has no source", w.id)
	}
	it, err := w.factory()
	if err != nil {
		return common.WrapError(common.ErrCProduction, err, "failed to create iterator")
	}
	w.it = it

	if w.opened.Add(1) > 1 {
		log.Debugf("writer %d restarted its iterator", w.id)
	}
	return nil
}

// exhausted marks the end of the source and finalizes the length in the store.
// A different length finalized before means the configured length does not
// match the source, which is reported as a configuration error.
func (w *Writer[T]) exhausted(store shardstore.IShardStore[T]) error {
	w.finished = true
	w.closeIterator()
	err := store.FinalizeLength(w.current)
	if errors.Is(err, common.ErrLengthConflict) {
		known, _ := store.Length()
		return common.WrapError(common.ErrCConfiguration, err, "source ended after %d items, but the length is %d", w.current, known)
	}
	return err
}

// fail drops the iterator so the next production starts over
func (w *Writer[T]) fail(start int, cause error) error {
	log.Warningf("writer %d failed producing shard %d: %v", w.id, start, cause)
	w.closeIterator()
	w.current = 0
	w.finished = false
	return common.WrapError(common.ErrCProduction, cause, "shard %d", start)
}

func (w *Writer[T]) closeIterator() {
	if w.it == nil {
		return
	}
	if err := w.it.Close(); err != nil {
		log.Warningf("writer %d failed to close iterator: %v", w.id, err)
	}
	w.it = nil
}

// Close releases the iterator of the writer
func (w *Writer[T]) Close() {
	w.closeIterator()
}
