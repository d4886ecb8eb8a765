package writer

import (
	"errors"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/loadit/lib/common"
	"github.com/ValentinKolb/loadit/lib/shardstore"
	"github.com/ValentinKolb/loadit/lib/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// testSource yields 0..n-1. It fails at item failAt (if >= 0) while failures > 0.
type testSource struct {
	n        int
	delay    time.Duration
	failAt   int
	failures atomic.Int64
	opened   atomic.Int64
}

func (s *testSource) factory() source.Factory[int] {
	return source.FromSeq2(func() iter.Seq2[int, error] {
		s.opened.Add(1)
		return func(yield func(int, error) bool) {
			for i := 0; i < s.n; i++ {
				if s.delay > 0 {
					time.Sleep(s.delay)
				}
				if i == s.failAt && s.failures.Load() > 0 {
					s.failures.Add(-1)
					yield(0, errBoom)
					return
				}
				if !yield(i, nil) {
					return
				}
			}
		}
	})
}

func newStore(t *testing.T, msl int) shardstore.IShardStore[int] {
	t.Helper()
	store, err := shardstore.Open[int](t.TempDir(), shardstore.DefaultOptions[int](msl))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWriterSequential(t *testing.T) {
	store := newStore(t, 4)
	src := &testSource{n: 10, failAt: -1}
	w := NewWriter(0, src.factory())
	defer w.Close()

	items, err := w.IterateAndWriteShard(0, store)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, items)
	assert.Equal(t, 4, w.Position())

	_, known := store.Length()
	assert.False(t, known, "length must stay unknown until the source is exhausted")

	items, err = w.IterateAndWriteShard(8, store)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9}, items)

	length, known := store.Length()
	assert.True(t, known)
	assert.Equal(t, 10, length)

	assert.Equal(t, int64(0), w.Restarts())
	assert.Equal(t, int64(2), w.Productions())
	assert.True(t, store.Has(0))
	assert.False(t, store.Has(4), "skipped shards are not written")
}

func TestWriterRestart(t *testing.T) {
	store := newStore(t, 4)
	src := &testSource{n: 10, failAt: -1}
	w := NewWriter(0, src.factory())
	defer w.Close()

	_, err := w.IterateAndWriteShard(4, store)
	require.NoError(t, err)

	items, err := w.IterateAndWriteShard(0, store)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, items)
	assert.Equal(t, int64(1), w.Restarts())
	assert.Equal(t, int64(2), src.opened.Load())

	// after exhaustion a shard behind the end restarts as well
	_, err = w.IterateAndWriteShard(8, store)
	require.NoError(t, err)
	_, err = w.IterateAndWriteShard(4, store)
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.Restarts())
}

func TestWriterOutOfRange(t *testing.T) {
	store := newStore(t, 4)
	src := &testSource{n: 10, failAt: -1}
	w := NewWriter(0, src.factory())
	defer w.Close()

	_, err := w.IterateAndWriteShard(12, store)
	assert.True(t, errors.Is(err, common.ErrOutOfRange), "got %v", err)

	length, known := store.Length()
	assert.True(t, known)
	assert.Equal(t, 10, length)

	// an exhausted writer answers without touching the source
	_, err = w.IterateAndWriteShard(16, store)
	assert.True(t, errors.Is(err, common.ErrOutOfRange), "got %v", err)
	assert.Equal(t, int64(1), src.opened.Load())
}

func TestWriterExhaustedAtShardBoundary(t *testing.T) {
	store := newStore(t, 4)
	src := &testSource{n: 8, failAt: -1}
	w := NewWriter(0, src.factory())
	defer w.Close()

	_, err := w.IterateAndWriteShard(4, store)
	require.NoError(t, err)
	_, known := store.Length()
	assert.False(t, known, "a full last shard does not reveal the end")

	_, err = w.IterateAndWriteShard(8, store)
	assert.True(t, errors.Is(err, common.ErrOutOfRange), "got %v", err)
	length, known := store.Length()
	assert.True(t, known)
	assert.Equal(t, 8, length)
}

func TestWriterMisaligned(t *testing.T) {
	store := newStore(t, 4)
	w := NewWriter(0, (&testSource{n: 10, failAt: -1}).factory())
	defer w.Close()

	_, err := w.IterateAndWriteShard(3, store)
	assert.True(t, errors.Is(err, common.ErrMisaligned), "got %v", err)
}

func TestWriterFailureRestarts(t *testing.T) {
	store := newStore(t, 4)
	src := &testSource{n: 10, failAt: 5}
	src.failures.Store(1)
	w := NewWriter(0, src.factory())
	defer w.Close()

	_, err := w.IterateAndWriteShard(4, store)
	assert.True(t, errors.Is(err, common.ErrProduction), "got %v", err)
	assert.True(t, errors.Is(err, errBoom), "the cause must be wrapped, got %v", err)
	assert.False(t, store.Has(4), "a failed production must not leave a shard")

	items, err := w.IterateAndWriteShard(4, store)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 6, 7}, items)
	assert.Equal(t, int64(1), w.Restarts())
}

func TestWriterWithoutSource(t *testing.T) {
	store := newStore(t, 4)
	w := NewWriter[int](0, nil)

	_, err := w.IterateAndWriteShard(0, store)
	assert.True(t, errors.Is(err, common.ErrNoSource), "got %v", err)
}

func TestWriterLengthBeyondSource(t *testing.T) {
	store := newStore(t, 4)
	require.NoError(t, store.FinalizeLength(20))

	w := NewWriter(0, (&testSource{n: 10, failAt: -1}).factory())
	defer w.Close()

	// the short shard is still written and returned
	items, err := w.IterateAndWriteShard(8, store)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9}, items)

	// starts below the stored length that the source cannot reach
	_, err = w.IterateAndWriteShard(12, store)
	assert.True(t, errors.Is(err, common.ErrConfiguration), "got %v", err)

	fresh := NewWriter(1, (&testSource{n: 10, failAt: -1}).factory())
	defer fresh.Close()
	_, err = fresh.IterateAndWriteShard(16, store)
	assert.True(t, errors.Is(err, common.ErrConfiguration), "got %v", err)

	// past the stored length it is a plain out of range
	_, err = fresh.IterateAndWriteShard(20, store)
	assert.True(t, errors.Is(err, common.ErrOutOfRange), "got %v", err)

	length, _ := store.Length()
	assert.Equal(t, 20, length)
}
