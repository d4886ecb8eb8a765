package sequence

import (
	"errors"
	"iter"

	"github.com/ValentinKolb/loadit/lib/common"
)

// Sequence is a finite (or lazily sized) random-access collection.
//
// Get fails with common.ErrOutOfRange for indices past the end. Implementations
// may discover their length lazily, so Len can be expensive on first use.
type Sequence[T any] interface {
	Len() (int, error)
	Get(i int) (T, error)
}

// Normalize resolves a negative index against the length of seq.
// Non-negative indices are returned unchanged without calling Len.
func Normalize[T any](seq Sequence[T], i int) (int, error) {
	if i >= 0 {
		return i, nil
	}
	n, err := seq.Len()
	if err != nil {
		return 0, err
	}
	if i+n < 0 {
		return 0, common.OutOfRange(i)
	}
	return i + n, nil
}

// ---- Slice backed sequence ----

type items[T any] []T

func (s items[T]) Len() (int, error) { return len(s), nil }

func (s items[T]) Get(i int) (T, error) {
	if i < 0 {
		i += len(s)
	}
	if i < 0 || i >= len(s) {
		var zero T
		return zero, common.OutOfRange(i)
	}
	return s[i], nil
}

// Of wraps a slice, the slice is not copied
func Of[T any](values ...T) Sequence[T] {
	return items[T](values)
}

// ---- Consumers ----

// All iterates over seq in order until the first out of range index.
// Other errors are yielded once and end the iteration.
func All[T any](seq Sequence[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for i := 0; ; i++ {
			v, err := seq.Get(i)
			if errors.Is(err, common.ErrOutOfRange) {
				return
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// Collect materializes seq into a slice
func Collect[T any](seq Sequence[T]) ([]T, error) {
	var out []T
	for v, err := range All(seq) {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
