package sequence

import (
	"github.com/ValentinKolb/loadit/lib/common"
)

type repeat[T any] struct {
	seq     Sequence[T]
	repeats int
}

// Repeat cycles through seq. With repeats > 0 the result ends after that many
// passes, with repeats == 0 it is unbounded and Len fails with common.ErrUnbounded.
func Repeat[T any](seq Sequence[T], repeats int) Sequence[T] {
	return &repeat[T]{seq: seq, repeats: max(repeats, 0)}
}

func (r *repeat[T]) Len() (int, error) {
	if r.repeats == 0 {
		return 0, common.NewError(common.ErrCUnbounded, "repeat without a repeat count has no length")
	}
	n, err := r.seq.Len()
	if err != nil {
		return 0, err
	}
	return n * r.repeats, nil
}

func (r *repeat[T]) Get(i int) (T, error) {
	var zero T
	i, err := Normalize[T](r, i)
	if err != nil {
		return zero, err
	}

	n, err := r.seq.Len()
	if err != nil {
		return zero, err
	}
	if n == 0 || (r.repeats > 0 && i/n >= r.repeats) {
		return zero, common.OutOfRange(i)
	}
	return r.seq.Get(i % n)
}
