package sequence

import (
	"errors"
	"math"
	"sync"

	"github.com/ValentinKolb/loadit/lib/common"
)

// unknownLength is the optimistic bound of a part whose length was never needed
const unknownLength = math.MaxInt

type concat[T any] struct {
	parts []Sequence[T]

	mu      sync.Mutex
	lengths []int
}

// Concat chains seqs into one sequence.
//
// Lengths of the parts are only resolved when an index runs past a part,
// so a part that is never fully traversed is never asked for its length.
func Concat[T any](seqs ...Sequence[T]) Sequence[T] {
	lengths := make([]int, len(seqs))
	for i := range lengths {
		lengths[i] = unknownLength
	}
	return &concat[T]{parts: append([]Sequence[T](nil), seqs...), lengths: lengths}
}

func (c *concat[T]) partLength(k int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lengths[k]
}

func (c *concat[T]) resolve(k int) (int, error) {
	if n := c.partLength(k); n != unknownLength {
		return n, nil
	}
	n, err := c.parts[k].Len()
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.lengths[k] = n
	c.mu.Unlock()
	return n, nil
}

func (c *concat[T]) Len() (int, error) {
	total := 0
	for k := range c.parts {
		n, err := c.resolve(k)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (c *concat[T]) Get(i int) (T, error) {
	var zero T
	i, err := Normalize[T](c, i)
	if err != nil {
		return zero, err
	}

	local := i
	for k, part := range c.parts {
		n := c.partLength(k)
		if local < n {
			v, err := part.Get(local)
			if err == nil || n != unknownLength || !errors.Is(err, common.ErrOutOfRange) {
				return v, err
			}
			// the optimistic bound was wrong, the real length tells how far to skip
			if n, err = c.resolve(k); err != nil {
				return zero, err
			}
			if local < n {
				return zero, common.OutOfRange(i)
			}
		}
		local -= n
	}
	return zero, common.OutOfRange(i)
}
