package sequence

import (
	"sort"
	"sync"

	"github.com/ValentinKolb/loadit/lib/common"
)

// band is a range of output indices that round-robins over the same members
type band struct {
	start, end int   // output range [start, end)
	base       int   // offset inside every member at start
	members    []int // indices of the participating sequences, original order
}

type interleave[T any] struct {
	seqs []Sequence[T]

	once  sync.Once
	err   error
	bands []band
	total int
}

// Interleave merges seqs round-robin. Once the shortest remaining sequence
// runs out it drops out and the others continue among themselves, so
// Interleave(A, B) with len(A)=3 and len(B)=5 yields A0 B0 A1 B1 A2 B2 B3 B4.
//
// The lengths of all sequences are resolved on first use.
func Interleave[T any](seqs ...Sequence[T]) Sequence[T] {
	return &interleave[T]{seqs: append([]Sequence[T](nil), seqs...)}
}

func (s *interleave[T]) init() error {
	s.once.Do(func() {
		lengths := make([]int, len(s.seqs))
		active := make([]int, 0, len(s.seqs))
		for k, seq := range s.seqs {
			n, err := seq.Len()
			if err != nil {
				s.err = err
				return
			}
			lengths[k] = n
			active = append(active, k)
		}

		base := 0
		for len(active) > 0 {
			shortest := lengths[active[0]]
			for _, k := range active[1:] {
				shortest = min(shortest, lengths[k])
			}

			if rounds := shortest - base; rounds > 0 {
				s.bands = append(s.bands, band{
					start:   s.total,
					end:     s.total + rounds*len(active),
					base:    base,
					members: append([]int(nil), active...),
				})
				s.total += rounds * len(active)
				base = shortest
			}

			remaining := active[:0]
			for _, k := range active {
				if lengths[k] > base {
					remaining = append(remaining, k)
				}
			}
			active = remaining
		}
	})
	return s.err
}

func (s *interleave[T]) Len() (int, error) {
	if err := s.init(); err != nil {
		return 0, err
	}
	return s.total, nil
}

func (s *interleave[T]) Get(i int) (T, error) {
	var zero T
	if err := s.init(); err != nil {
		return zero, err
	}
	if i < 0 {
		i += s.total
	}
	if i < 0 || i >= s.total {
		return zero, common.OutOfRange(i)
	}

	b := s.bands[sort.Search(len(s.bands), func(k int) bool { return s.bands[k].end > i })]
	offset := i - b.start
	member := b.members[offset%len(b.members)]
	return s.seqs[member].Get(offset/len(b.members) + b.base)
}
