package sequence

import (
	"math"
	"sync"

	"github.com/ValentinKolb/loadit/lib/common"
)

// Open marks an omitted slice bound, like seq[a:] or seq[:b]
const Open = math.MinInt

// View re-indexes a backing sequence. Creating a view never reads the
// backing sequence; indexing composes the mapping with the backing Get.
type View[T any] struct {
	backing Sequence[T]
	mapping mapping
}

// mapping translates view indices (>= 0) to backing indices
type mapping interface {
	length() (int, error)
	index(i int) (int, error)
}

func (v *View[T]) Len() (int, error) {
	return v.mapping.length()
}

func (v *View[T]) Get(i int) (T, error) {
	var zero T
	i, err := Normalize[T](v, i)
	if err != nil {
		return zero, err
	}
	j, err := v.mapping.index(i)
	if err != nil {
		return zero, err
	}
	return v.backing.Get(j)
}

// Backing returns the sequence the view reads from
func (v *View[T]) Backing() Sequence[T] {
	return v.backing
}

// Slice returns seq[start:stop]. Either bound may be Open or negative.
func Slice[T any](seq Sequence[T], start, stop int) *View[T] {
	return SliceStep(seq, start, stop, 1)
}

// SliceStep returns seq[start:stop:step] with the usual clamping of out of
// range bounds. A zero step panics.
func SliceStep[T any](seq Sequence[T], start, stop, step int) *View[T] {
	if step == 0 {
		panic("sequence: slice step cannot be zero")
	}
	return &View[T]{
		backing: seq,
		mapping: &sliceMapping{backingLen: seq.Len, start: start, stop: stop, step: step},
	}
}

// Select returns the view seq[indices[0]], seq[indices[1]], ...
// Negative indices count from the end of seq. indices is copied.
func Select[T any](seq Sequence[T], indices []int) *View[T] {
	return &View[T]{
		backing: seq,
		mapping: &selectMapping{
			indices:    append([]int(nil), indices...),
			backingLen: seq.Len,
		},
	}
}

// --------------------------------------------------------------------------
// Slice mapping
// --------------------------------------------------------------------------

type sliceMapping struct {
	backingLen        func() (int, error)
	start, stop, step int

	mu       sync.Mutex
	resolved bool
	first    int // resolved start
	count    int
}

// direct reports whether indices can be mapped without the backing length
func (m *sliceMapping) direct() bool {
	return m.step > 0 && (m.start == Open || m.start >= 0) && (m.stop == Open || m.stop >= 0)
}

func (m *sliceMapping) resolve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolved {
		return nil
	}

	n, err := m.backingLen()
	if err != nil {
		return err
	}
	m.first, m.count = indices(m.start, m.stop, m.step, n)
	m.resolved = true
	return nil
}

func (m *sliceMapping) length() (int, error) {
	if err := m.resolve(); err != nil {
		return 0, err
	}
	return m.count, nil
}

func (m *sliceMapping) index(i int) (int, error) {
	if m.direct() {
		j := max(m.start, 0) + i*m.step
		if m.stop != Open && j >= m.stop {
			return 0, common.OutOfRange(i)
		}
		// the backing Get reports indices past its end
		return j, nil
	}

	if err := m.resolve(); err != nil {
		return 0, err
	}
	if i >= m.count {
		return 0, common.OutOfRange(i)
	}
	return m.first + i*m.step, nil
}

// indices resolves slice bounds against length n and returns the first
// backing index and the number of selected items
func indices(start, stop, step, n int) (first, count int) {
	clamp := func(v, def int) int {
		if v == Open {
			return def
		}
		if v < 0 {
			v += n
			if v < 0 {
				if step < 0 {
					return -1
				}
				return 0
			}
		}
		if v >= n {
			if step < 0 {
				return n - 1
			}
			return n
		}
		return v
	}

	if step > 0 {
		start, stop = clamp(start, 0), clamp(stop, n)
		if stop > start {
			count = (stop - start + step - 1) / step
		}
	} else {
		start, stop = clamp(start, n-1), clamp(stop, -1)
		if start > stop {
			count = (start - stop - step - 1) / -step
		}
	}
	return start, count
}

// --------------------------------------------------------------------------
// Select mapping
// --------------------------------------------------------------------------

type selectMapping struct {
	indices    []int
	backingLen func() (int, error)
}

func (m *selectMapping) length() (int, error) {
	return len(m.indices), nil
}

func (m *selectMapping) index(i int) (int, error) {
	if i >= len(m.indices) {
		return 0, common.OutOfRange(i)
	}
	j := m.indices[i]
	if j >= 0 {
		return j, nil
	}
	n, err := m.backingLen()
	if err != nil {
		return 0, err
	}
	if j+n < 0 {
		return 0, common.OutOfRange(j)
	}
	return j + n, nil
}
