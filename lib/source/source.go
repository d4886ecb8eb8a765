// Package source defines the forward-only iterators loadit materializes.
//
// A Factory creates a fresh Iterator positioned at the first item. Writers
// only ever advance an iterator; going back means closing it and calling the
// factory again. When several writers run concurrently the factory is called
// from several goroutines, each resulting iterator is used by one goroutine only.
package source

import (
	"bufio"
	"iter"
	"os"
)

// Iterator yields the items of a source in order.
type Iterator[T any] interface {
	// Next returns the next item. ok is false once the source is exhausted.
	// A non-nil error aborts the iteration.
	Next() (item T, ok bool, err error)
	// Close releases the resources of the iterator
	Close() error
}

// Factory creates a new iterator positioned at the first item.
type Factory[T any] func() (Iterator[T], error)

// --------------------------------------------------------------------------
// Slice source
// --------------------------------------------------------------------------

type sliceIterator[T any] struct {
	items []T
	pos   int
}

func (s *sliceIterator[T]) Next() (T, bool, error) {
	var zero T
	if s.pos >= len(s.items) {
		return zero, false, nil
	}
	item := s.items[s.pos]
	s.pos++
	return item, true, nil
}

func (s *sliceIterator[T]) Close() error { return nil }

// FromSlice creates a factory iterating over items
func FromSlice[T any](items []T) Factory[T] {
	return func() (Iterator[T], error) {
		return &sliceIterator[T]{items: items}, nil
	}
}

// --------------------------------------------------------------------------
// iter.Seq source
// --------------------------------------------------------------------------

type pullIterator[T any] struct {
	next func() (T, error, bool)
	stop func()
}

func (p *pullIterator[T]) Next() (T, bool, error) {
	item, err, ok := p.next()
	if err != nil {
		var zero T
		return zero, false, err
	}
	return item, ok, nil
}

func (p *pullIterator[T]) Close() error {
	p.stop()
	return nil
}

// FromSeq creates a factory from a function returning a fresh iter.Seq
func FromSeq[T any](newSeq func() iter.Seq[T]) Factory[T] {
	return FromSeq2(func() iter.Seq2[T, error] {
		seq := newSeq()
		return func(yield func(T, error) bool) {
			for item := range seq {
				if !yield(item, nil) {
					return
				}
			}
		}
	})
}

// FromSeq2 creates a factory from a function returning a fresh iter.Seq2 that
// reports errors as its second value. The first error ends the iteration.
func FromSeq2[T any](newSeq func() iter.Seq2[T, error]) Factory[T] {
	return func() (Iterator[T], error) {
		next, stop := iter.Pull2(newSeq())
		return &pullIterator[T]{next: next, stop: stop}, nil
	}
}

// --------------------------------------------------------------------------
// Line source
// --------------------------------------------------------------------------

type lineIterator struct {
	file    *os.File
	scanner *bufio.Scanner
}

func (l *lineIterator) Next() ([]byte, bool, error) {
	if !l.scanner.Scan() {
		return nil, false, l.scanner.Err()
	}
	line := l.scanner.Bytes()
	item := make([]byte, len(line))
	copy(item, line)
	return item, true, nil
}

func (l *lineIterator) Close() error {
	return l.file.Close()
}

// maxLineSize is the largest line accepted by the line source
const maxLineSize = 64 * 1024 * 1024

// FromLines creates a factory yielding every line of the file at path (without the newline)
func FromLines(path string) Factory[[]byte] {
	return func() (Iterator[[]byte], error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		return &lineIterator{file: f, scanner: scanner}, nil
	}
}

// Drain reads up to limit items from a fresh iterator (limit < 0 reads everything)
func Drain[T any](factory Factory[T], limit int) ([]T, error) {
	it, err := factory()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var items []T
	for limit < 0 || len(items) < limit {
		item, ok, err := it.Next()
		if err != nil {
			return items, err
		}
		if !ok {
			break
		}
		items = append(items, item)
	}
	return items, nil
}
