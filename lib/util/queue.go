// Package util provides an unbounded lock-free multi-producer single-consumer queue.
//
// It backs the prefetch Executor: any number of goroutines may Push tasks
// without ever blocking, a single dispatcher goroutine drains them in order
// through the channel returned by Recv.
//
//   - Lock-Free pushes: CAS on the tail pointer with exponential backoff
//   - Unbounded: limited only by memory, so submitters never wait
//   - Single Consumer: exactly one goroutine may read from Recv()
//   - FIFO per producer: items of one producer are delivered in push order
package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type node[T any] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// Queue is a lock-free multi-producer single-consumer queue.
// A background goroutine moves values from the linked list to the Recv channel.
type Queue[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	out    chan *T
	closed atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewQueue creates a new queue and starts its forwarding goroutine
func NewQueue[T any]() *Queue[T] {
	sentinel := &node[T]{}

	q := &Queue[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.forward()

	return q
}

// Push appends a value. Returns false if value is nil or the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// a failed CAS here means another producer already advanced the tail
				q.tail.CompareAndSwap(tailNode, newNode)

				// take the lock so the signal cannot slip between the consumers check and its Wait
				q.mu.Lock()
				q.cond.Signal()
				q.mu.Unlock()
				return true
			}
		} else {
			q.tail.CompareAndSwap(tailNode, next)
		}

		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// forward moves values from the list to the out channel until the queue is closed and drained
func (q *Queue[T]) forward() {
	defer close(q.out)

	for {
		head := q.head.Load()
		next := head.next.Load()

		if next != nil {
			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = nil
			continue
		}

		if q.closed.Load() {
			return
		}

		q.mu.Lock()
		if q.head.Load().next.Load() == nil && !q.closed.Load() {
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}

// Recv returns the channel the single consumer reads from.
// The channel is closed once the queue is closed and every pushed value was delivered.
func (q *Queue[T]) Recv() <-chan *T {
	return q.out
}

// Close prevents further pushes. Already pushed values are still delivered.
func (q *Queue[T]) Close() {
	q.closed.Store(true)

	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// IsClosed returns true if the queue is closed.
func (q *Queue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of values not yet handed to the consumer. O(n), for debugging.
func (q *Queue[T]) Len() int {
	count := 0
	current := q.head.Load()
	for {
		next := current.next.Load()
		if next == nil {
			return count
		}
		count++
		current = next
	}
}
