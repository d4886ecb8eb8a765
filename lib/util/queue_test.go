package util

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestQueueBasicOperations tests basic push and consume functionality
func TestQueueBasicOperations(t *testing.T) {
	q := NewQueue[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		v := i
		if !q.Push(&v) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case val := <-q.Recv():
			if *val != i {
				t.Errorf("Expected %d, got %d", i, *val)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}
}

// TestQueueConcurrentProducers verifies no item is lost or duplicated with many producers
func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()
	defer q.Close()

	const numProducers = 8
	const itemsPerProducer = 500
	total := numProducers * itemsPerProducer

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				v := base + i
				q.Push(&v)
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p * itemsPerProducer)
	}

	seen := make(map[int]bool, total)
	for len(seen) < total {
		select {
		case val := <-q.Recv():
			if seen[*val] {
				t.Fatalf("Duplicate item received: %d", *val)
			}
			seen[*val] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("Timeout, received %d of %d", len(seen), total)
		}
	}
	wg.Wait()
}

// TestQueueClose verifies that pushed items survive Close and pushing afterwards fails
func TestQueueClose(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		v := i
		q.Push(&v)
	}
	q.Close()

	v := 100
	if q.Push(&v) {
		t.Error("Should not be able to push after queue is closed")
	}

	for i := 0; i < 5; i++ {
		select {
		case val := <-q.Recv():
			if *val != i {
				t.Errorf("Expected %d, got %d", i, *val)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for item %d after close", i)
		}
	}

	if _, ok := <-q.Recv(); ok {
		t.Error("Channel should be closed after draining")
	}
}

// TestExecutorBoundsConcurrency checks that no more than `workers` tasks run at once
func TestExecutorBoundsConcurrency(t *testing.T) {
	const workers = 3
	e := NewExecutor(workers)
	defer e.Close()

	var running, maxRunning, finished atomic.Int32
	for i := 0; i < 30; i++ {
		e.Submit(func() {
			cur := running.Add(1)
			for {
				prev := maxRunning.Load()
				if cur <= prev || maxRunning.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			finished.Add(1)
		})
	}
	e.Wait()

	if finished.Load() != 30 {
		t.Errorf("Expected 30 finished tasks, got %d", finished.Load())
	}
	if maxRunning.Load() > workers {
		t.Errorf("Expected at most %d concurrent tasks, saw %d", workers, maxRunning.Load())
	}
}

// TestExecutorClose checks that Close drains submitted tasks and rejects new ones
func TestExecutorClose(t *testing.T) {
	e := NewExecutor(1)
	var count atomic.Int32
	for i := 0; i < 10; i++ {
		e.Submit(func() { count.Add(1) })
	}
	e.Close()

	if count.Load() != 10 {
		t.Errorf("Close should wait for all tasks, ran %d", count.Load())
	}
	if e.Submit(func() {}) {
		t.Error("Submit after Close should fail")
	}
}
