package util

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestExecutorRunsTasks verifies every submitted task runs before Wait returns
func TestExecutorRunsTasks(t *testing.T) {
	e := NewExecutor(3)
	defer e.Close()

	var count atomic.Int64
	for i := 0; i < 100; i++ {
		if !e.Submit(func() { count.Add(1) }) {
			t.Fatalf("Submit %d rejected by an open executor", i)
		}
	}
	e.Wait()

	if got := count.Load(); got != 100 {
		t.Errorf("Expected 100 tasks to run, got %d", got)
	}
}

// TestExecutorBound verifies no more than workers tasks run at once
func TestExecutorBound(t *testing.T) {
	e := NewExecutor(2)
	defer e.Close()

	var running, peak atomic.Int64
	for i := 0; i < 20; i++ {
		e.Submit(func() {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
		})
	}
	e.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("Expected at most 2 concurrent tasks, got %d", got)
	}
}

// TestExecutorSubmitAfterClose verifies a closed executor rejects tasks
func TestExecutorSubmitAfterClose(t *testing.T) {
	e := NewExecutor(1)
	e.Close()
	e.Close()

	if e.Submit(func() {}) {
		t.Error("Expected Submit to fail after Close")
	}
}

// TestExecutorConcurrentSubmitAndClose closes the executor while tasks are
// submitted. Every accepted task must run and Close must return.
func TestExecutorConcurrentSubmitAndClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		e := NewExecutor(2)

		var accepted, ran atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})

		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < 50; i++ {
					if e.Submit(func() { ran.Add(1) }) {
						accepted.Add(1)
					}
				}
			}()
		}

		closed := make(chan struct{})
		go func() {
			<-start
			e.Close()
			close(closed)
		}()

		close(start)
		wg.Wait()

		select {
		case <-closed:
		case <-time.After(5 * time.Second):
			t.Fatalf("Close did not return in round %d", round)
		}

		if accepted.Load() != ran.Load() {
			t.Fatalf("Round %d: %d tasks accepted, %d ran", round, accepted.Load(), ran.Load())
		}
	}
}
