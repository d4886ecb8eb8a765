package util

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor runs submitted tasks on at most `workers` goroutines.
// Submissions never wait for a worker: tasks are pushed onto a lock-free Queue and a
// single dispatcher starts a goroutine per task once the semaphore admits it.
type Executor struct {
	queue   *Queue[func()]
	sem     *semaphore.Weighted
	workers int64
	running sync.WaitGroup
	done    chan struct{}

	// submitters share it, Close takes it exclusively so every accepted
	// task is pushed before the queue closes
	mu     sync.RWMutex
	closed bool
}

// NewExecutor creates an executor with the given number of workers (min 1)
func NewExecutor(workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	e := &Executor{
		queue:   NewQueue[func()](),
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: int64(workers),
		done:    make(chan struct{}),
	}
	go e.dispatch()
	return e
}

// Submit schedules task. Returns false if the executor is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (e *Executor) Submit(task func()) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false
	}

	e.running.Add(1)
	if !e.queue.Push(&task) {
		e.running.Done()
		return false
	}
	return true
}

func (e *Executor) dispatch() {
	defer close(e.done)
	for task := range e.queue.Recv() {
		// Acquire with a background context never fails
		_ = e.sem.Acquire(context.Background(), 1)
		go func(run func()) {
			defer e.running.Done()
			defer e.sem.Release(1)
			run()
		}(*task)
	}
}

// Wait blocks until every task submitted so far has finished.
// It must not race with Submit calls made while the executor is idle.
func (e *Executor) Wait() {
	e.running.Wait()
}

// Workers returns the maximum number of concurrently running tasks
func (e *Executor) Workers() int {
	return int(e.workers)
}

// Close stops accepting tasks and waits for queued and running tasks to finish.
// Close is idempotent, Submit returns false afterwards.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.queue.Close()
	<-e.done
	e.running.Wait()
}
