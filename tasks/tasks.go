// Package tasks provides the background work abstraction the pathing
// schedulers rely on: spawn a function off the control loop and poll it
// without blocking once per tick.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPanicked is returned from Poll when the task function panicked.
var ErrPanicked = errors.New("tasks: task panicked")

// Runner executes fn somewhere, possibly on another goroutine.
type Runner interface {
	Go(fn func())
}

// Result is the outcome of a finished task.
type Result[T any] struct {
	Value T
	Err   error
}

// Task is a handle to work started with Spawn.
type Task[T any] struct {
	done   chan struct{}
	result Result[T]
}

// Spawn starts fn on r and returns its handle. A panic inside fn is
// recovered and reported as ErrPanicked.
func Spawn[T any](r Runner, fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	r.Go(func() {
		defer close(t.done)
		defer func() {
			if rec := recover(); rec != nil {
				t.result.Err = fmt.Errorf("%w: %v", ErrPanicked, rec)
			}
		}()
		t.result.Value, t.result.Err = fn()
	})
	return t
}

// Poll reports the result if the task has finished. It never blocks.
func (t *Task[T]) Poll() (Result[T], bool) {
	if t == nil {
		return Result[T]{}, false
	}
	select {
	case <-t.done:
		return t.result, true
	default:
		return Result[T]{}, false
	}
}

// Done returns a channel closed when the task finishes.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Pool runs tasks on goroutines, at most workers at a time.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewPool creates a pool. workers <= 0 means one worker.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

// Go implements Runner. It returns immediately; the goroutine waits for a
// free worker slot.
func (p *Pool) Go(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
	}()
}

// Wait blocks until every spawned function returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// InlineRunner runs functions synchronously inside Go.
type InlineRunner struct{}

func (InlineRunner) Go(fn func()) { fn() }

// ManualRunner queues functions until RunPending is called. Tests use it to
// decide exactly when background work completes.
type ManualRunner struct {
	mu      sync.Mutex
	pending []func()
}

func (m *ManualRunner) Go(fn func()) {
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
}

// Pending returns the number of queued functions.
func (m *ManualRunner) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// RunPending runs the functions queued so far and returns how many ran.
func (m *ManualRunner) RunPending() int {
	m.mu.Lock()
	queued := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, fn := range queued {
		fn()
	}
	return len(queued)
}
