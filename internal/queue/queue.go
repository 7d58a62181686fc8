// Package queue provides the multi-producer/multi-consumer work queue used
// by the loader pipeline.
//
// The queue is unbounded by default, so producers are never back-pressured;
// an optional bound turns Push into a blocking operation. Pop blocks with a
// caller-supplied timeout so consumers can observe a stop signal promptly.
// Task accounting (TaskDone/Join) lets a shutdown path wait until every
// pushed item has been fully handled.
package queue

import (
	"sync"
	"time"
)

// Queue is a FIFO work queue. The zero value is not usable; use New.
type Queue[T any] struct {
	mu         sync.Mutex
	notEmpty   *sync.Cond
	notFull    *sync.Cond
	allDone    *sync.Cond
	items      []T
	bound      int // <= 0 means unbounded
	unfinished int // pushed but not yet TaskDone'd
}

// New creates a queue. bound <= 0 means unbounded.
func New[T any](bound int) *Queue[T] {
	q := &Queue[T]{bound: bound}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	q.allDone = sync.NewCond(&q.mu)
	return q
}

// Push appends one item. It never blocks on an unbounded queue; on a bounded
// queue it blocks until space is available.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.bound > 0 && len(q.items) >= q.bound {
		q.notFull.Wait()
	}
	q.items = append(q.items, v)
	q.unfinished++
	q.notEmpty.Signal()
}

// Pop removes and returns the oldest item, blocking up to timeout. The
// second result is false if the timeout expired with the queue still empty.
// Every successful Pop must eventually be matched by a TaskDone call.
func (q *Queue[T]) Pop(timeout time.Duration) (T, bool) {
	var zero T

	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return zero, false
		}
		// Cond has no timed wait; a timer broadcast bounds the sleep.
		t := time.AfterFunc(remaining, func() {
			q.mu.Lock()
			q.notEmpty.Broadcast()
			q.mu.Unlock()
		})
		q.notEmpty.Wait()
		t.Stop()
	}

	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.notFull.Signal()
	return v, true
}

// TaskDone marks one previously popped item as fully handled.
func (q *Queue[T]) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unfinished > 0 {
		q.unfinished--
	}
	if q.unfinished == 0 {
		q.allDone.Broadcast()
	}
}

// Join blocks until every pushed item has been popped and marked done.
func (q *Queue[T]) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.unfinished > 0 {
		q.allDone.Wait()
	}
}

// Drain removes and returns all pending items without handling them. Each
// drained item counts as done, so a Join in progress can complete.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = nil
	q.unfinished -= len(out)
	if q.unfinished <= 0 {
		q.unfinished = 0
		q.allDone.Broadcast()
	}
	q.notFull.Broadcast()
	return out
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
