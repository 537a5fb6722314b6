// Package queue provides the unbounded multi-producer/single-consumer FIFO
// that carries command envelopes to the dispatcher. Producers never block;
// the single consumer drains in arrival order.
package queue

import "sync"

// Queue is safe for any number of concurrent producers and exactly one
// consumer. Close is the consumer tearing down its side: later pushes fail
// with ErrClosed and Done is closed so producers blocked on replies can
// observe the teardown.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	done   chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{done: make(chan struct{})}
}

// Push appends v at the tail. It never blocks. After Close it returns
// ErrClosed and v is dropped.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, v)
	return nil
}

// DrainAll removes and returns every queued item in arrival order. It
// returns nil when the queue is empty. Consumer side only.
func (q *Queue[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the consumer side as torn down. Idempotent. Items still
// queued are left in place for a final DrainAll.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Done is closed once the consumer side has been torn down.
func (q *Queue[T]) Done() <-chan struct{} {
	return q.done
}
