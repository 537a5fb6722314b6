// Package notify provides the cross-thread wakeup primitive pairing the
// command queue: an accumulating signal where any number of producers mark
// "pending work exists" and a single consumer waits for that mark.
//
// On Linux the daemon uses the eventfd-backed implementation; the
// channel-backed one serves everywhere else and in tests.
package notify

import (
	"context"
	"sync"
)

// Notifier is the producer side of the wakeup signal. Signal never blocks;
// repeated signals before the consumer wakes coalesce into one pending mark.
// Signalling a closed notifier fails with an error matching ErrClosed.
type Notifier interface {
	Signal() error
}

// Waiter is the consumer side, held by exactly one goroutine.
type Waiter interface {
	Notifier

	// Wait blocks until at least one Signal has occurred since the last
	// Wait returned, the context is cancelled, or the notifier is closed.
	Wait(ctx context.Context) error

	Close() error
}

// Channel is a Waiter backed by a capacity-1 channel.
type Channel struct {
	mu      sync.Mutex
	closed  bool
	pending chan struct{}
	done    chan struct{}
}

var _ Waiter = (*Channel)(nil)

func NewChannel() *Channel {
	return &Channel{
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (c *Channel) Signal() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.pending <- struct{}{}:
	default:
		// Mark already pending; signals coalesce.
	}
	return nil
}

func (c *Channel) Wait(ctx context.Context) error {
	select {
	case <-c.pending:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}
