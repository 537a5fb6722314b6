//go:build linux

package notify

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/embervm/ember/internal/errx"
)

// pollInterval bounds how long a Wait can overrun a context cancellation.
const pollInterval = 100 * time.Millisecond

// EventFD is a Waiter backed by a Linux eventfd. The kernel counter gives
// the accumulating semantics: writes add to the counter, one read drains it.
type EventFD struct {
	mu     sync.Mutex
	fd     int
	closed bool
}

var _ Waiter = (*EventFD)(nil)

func NewEventFD() (*EventFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errx.Wrap(ErrEventfdCreate, err)
	}
	return &EventFD{fd: fd}, nil
}

// FD exposes the raw descriptor for callers that integrate it into their
// own poll loop.
func (e *EventFD) FD() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fd
}

func (e *EventFD) Signal() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errx.Wrap(ErrEventfdWrite, ErrClosed)
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(e.fd, buf[:])
	if errors.Is(err, unix.EAGAIN) {
		// Counter saturated; the pending mark is already set.
		return nil
	}
	if err != nil {
		return errx.Wrap(ErrEventfdWrite, err)
	}
	return nil
}

func (e *EventFD) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return ErrClosed
		}
		fd := e.fd
		e.mu.Unlock()

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(pollInterval.Milliseconds()))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return errx.Wrap(ErrEventfdPoll, err)
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return ErrClosed
		}

		var buf [8]byte
		_, err = unix.Read(fd, buf[:])
		if errors.Is(err, unix.EAGAIN) {
			// Another wakeup consumed the counter first.
			continue
		}
		if err != nil {
			return errx.Wrap(ErrEventfdRead, err)
		}
		return nil
	}
}

func (e *EventFD) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return unix.Close(e.fd)
}
