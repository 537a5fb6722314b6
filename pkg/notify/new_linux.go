//go:build linux

package notify

// New returns the platform notifier: an eventfd on Linux.
func New() (Waiter, error) {
	return NewEventFD()
}
