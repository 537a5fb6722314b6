//go:build !linux

package notify

// New returns the platform notifier: a channel-backed one where no
// eventfd-equivalent descriptor is available.
func New() (Waiter, error) {
	return NewChannel(), nil
}
