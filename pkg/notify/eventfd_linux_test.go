//go:build linux

package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFD_SignalThenWait(t *testing.T) {
	n, err := NewEventFD()
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.Signal())
	require.NoError(t, n.Wait(context.Background()))
}

func TestEventFD_SignalsCoalesce(t *testing.T) {
	n, err := NewEventFD()
	require.NoError(t, err)
	defer n.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, n.Signal())
	}

	// One read drains the whole counter.
	require.NoError(t, n.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, n.Wait(ctx), context.DeadlineExceeded)
}

func TestEventFD_SignalAfterClose(t *testing.T) {
	n, err := NewEventFD()
	require.NoError(t, err)
	require.NoError(t, n.Close())

	err = n.Signal()
	assert.ErrorIs(t, err, ErrEventfdWrite)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEventFD_ConcurrentSignalers(t *testing.T) {
	n, err := NewEventFD()
	require.NoError(t, err)
	defer n.Close()

	for i := 0; i < 16; i++ {
		go func() {
			_ = n.Signal()
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, n.Wait(ctx))
}
