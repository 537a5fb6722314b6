package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embervm/ember/internal/errx"
	"github.com/embervm/ember/pkg/notify"
	"github.com/embervm/ember/pkg/queue"
)

// mockDispatcher drains the queue like the real dispatcher loop and
// answers every request with the configured handler.
type mockDispatcher struct {
	notifier *notify.Channel
	requests *queue.Queue[Request]
	handle   func(Request) Response

	cancel  context.CancelFunc
	stopped chan struct{}
	handled atomic.Int64
}

func startMockDispatcher(t *testing.T, handle func(Request) Response) (*Client, *mockDispatcher) {
	t.Helper()

	d := &mockDispatcher{
		notifier: notify.NewChannel(),
		requests: queue.New[Request](),
		handle:   handle,
		stopped:  make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	go func() {
		defer close(d.stopped)
		defer d.requests.Close()
		for {
			if err := d.notifier.Wait(ctx); err != nil {
				return
			}
			for _, req := range d.requests.DrainAll() {
				d.handled.Add(1)
				if d.handle == nil {
					continue // deliberately never reply
				}
				req.Reply() <- d.handle(req)
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		<-d.stopped
	})

	return NewClient(d.notifier, d.requests), d
}

func ok(p Payload) Response   { return Response{Payload: p} }
func fail(err error) Response { return Response{Err: err} }

func TestVmmPing_EndToEnd(t *testing.T) {
	client, _ := startMockDispatcher(t, func(Request) Response {
		return ok(VmmPingResponse{Version: "1.0.0"})
	})

	pong, err := client.VmmPing()
	require.NoError(t, err)
	assert.Equal(t, &VmmPingResponse{Version: "1.0.0"}, pong)
}

func TestEveryCommand_ExactlyOneResponse(t *testing.T) {
	var replies atomic.Int64
	client, d := startMockDispatcher(t, func(req Request) Response {
		replies.Add(1)
		switch req.(type) {
		case *VmGetInfo:
			return ok(VmInfo{State: "created"})
		case *VmmPing:
			return ok(VmmPingResponse{Version: "test"})
		default:
			return ok(Empty{})
		}
	})

	calls := []func() error{
		func() error { return client.VmCreate(nil) },
		client.VmBoot,
		client.VmDelete,
		client.VmShutdown,
		client.VmReboot,
		client.VmmShutdown,
		func() error { _, err := client.VmInfo(); return err },
		func() error { _, err := client.VmmPing(); return err },
		func() error { return client.VmAddDevice(nil) },
		func() error { return client.VmRemoveDevice(&RemoveDeviceData{ID: "x"}) },
		func() error { return client.VmAddDisk(nil) },
		func() error { return client.VmAddFs(nil) },
		func() error { return client.VmAddPmem(nil) },
		func() error { return client.VmAddNet(nil) },
		func() error { return client.VmAddVsock(nil) },
	}

	for _, call := range calls {
		require.NoError(t, call())
	}

	assert.Equal(t, int64(len(calls)), d.handled.Load())
	assert.Equal(t, int64(len(calls)), replies.Load())
}

func TestVmInfo_PayloadTypeMismatch(t *testing.T) {
	client, _ := startMockDispatcher(t, func(Request) Response {
		return ok(Empty{})
	})

	_, err := client.VmInfo()
	assert.ErrorIs(t, err, ErrResponsePayloadType)
}

func TestVmmPing_PayloadTypeMismatch(t *testing.T) {
	client, _ := startMockDispatcher(t, func(Request) Response {
		return ok(VmInfo{State: "running"})
	})

	_, err := client.VmmPing()
	assert.ErrorIs(t, err, ErrResponsePayloadType)
}

func TestDomainError_PassThroughUnmodified(t *testing.T) {
	client, _ := startMockDispatcher(t, func(req Request) Response {
		if _, isCreate := req.(*VmCreate); isCreate {
			return fail(ErrVmAlreadyCreated)
		}
		return ok(Empty{})
	})

	err := client.VmCreate(nil)
	assert.Equal(t, ErrVmAlreadyCreated, err)
}

func TestConcurrentCallers_OwnMarkerOnly(t *testing.T) {
	const callers = 32

	// The dispatcher echoes each request's device ID back through the
	// domain error, so every caller can check it observed its own call.
	client, _ := startMockDispatcher(t, func(req Request) Response {
		remove, isRemove := req.(*VmRemoveDevice)
		if !isRemove {
			return fail(errors.New("unexpected request kind"))
		}
		return fail(errx.With(ErrVmRemoveDevice, ": %s", remove.Data.ID))
	})

	var wg sync.WaitGroup
	failures := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			marker := fmt.Sprintf("marker-%d", i)
			err := client.VmRemoveDevice(&RemoveDeviceData{ID: marker})
			if !errors.Is(err, ErrVmRemoveDevice) {
				failures <- fmt.Sprintf("caller %d: wrong error kind: %v", i, err)
				return
			}
			if !strings.Contains(err.Error(), marker) {
				failures <- fmt.Sprintf("caller %d: got someone else's reply: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(failures)

	for msg := range failures {
		t.Error(msg)
	}
}

func TestDispatcherDeath_UnblocksAllCallers(t *testing.T) {
	const callers = 8

	// handle == nil: requests are drained but never answered.
	client, d := startMockDispatcher(t, nil)

	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := client.VmmPing()
			errs <- err
		}()
	}

	// Let the callers enqueue, then kill the dispatcher.
	require.Eventually(t, func() bool {
		return d.handled.Load() == callers
	}, time.Second, 5*time.Millisecond)
	d.cancel()

	for i := 0; i < callers; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrResponseRecv)
		case <-time.After(2 * time.Second):
			t.Fatal("caller still blocked after dispatcher death")
		}
	}
}

func TestSendFailure_AfterQueueTeardown(t *testing.T) {
	notifier := notify.NewChannel()
	requests := queue.New[Request]()
	client := NewClient(notifier, requests)

	requests.Close()

	err := client.VmBoot()
	assert.ErrorIs(t, err, ErrRequestSend)
	assert.ErrorIs(t, err, queue.ErrClosed)
	assert.Zero(t, requests.Len())
}

func TestNotifyFailure_RequestStaysQueued(t *testing.T) {
	notifier := notify.NewChannel()
	requests := queue.New[Request]()
	client := NewClient(notifier, requests)

	require.NoError(t, notifier.Close())

	done := make(chan error, 1)
	go func() {
		done <- client.VmBoot()
	}()

	err := <-done
	assert.ErrorIs(t, err, ErrNotifierWrite)

	// The push happened before the failed signal: the command is still
	// queued and would execute if the dispatcher woke up. The caller must
	// treat the error as "outcome unknown".
	drained := requests.DrainAll()
	require.Len(t, drained, 1)
	assert.IsType(t, &VmBoot{}, drained[0])
}

func TestRecv_ReplyRacingTeardownIsNotLost(t *testing.T) {
	notifier := notify.NewChannel()
	requests := queue.New[Request]()
	client := NewClient(notifier, requests)

	// Dispatcher replies and immediately tears down, before the caller
	// necessarily observes the reply channel.
	go func() {
		for requests.Len() == 0 {
			time.Sleep(time.Millisecond)
		}
		reqs := requests.DrainAll()
		reqs[0].Reply() <- ok(VmmPingResponse{Version: "raced"})
		requests.Close()
	}()

	pong, err := client.VmmPing()
	require.NoError(t, err)
	assert.Equal(t, "raced", pong.Version)
}
