package api

import (
	"github.com/embervm/ember/internal/errx"
	"github.com/embervm/ember/pkg/config"
	"github.com/embervm/ember/pkg/notify"
	"github.com/embervm/ember/pkg/queue"
)

// Client issues commands to the dispatcher. It is safe for concurrent use
// by any number of goroutines; every method blocks its caller until the
// dispatcher responds or terminates.
//
// Queueing and signalling are two separate steps. If the signal write
// fails after a successful push, the method returns ErrNotifierWrite but
// the command is already queued and will still execute once the
// dispatcher wakes for any reason. Callers must treat ErrNotifierWrite as
// "outcome unknown", not "command did not run".
type Client struct {
	notifier notify.Notifier
	requests *queue.Queue[Request]
}

func NewClient(notifier notify.Notifier, requests *queue.Queue[Request]) *Client {
	return &Client{notifier: notifier, requests: requests}
}

// newReply allocates the private reply channel for one call. Capacity 1 so
// the dispatcher's single send never blocks, even if the caller is gone.
func newReply() reply {
	return make(reply, 1)
}

func (c *Client) send(req Request) error {
	if err := c.requests.Push(req); err != nil {
		return errx.Wrap(ErrRequestSend, err)
	}
	if err := c.notifier.Signal(); err != nil {
		return errx.Wrap(ErrNotifierWrite, err)
	}
	return nil
}

// recv blocks on the call's reply channel. If the dispatcher tears down
// the queue first, a final non-blocking read catches a response that
// raced with the teardown before the receive is reported as failed.
func (c *Client) recv(r reply) (Payload, error) {
	var resp Response
	select {
	case resp = <-r:
	case <-c.requests.Done():
		select {
		case resp = <-r:
		default:
			return nil, ErrResponseRecv
		}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Payload, nil
}

// call runs the full protocol for commands that expect no payload back.
func (c *Client) call(req Request, r reply) error {
	if err := c.send(req); err != nil {
		return err
	}
	_, err := c.recv(r)
	return err
}

// VmCreate creates the virtual machine from the given configuration.
func (c *Client) VmCreate(cfg *config.Handle) error {
	r := newReply()
	return c.call(&VmCreate{Config: cfg, reply: r}, r)
}

// vmAction factors the commands that differ only by envelope kind.
type vmAction int

const (
	actionBoot vmAction = iota
	actionDelete
	actionShutdown
	actionReboot
)

func (c *Client) vmAction(action vmAction) error {
	r := newReply()

	var req Request
	switch action {
	case actionBoot:
		req = &VmBoot{reply: r}
	case actionDelete:
		req = &VmDelete{reply: r}
	case actionShutdown:
		req = &VmShutdown{reply: r}
	case actionReboot:
		req = &VmReboot{reply: r}
	}

	return c.call(req, r)
}

// VmBoot boots the previously created virtual machine.
func (c *Client) VmBoot() error {
	return c.vmAction(actionBoot)
}

// VmDelete deletes the virtual machine, shutting it down first if needed.
func (c *Client) VmDelete() error {
	return c.vmAction(actionDelete)
}

// VmShutdown shuts the running virtual machine down.
func (c *Client) VmShutdown() error {
	return c.vmAction(actionShutdown)
}

// VmReboot reboots the running virtual machine.
func (c *Client) VmReboot() error {
	return c.vmAction(actionReboot)
}

// VmInfo returns the VM configuration handle and lifecycle state.
func (c *Client) VmInfo() (*VmInfo, error) {
	r := newReply()
	if err := c.send(&VmGetInfo{reply: r}); err != nil {
		return nil, err
	}

	payload, err := c.recv(r)
	if err != nil {
		return nil, err
	}
	info, ok := payload.(VmInfo)
	if !ok {
		return nil, ErrResponsePayloadType
	}
	return &info, nil
}

// VmmPing returns the VMM status.
func (c *Client) VmmPing() (*VmmPingResponse, error) {
	r := newReply()
	if err := c.send(&VmmPing{reply: r}); err != nil {
		return nil, err
	}

	payload, err := c.recv(r)
	if err != nil {
		return nil, err
	}
	pong, ok := payload.(VmmPingResponse)
	if !ok {
		return nil, ErrResponsePayloadType
	}
	return &pong, nil
}

// VmmShutdown asks the dispatcher to shut the VMM down.
func (c *Client) VmmShutdown() error {
	r := newReply()
	return c.call(&VmmShutdown{reply: r}, r)
}

// VmAddDevice attaches a passthrough device to the VM.
func (c *Client) VmAddDevice(device *config.Device) error {
	r := newReply()
	return c.call(&VmAddDevice{Device: device, reply: r}, r)
}

// VmRemoveDevice detaches a device from the VM by ID.
func (c *Client) VmRemoveDevice(data *RemoveDeviceData) error {
	r := newReply()
	return c.call(&VmRemoveDevice{Data: data, reply: r}, r)
}

// VmAddDisk attaches a block device to the VM.
func (c *Client) VmAddDisk(disk *config.Disk) error {
	r := newReply()
	return c.call(&VmAddDisk{Disk: disk, reply: r}, r)
}

// VmAddFs attaches a shared filesystem to the VM.
func (c *Client) VmAddFs(fs *config.Fs) error {
	r := newReply()
	return c.call(&VmAddFs{Fs: fs, reply: r}, r)
}

// VmAddPmem attaches a persistent memory device to the VM.
func (c *Client) VmAddPmem(pmem *config.Pmem) error {
	r := newReply()
	return c.call(&VmAddPmem{Pmem: pmem, reply: r}, r)
}

// VmAddNet attaches a network device to the VM.
func (c *Client) VmAddNet(net *config.Net) error {
	r := newReply()
	return c.call(&VmAddNet{Net: net, reply: r}, r)
}

// VmAddVsock attaches a vsock device to the VM.
func (c *Client) VmAddVsock(vsock *config.Vsock) error {
	r := newReply()
	return c.call(&VmAddVsock{Vsock: vsock, reply: r}, r)
}
