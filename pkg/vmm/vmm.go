// Package vmm runs the dispatcher: the single goroutine that owns all VM
// state, drains the command queue and answers every request with exactly
// one response. Because only this goroutine mutates VM state, the VM
// operations themselves need no locking.
package vmm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/embervm/ember/internal/errx"
	"github.com/embervm/ember/pkg/api"
	"github.com/embervm/ember/pkg/config"
	"github.com/embervm/ember/pkg/logging"
	"github.com/embervm/ember/pkg/notify"
	"github.com/embervm/ember/pkg/queue"
	"github.com/embervm/ember/pkg/vm"
)

type Options struct {
	// Version is reported by vmm.ping.
	Version string
	// Backend creates guest machines at boot.
	Backend vm.Backend
	// Emitter receives structured events; nil disables emission.
	Emitter *logging.Emitter
}

// Vmm is the dispatcher. Construct it with the same notifier and queue the
// api.Client uses, then run it on its own goroutine.
type Vmm struct {
	notifier notify.Waiter
	requests *queue.Queue[api.Request]
	backend  vm.Backend
	emitter  *logging.Emitter
	version  string

	// Owned exclusively by the Run goroutine.
	vm *vm.Vm
}

func New(notifier notify.Waiter, requests *queue.Queue[api.Request], opts Options) *Vmm {
	return &Vmm{
		notifier: notifier,
		requests: requests,
		backend:  opts.Backend,
		emitter:  opts.Emitter,
		version:  opts.Version,
	}
}

// Run consumes the queue until a VmmShutdown request succeeds or ctx is
// cancelled. On return the queue is torn down, so every caller still
// blocked on a reply observes a receive failure instead of hanging.
func (v *Vmm) Run(ctx context.Context) error {
	if v.emitter != nil {
		_ = v.emitter.Emit(logging.EventDispatcherStart, "dispatcher running", nil)
	}

	defer func() {
		v.requests.Close()
		if v.emitter != nil {
			_ = v.emitter.Emit(logging.EventDispatcherStop, "dispatcher stopped", nil)
		}
	}()

	for {
		if err := v.notifier.Wait(ctx); err != nil {
			return err
		}

		for _, req := range v.requests.DrainAll() {
			if shutdown := v.handle(ctx, req); shutdown {
				return nil
			}
		}
	}
}

// handle executes one request and sends its single response. It reports
// whether the dispatcher should terminate.
func (v *Vmm) handle(ctx context.Context, req api.Request) bool {
	start := time.Now()

	var resp api.Response
	shutdown := false

	switch r := req.(type) {
	case *api.VmCreate:
		resp = ack(v.vmCreate(r.Config))
	case *api.VmBoot:
		resp = ack(v.vmBoot(ctx))
	case *api.VmDelete:
		resp = ack(v.vmDelete(ctx))
	case *api.VmGetInfo:
		resp = v.vmInfo()
	case *api.VmmPing:
		resp = api.Response{Payload: api.VmmPingResponse{Version: v.version}}
	case *api.VmShutdown:
		resp = ack(v.vmShutdown(ctx))
	case *api.VmReboot:
		resp = ack(v.vmReboot(ctx))
	case *api.VmmShutdown:
		err := v.vmmShutdown(ctx)
		resp = ack(err)
		shutdown = err == nil
	case *api.VmAddDevice:
		resp = ack(v.vmAddDevice(r.Device))
	case *api.VmRemoveDevice:
		resp = ack(v.vmRemoveDevice(r.Data))
	case *api.VmAddDisk:
		resp = ack(v.vmAddDisk(r.Disk))
	case *api.VmAddFs:
		resp = ack(v.vmAddFs(r.Fs))
	case *api.VmAddPmem:
		resp = ack(v.vmAddPmem(r.Pmem))
	case *api.VmAddNet:
		resp = ack(v.vmAddNet(r.Net))
	case *api.VmAddVsock:
		resp = ack(v.vmAddVsock(r.Vsock))
	default:
		resp = api.Response{Err: errx.With(api.ErrResponsePayloadType, ": unknown request %T", req)}
	}

	req.Reply() <- resp

	v.emitRequest(req, resp, time.Since(start))
	return shutdown
}

// ack turns an error into the empty-acknowledgment response.
func ack(err error) api.Response {
	if err != nil {
		return api.Response{Err: err}
	}
	return api.Response{Payload: api.Empty{}}
}

func (v *Vmm) vmCreate(cfg *config.Handle) error {
	if v.vm != nil {
		return api.ErrVmAlreadyCreated
	}
	if cfg == nil {
		return api.ErrVmMissingConfig
	}

	snap := cfg.Snapshot()
	if err := snap.Validate(); err != nil {
		return errx.Wrap(api.ErrVmCreate, err)
	}

	v.vm = vm.New(cfg, v.backend)
	v.emitState("", vm.StateCreated)
	return nil
}

func (v *Vmm) vmBoot(ctx context.Context) error {
	if v.vm == nil {
		return api.ErrVmNotCreated
	}

	from := v.vm.State()
	if err := v.vm.Boot(ctx); err != nil {
		return errx.Wrap(api.ErrVmBoot, err)
	}
	v.emitState(from, vm.StateRunning)
	return nil
}

func (v *Vmm) vmShutdown(ctx context.Context) error {
	if v.vm == nil {
		return api.ErrVmNotCreated
	}

	from := v.vm.State()
	if err := v.vm.Shutdown(ctx); err != nil {
		if errors.Is(err, vm.ErrNotRunning) {
			return errx.Wrap(api.ErrVmNotBooted, err)
		}
		return errx.Wrap(api.ErrVmShutdown, err)
	}
	v.emitState(from, vm.StateShutdown)
	return nil
}

func (v *Vmm) vmReboot(ctx context.Context) error {
	if v.vm == nil {
		return api.ErrVmNotCreated
	}

	if err := v.vm.Reboot(ctx); err != nil {
		if errors.Is(err, vm.ErrNotRunning) {
			return errx.Wrap(api.ErrVmNotBooted, err)
		}
		return errx.Wrap(api.ErrVmReboot, err)
	}
	v.emitState(vm.StateRunning, vm.StateRunning)
	return nil
}

func (v *Vmm) vmDelete(ctx context.Context) error {
	if v.vm == nil {
		return api.ErrVmNotCreated
	}

	from := v.vm.State()
	if err := v.vm.Delete(ctx); err != nil {
		return errx.Wrap(api.ErrVmDelete, err)
	}
	v.vm = nil
	v.emitState(from, "")
	return nil
}

func (v *Vmm) vmInfo() api.Response {
	if v.vm == nil {
		return api.Response{Err: api.ErrVmNotCreated}
	}
	return api.Response{Payload: api.VmInfo{
		Config: v.vm.Config(),
		State:  v.vm.State(),
	}}
}

// vmmShutdown deletes the current VM, if any, before terminating. A failed
// delete keeps the dispatcher alive so the caller can retry.
func (v *Vmm) vmmShutdown(ctx context.Context) error {
	if v.vm != nil {
		if err := v.vm.Delete(ctx); err != nil {
			return errx.Wrap(api.ErrVmmShutdown, err)
		}
		v.vm = nil
	}
	return nil
}

func (v *Vmm) vmAddDevice(device *config.Device) error {
	if v.vm == nil {
		return api.ErrVmNotCreated
	}
	if device == nil {
		return errx.With(api.ErrVmAddDevice, ": missing payload")
	}
	if err := v.vm.AddDevice(*device); err != nil {
		return errx.Wrap(api.ErrVmAddDevice, err)
	}
	return nil
}

func (v *Vmm) vmRemoveDevice(data *api.RemoveDeviceData) error {
	if v.vm == nil {
		return api.ErrVmNotCreated
	}
	if data == nil {
		return errx.With(api.ErrVmRemoveDevice, ": missing payload")
	}
	if err := v.vm.RemoveDevice(data.ID); err != nil {
		return errx.Wrap(api.ErrVmRemoveDevice, err)
	}
	return nil
}

func (v *Vmm) vmAddDisk(disk *config.Disk) error {
	if v.vm == nil {
		return api.ErrVmNotCreated
	}
	if disk == nil {
		return errx.With(api.ErrVmAddDisk, ": missing payload")
	}
	if err := v.vm.AddDisk(*disk); err != nil {
		return errx.Wrap(api.ErrVmAddDisk, err)
	}
	return nil
}

func (v *Vmm) vmAddFs(fs *config.Fs) error {
	if v.vm == nil {
		return api.ErrVmNotCreated
	}
	if fs == nil {
		return errx.With(api.ErrVmAddFs, ": missing payload")
	}
	if err := v.vm.AddFs(*fs); err != nil {
		return errx.Wrap(api.ErrVmAddFs, err)
	}
	return nil
}

func (v *Vmm) vmAddPmem(pmem *config.Pmem) error {
	if v.vm == nil {
		return api.ErrVmNotCreated
	}
	if pmem == nil {
		return errx.With(api.ErrVmAddPmem, ": missing payload")
	}
	if err := v.vm.AddPmem(*pmem); err != nil {
		return errx.Wrap(api.ErrVmAddPmem, err)
	}
	return nil
}

func (v *Vmm) vmAddNet(net *config.Net) error {
	if v.vm == nil {
		return api.ErrVmNotCreated
	}
	if net == nil {
		return errx.With(api.ErrVmAddNet, ": missing payload")
	}
	if err := v.vm.AddNet(*net); err != nil {
		return errx.Wrap(api.ErrVmAddNet, err)
	}
	return nil
}

func (v *Vmm) vmAddVsock(vsock *config.Vsock) error {
	if v.vm == nil {
		return api.ErrVmNotCreated
	}
	if vsock == nil {
		return errx.With(api.ErrVmAddVsock, ": missing payload")
	}
	if err := v.vm.AddVsock(*vsock); err != nil {
		return errx.Wrap(api.ErrVmAddVsock, err)
	}
	return nil
}

func (v *Vmm) emitRequest(req api.Request, resp api.Response, elapsed time.Duration) {
	if v.emitter == nil {
		return
	}

	kind := requestKind(req)
	data := &logging.ApiRequestData{
		Kind:       kind,
		DurationMS: elapsed.Milliseconds(),
	}
	if resp.Err != nil {
		data.Error = resp.Err.Error()
		_ = v.emitter.Emit(logging.EventApiError, kind+" failed", data)
		return
	}
	_ = v.emitter.Emit(logging.EventApiRequest, kind+" handled", data)
}

func (v *Vmm) emitState(from, to vm.State) {
	if v.emitter == nil {
		return
	}
	_ = v.emitter.Emit(logging.EventVmState,
		fmt.Sprintf("vm state %s -> %s", orNone(from), orNone(to)),
		&logging.VmStateData{From: string(from), To: string(to)})
}

func orNone(s vm.State) string {
	if s == "" {
		return "none"
	}
	return string(s)
}

func requestKind(req api.Request) string {
	switch req.(type) {
	case *api.VmCreate:
		return "vm.create"
	case *api.VmBoot:
		return "vm.boot"
	case *api.VmDelete:
		return "vm.delete"
	case *api.VmGetInfo:
		return "vm.info"
	case *api.VmmPing:
		return "vmm.ping"
	case *api.VmShutdown:
		return "vm.shutdown"
	case *api.VmReboot:
		return "vm.reboot"
	case *api.VmmShutdown:
		return "vmm.shutdown"
	case *api.VmAddDevice:
		return "vm.add-device"
	case *api.VmRemoveDevice:
		return "vm.remove-device"
	case *api.VmAddDisk:
		return "vm.add-disk"
	case *api.VmAddFs:
		return "vm.add-fs"
	case *api.VmAddPmem:
		return "vm.add-pmem"
	case *api.VmAddNet:
		return "vm.add-net"
	case *api.VmAddVsock:
		return "vm.add-vsock"
	default:
		return fmt.Sprintf("%T", req)
	}
}
