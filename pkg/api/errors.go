package api

import "errors"

// Transport errors: failures of the control-channel plumbing itself,
// independent of VM semantics.
var (
	// ErrNotifierWrite means the wakeup signal could not be written. The
	// request may already be queued; see Client for the hazard.
	ErrNotifierWrite = errors.New("api: write to notifier")
	// ErrRequestSend means the request could not be queued. No side
	// effect occurred.
	ErrRequestSend = errors.New("api: send request")
	// ErrResponseRecv means the dispatcher terminated before replying.
	ErrResponseRecv = errors.New("api: receive response")
	// ErrResponsePayloadType means the dispatcher answered with a payload
	// of the wrong shape. This indicates a dispatcher bug.
	ErrResponsePayloadType = errors.New("api: wrong response payload type")
)

// Domain errors: pass-through wraps of the VM engine's own failure for
// each command. The engine error is attached verbatim via errx.Wrap.
var (
	ErrVmCreate         = errors.New("api: vm create")
	ErrVmAlreadyCreated = errors.New("api: vm already created")
	ErrVmNotCreated     = errors.New("api: vm not created")
	ErrVmNotBooted      = errors.New("api: vm not booted")
	ErrVmMissingConfig  = errors.New("api: vm config is missing")
	ErrVmBoot           = errors.New("api: vm boot")
	ErrVmDelete         = errors.New("api: vm delete")
	ErrVmInfo           = errors.New("api: vm info unavailable")
	ErrVmShutdown       = errors.New("api: vm shutdown")
	ErrVmReboot         = errors.New("api: vm reboot")
	ErrVmmShutdown      = errors.New("api: vmm shutdown")
	ErrVmAddDevice      = errors.New("api: vm add device")
	ErrVmRemoveDevice   = errors.New("api: vm remove device")
	ErrVmAddDisk        = errors.New("api: vm add disk")
	ErrVmAddFs          = errors.New("api: vm add fs")
	ErrVmAddPmem        = errors.New("api: vm add pmem")
	ErrVmAddNet         = errors.New("api: vm add net")
	ErrVmAddVsock       = errors.New("api: vm add vsock")
)
