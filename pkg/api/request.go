// Package api is the synchronous command-response control channel of the
// VMM: any goroutine may issue a command, the single dispatcher goroutine
// owning all VM state executes it and sends exactly one response back.
//
// One call goes through five steps:
//
//  1. The caller creates a private reply channel for this call.
//  2. It pushes a request envelope, carrying the reply channel, onto the
//     shared command queue.
//  3. It signals the notifier to wake the dispatcher.
//  4. The dispatcher drains the queue, executes the command and sends one
//     Response into the envelope's reply channel.
//  5. The caller receives the response and unwraps payload or error.
//
// The reply channel is the correlation mechanism: each call owns an
// unshared return path, so no request IDs exist.
package api

import "github.com/embervm/ember/pkg/config"

// Request is a command envelope. Each concrete type carries its payload,
// if any, plus the private reply channel of the issuing call.
type Request interface {
	// Reply is the sending half of the call's private reply channel.
	// It is used exactly once, by the dispatcher.
	Reply() chan<- Response

	isRequest()
}

// reply implements the Request plumbing shared by every envelope kind.
type reply chan Response

func (r reply) Reply() chan<- Response { return r }
func (reply) isRequest()               {}

// VmCreate creates the virtual machine from a configuration handle. The
// dispatcher answers ErrVmAlreadyCreated if a VM already exists.
type VmCreate struct {
	Config *config.Handle
	reply
}

// VmBoot boots the previously created virtual machine.
type VmBoot struct{ reply }

// VmDelete deletes the previously created virtual machine, shutting it
// down first if it is running.
type VmDelete struct{ reply }

// VmGetInfo requests the VM configuration handle and lifecycle state.
type VmGetInfo struct{ reply }

// VmmPing requests the VMM status.
type VmmPing struct{ reply }

// VmShutdown shuts the previously booted virtual machine down.
type VmShutdown struct{ reply }

// VmReboot reboots the previously booted virtual machine.
type VmReboot struct{ reply }

// VmmShutdown shuts the VMM itself down, deleting the current VM if any.
// It is the dispatcher's termination command.
type VmmShutdown struct{ reply }

// VmAddDevice attaches a generic passthrough device.
type VmAddDevice struct {
	Device *config.Device
	reply
}

// VmRemoveDevice detaches a previously added device by ID.
type VmRemoveDevice struct {
	Data *RemoveDeviceData
	reply
}

// VmAddDisk attaches a block device.
type VmAddDisk struct {
	Disk *config.Disk
	reply
}

// VmAddFs attaches a shared filesystem.
type VmAddFs struct {
	Fs *config.Fs
	reply
}

// VmAddPmem attaches a persistent memory device.
type VmAddPmem struct {
	Pmem *config.Pmem
	reply
}

// VmAddNet attaches a network device.
type VmAddNet struct {
	Net *config.Net
	reply
}

// VmAddVsock attaches a vsock device.
type VmAddVsock struct {
	Vsock *config.Vsock
	reply
}
