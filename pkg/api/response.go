package api

import (
	"github.com/embervm/ember/pkg/config"
	"github.com/embervm/ember/pkg/vm"
)

// Response is what the dispatcher sends back for one request: either a
// payload or an error, never both, never more than once.
type Response struct {
	Payload Payload
	Err     error
}

// Payload is the tagged union of response shapes.
type Payload interface{ isPayload() }

// Empty acknowledges a command that returns no data.
type Empty struct{}

func (Empty) isPayload() {}

// VmInfo is the vm.info response. Config is the live shared handle, not a
// copy; State is a snapshot value.
type VmInfo struct {
	Config *config.Handle `json:"config"`
	State  vm.State       `json:"state"`
}

func (VmInfo) isPayload() {}

// VmmPingResponse is the vmm.ping response.
type VmmPingResponse struct {
	Version string `json:"version"`
}

func (VmmPingResponse) isPayload() {}

// RemoveDeviceData identifies the device a vm.remove-device request
// targets.
type RemoveDeviceData struct {
	ID string `json:"id"`
}
