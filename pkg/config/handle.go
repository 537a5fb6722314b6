package config

import (
	"encoding/json"
	"sync"
)

// Handle is the shared-ownership view of a Vm configuration. The dispatcher
// mutates it through Update, which holds the lock; any number of reader
// goroutines may take a Snapshot concurrently. The handle itself is shared
// by pointer, the snapshot is a detached copy.
type Handle struct {
	mu sync.Mutex
	vm *Vm
}

func NewHandle(vm *Vm) *Handle {
	return &Handle{vm: vm}
}

// Snapshot returns a deep copy of the current configuration.
func (h *Handle) Snapshot() Vm {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.vm.clone()
}

// Update applies fn to the configuration under the handle's lock.
func (h *Handle) Update(fn func(*Vm)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.vm)
}

// MarshalJSON serializes a locked snapshot, so a handle embedded in a
// response marshals as the plain configuration object.
func (h *Handle) MarshalJSON() ([]byte, error) {
	snap := h.Snapshot()
	return json.Marshal(&snap)
}

func (h *Handle) UnmarshalJSON(data []byte) error {
	var vm Vm
	if err := json.Unmarshal(data, &vm); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.vm = &vm
	return nil
}

func (v *Vm) clone() Vm {
	out := *v
	out.Disks = append([]Disk(nil), v.Disks...)
	out.Fs = append([]Fs(nil), v.Fs...)
	out.Pmem = append([]Pmem(nil), v.Pmem...)
	out.Net = append([]Net(nil), v.Net...)
	out.Vsock = append([]Vsock(nil), v.Vsock...)
	out.Devices = append([]Device(nil), v.Devices...)
	return out
}
