package vm

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/embervm/ember/internal/errx"
	"github.com/embervm/ember/pkg/config"
)

// Vm is one guest owned by the dispatcher. All methods are called from the
// dispatcher goroutine; the mutex only protects against concurrent readers
// of State.
type Vm struct {
	mu      sync.Mutex
	cfg     *config.Handle
	backend Backend
	machine Machine
	state   State
}

// New wraps a validated configuration into a created, not yet booted VM.
func New(cfg *config.Handle, backend Backend) *Vm {
	return &Vm{
		cfg:     cfg,
		backend: backend,
		state:   StateCreated,
	}
}

func (v *Vm) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Config returns the live shared configuration handle.
func (v *Vm) Config() *config.Handle {
	return v.cfg
}

// Boot starts the machine. Valid from the created and shutdown states.
func (v *Vm) Boot(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == StateRunning {
		return ErrAlreadyRunning
	}

	snap := v.cfg.Snapshot()
	machine, err := v.backend.Create(ctx, &snap)
	if err != nil {
		return err
	}
	if err := machine.Start(ctx); err != nil {
		_ = machine.Close()
		return err
	}

	v.machine = machine
	v.state = StateRunning
	return nil
}

// Shutdown stops the running machine. The VM stays deletable and bootable.
func (v *Vm) Shutdown(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shutdownLocked(ctx)
}

func (v *Vm) shutdownLocked(ctx context.Context) error {
	if v.state != StateRunning {
		return ErrNotRunning
	}

	if err := v.machine.Stop(ctx); err != nil {
		return err
	}
	_ = v.machine.Close()
	v.machine = nil
	v.state = StateShutdown
	return nil
}

// Reboot stops and restarts the running machine with the current
// configuration, picking up devices attached since the last boot.
func (v *Vm) Reboot(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.shutdownLocked(ctx); err != nil {
		return err
	}

	snap := v.cfg.Snapshot()
	machine, err := v.backend.Create(ctx, &snap)
	if err != nil {
		return err
	}
	if err := machine.Start(ctx); err != nil {
		_ = machine.Close()
		return err
	}

	v.machine = machine
	v.state = StateRunning
	return nil
}

// Delete tears the VM down. A running machine is shut down first.
func (v *Vm) Delete(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == StateRunning {
		if err := v.shutdownLocked(ctx); err != nil {
			return err
		}
	}
	return nil
}

// AddDevice attaches a passthrough device to the configuration. An ID is
// assigned when the caller did not provide one. Takes effect at next boot.
func (v *Vm) AddDevice(d config.Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	var dup bool
	v.cfg.Update(func(vm *config.Vm) {
		for i := range vm.Devices {
			if vm.Devices[i].ID == d.ID {
				dup = true
				return
			}
		}
		vm.Devices = append(vm.Devices, d)
	})
	if dup {
		return errx.With(ErrDeviceExists, ": %s", d.ID)
	}
	return nil
}

// RemoveDevice detaches a previously added device by ID.
func (v *Vm) RemoveDevice(id string) error {
	var found bool
	v.cfg.Update(func(vm *config.Vm) {
		for i := range vm.Devices {
			if vm.Devices[i].ID == id {
				vm.Devices = append(vm.Devices[:i], vm.Devices[i+1:]...)
				found = true
				return
			}
		}
	})
	if !found {
		return errx.With(ErrDeviceNotFound, ": %s", id)
	}
	return nil
}

func (v *Vm) AddDisk(d config.Disk) error {
	if err := d.Validate(); err != nil {
		return err
	}
	v.cfg.Update(func(vm *config.Vm) {
		vm.Disks = append(vm.Disks, d)
	})
	return nil
}

func (v *Vm) AddFs(f config.Fs) error {
	if err := f.Validate(); err != nil {
		return err
	}
	v.cfg.Update(func(vm *config.Vm) {
		vm.Fs = append(vm.Fs, f)
	})
	return nil
}

func (v *Vm) AddPmem(p config.Pmem) error {
	if err := p.Validate(); err != nil {
		return err
	}
	v.cfg.Update(func(vm *config.Vm) {
		vm.Pmem = append(vm.Pmem, p)
	})
	return nil
}

func (v *Vm) AddNet(n config.Net) error {
	v.cfg.Update(func(vm *config.Vm) {
		vm.Net = append(vm.Net, n)
	})
	return nil
}

func (v *Vm) AddVsock(s config.Vsock) error {
	if err := s.Validate(); err != nil {
		return err
	}
	v.cfg.Update(func(vm *config.Vm) {
		vm.Vsock = append(vm.Vsock, s)
	})
	return nil
}
