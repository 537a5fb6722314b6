// Package config defines the virtual machine configuration model shared
// between the control channel, the dispatcher and the HTTP surface.
package config

import (
	shellquote "github.com/kballard/go-shellquote"

	"github.com/embervm/ember/internal/errx"
)

const (
	DefaultBootVcpus = 1
	DefaultMaxVcpus  = 1
	DefaultMemoryMB  = 512
	DefaultMTU       = 1500
)

// Vm is the full machine configuration handed to vm.create.
type Vm struct {
	Kernel  Kernel   `json:"kernel"`
	Cpus    Cpus     `json:"cpus"`
	Memory  Memory   `json:"memory"`
	Disks   []Disk   `json:"disks,omitempty"`
	Fs      []Fs     `json:"fs,omitempty"`
	Pmem    []Pmem   `json:"pmem,omitempty"`
	Net     []Net    `json:"net,omitempty"`
	Vsock   []Vsock  `json:"vsock,omitempty"`
	Devices []Device `json:"devices,omitempty"`
	Serial  Console  `json:"serial,omitempty"`
	Console Console  `json:"console,omitempty"`
	Rng     Rng      `json:"rng,omitempty"`
}

type Kernel struct {
	Path      string `json:"path"`
	Cmdline   string `json:"cmdline,omitempty"`
	Initramfs string `json:"initramfs,omitempty"`
}

type Cpus struct {
	BootVcpus int `json:"boot_vcpus"`
	MaxVcpus  int `json:"max_vcpus"`
}

type Memory struct {
	SizeMB    int  `json:"size_mb"`
	Shared    bool `json:"shared,omitempty"`
	Mergeable bool `json:"mergeable,omitempty"`
}

type Disk struct {
	Path     string `json:"path"`
	ReadOnly bool   `json:"readonly,omitempty"`
	Direct   bool   `json:"direct,omitempty"`
}

type Fs struct {
	Tag    string `json:"tag"`
	Socket string `json:"socket"`
	Queues int    `json:"num_queues,omitempty"`
}

type Pmem struct {
	File     string `json:"file"`
	SizeMB   int    `json:"size_mb"`
	ReadOnly bool   `json:"readonly,omitempty"`
}

type Net struct {
	Tap  string `json:"tap,omitempty"`
	IP   string `json:"ip,omitempty"`
	Mask string `json:"mask,omitempty"`
	Mac  string `json:"mac,omitempty"`
	MTU  int    `json:"mtu,omitempty"`
}

type Vsock struct {
	CID    uint32 `json:"cid"`
	Socket string `json:"socket"`
}

// Device is a generic VFIO-style host device to pass through.
type Device struct {
	Path string `json:"path"`
	ID   string `json:"id,omitempty"`
}

type Console struct {
	Mode string `json:"mode,omitempty"` // "off", "tty", "file"
	File string `json:"file,omitempty"`
}

type Rng struct {
	Src string `json:"src,omitempty"`
}

// Default returns a minimal bootable configuration for the given kernel.
func Default(kernelPath string) *Vm {
	return &Vm{
		Kernel: Kernel{Path: kernelPath},
		Cpus:   Cpus{BootVcpus: DefaultBootVcpus, MaxVcpus: DefaultMaxVcpus},
		Memory: Memory{SizeMB: DefaultMemoryMB},
		Rng:    Rng{Src: "/dev/urandom"},
	}
}

// Validate checks the configuration before it is handed to the engine.
func (v *Vm) Validate() error {
	if v == nil {
		return ErrInvalidConfig
	}
	if v.Kernel.Path == "" {
		return ErrMissingKernel
	}
	if v.Cpus.BootVcpus <= 0 {
		return errx.With(ErrInvalidCpus, ": boot_vcpus must be > 0, got %d", v.Cpus.BootVcpus)
	}
	if v.Cpus.MaxVcpus < v.Cpus.BootVcpus {
		return errx.With(ErrInvalidCpus, ": max_vcpus %d < boot_vcpus %d", v.Cpus.MaxVcpus, v.Cpus.BootVcpus)
	}
	if v.Memory.SizeMB <= 0 {
		return errx.With(ErrInvalidMemory, ": size_mb must be > 0, got %d", v.Memory.SizeMB)
	}
	if _, err := shellquote.Split(v.Kernel.Cmdline); err != nil {
		return errx.With(ErrInvalidCmdline, ": %q: %w", v.Kernel.Cmdline, err)
	}
	for i := range v.Disks {
		if err := v.Disks[i].Validate(); err != nil {
			return err
		}
	}
	for i := range v.Fs {
		if err := v.Fs[i].Validate(); err != nil {
			return err
		}
	}
	for i := range v.Pmem {
		if err := v.Pmem[i].Validate(); err != nil {
			return err
		}
	}
	for i := range v.Vsock {
		if err := v.Vsock[i].Validate(); err != nil {
			return err
		}
	}
	for i := range v.Devices {
		if err := v.Devices[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Disk) Validate() error {
	if d.Path == "" {
		return errx.With(ErrInvalidDisk, ": path is required")
	}
	return nil
}

func (f *Fs) Validate() error {
	if f.Tag == "" {
		return errx.With(ErrInvalidFs, ": tag is required")
	}
	if f.Socket == "" {
		return errx.With(ErrInvalidFs, ": socket is required")
	}
	return nil
}

func (p *Pmem) Validate() error {
	if p.File == "" {
		return errx.With(ErrInvalidPmem, ": file is required")
	}
	if p.SizeMB <= 0 {
		return errx.With(ErrInvalidPmem, ": size_mb must be > 0, got %d", p.SizeMB)
	}
	return nil
}

func (s *Vsock) Validate() error {
	// CIDs below 3 are reserved (hypervisor, local, host).
	if s.CID < 3 {
		return errx.With(ErrInvalidVsock, ": guest cid must be >= 3, got %d", s.CID)
	}
	if s.Socket == "" {
		return errx.With(ErrInvalidVsock, ": socket is required")
	}
	return nil
}

func (d *Device) Validate() error {
	if d.Path == "" {
		return errx.With(ErrInvalidDevice, ": path is required")
	}
	return nil
}

// AppendCmdline appends args to the kernel command line with shell-safe
// quoting so values containing spaces survive a later split.
func (v *Vm) AppendCmdline(args ...string) {
	joined := shellquote.Join(args...)
	if v.Kernel.Cmdline == "" {
		v.Kernel.Cmdline = joined
		return
	}
	v.Kernel.Cmdline += " " + joined
}

// CmdlineArgs splits the kernel command line back into its arguments.
func (v *Vm) CmdlineArgs() ([]string, error) {
	args, err := shellquote.Split(v.Kernel.Cmdline)
	if err != nil {
		return nil, errx.With(ErrInvalidCmdline, ": %q: %w", v.Kernel.Cmdline, err)
	}
	return args, nil
}
