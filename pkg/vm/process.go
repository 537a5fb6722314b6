package vm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/embervm/ember/internal/errx"
	"github.com/embervm/ember/pkg/config"
)

const stopGracePeriod = 5 * time.Second

// ProcessBackend runs each guest as a child hypervisor process, the way a
// jailer-style launcher would. The binary is looked up once at Create.
type ProcessBackend struct {
	// Binary is the hypervisor executable to spawn.
	Binary string
	// LogDir receives one log file per machine. Empty disables logging.
	LogDir string
}

func NewProcessBackend(binary, logDir string) *ProcessBackend {
	return &ProcessBackend{Binary: binary, LogDir: logDir}
}

func (b *ProcessBackend) Name() string {
	return "process"
}

func (b *ProcessBackend) Create(ctx context.Context, cfg *config.Vm) (Machine, error) {
	path, err := exec.LookPath(b.Binary)
	if err != nil {
		return nil, errx.With(ErrHypervisorNotFound, ": %s: %w", b.Binary, err)
	}
	return &processMachine{
		binary: path,
		logDir: b.LogDir,
		cfg:    cfg,
	}, nil
}

type processMachine struct {
	binary  string
	logDir  string
	cfg     *config.Vm
	cmd     *exec.Cmd
	logFile *os.File
	started bool
}

func (m *processMachine) Start(ctx context.Context) error {
	if m.started {
		return nil
	}

	m.cmd = exec.CommandContext(ctx, m.binary, machineArgs(m.cfg)...)

	if m.logDir != "" {
		logPath := filepath.Join(m.logDir, fmt.Sprintf("vm-%d.log", time.Now().UnixNano()))
		logFile, err := os.Create(logPath)
		if err != nil {
			return errx.Wrap(ErrCreateLogFile, err)
		}
		m.logFile = logFile
		m.cmd.Stdout = logFile
		m.cmd.Stderr = logFile
	}

	if err := m.cmd.Start(); err != nil {
		return errx.Wrap(ErrStartHypervisor, err)
	}
	m.started = true
	return nil
}

func (m *processMachine) Stop(ctx context.Context) error {
	if !m.started || m.cmd.Process == nil {
		return nil
	}

	if err := m.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return errx.Wrap(ErrStopHypervisor, err)
	}

	waited := make(chan error, 1)
	go func() {
		waited <- m.cmd.Wait()
	}()

	select {
	case <-waited:
	case <-time.After(stopGracePeriod):
		_ = m.cmd.Process.Kill()
		<-waited
	case <-ctx.Done():
		_ = m.cmd.Process.Kill()
		<-waited
	}

	m.started = false
	return nil
}

func (m *processMachine) PID() int {
	if m.cmd == nil || m.cmd.Process == nil {
		return 0
	}
	return m.cmd.Process.Pid
}

func (m *processMachine) Close() error {
	if m.logFile != nil {
		return m.logFile.Close()
	}
	return nil
}

// machineArgs translates the configuration into hypervisor CLI arguments.
func machineArgs(cfg *config.Vm) []string {
	args := []string{
		"--kernel", cfg.Kernel.Path,
		"--cpus", fmt.Sprintf("boot=%d,max=%d", cfg.Cpus.BootVcpus, cfg.Cpus.MaxVcpus),
		"--memory", fmt.Sprintf("size=%dM", cfg.Memory.SizeMB),
	}
	if cfg.Kernel.Cmdline != "" {
		args = append(args, "--cmdline", cfg.Kernel.Cmdline)
	}
	if cfg.Kernel.Initramfs != "" {
		args = append(args, "--initramfs", cfg.Kernel.Initramfs)
	}
	for _, d := range cfg.Disks {
		spec := "path=" + d.Path
		if d.ReadOnly {
			spec += ",readonly=on"
		}
		args = append(args, "--disk", spec)
	}
	for _, f := range cfg.Fs {
		args = append(args, "--fs", fmt.Sprintf("tag=%s,socket=%s", f.Tag, f.Socket))
	}
	for _, p := range cfg.Pmem {
		args = append(args, "--pmem", fmt.Sprintf("file=%s,size=%dM", p.File, p.SizeMB))
	}
	for _, n := range cfg.Net {
		var parts []string
		if n.Tap != "" {
			parts = append(parts, "tap="+n.Tap)
		}
		if n.IP != "" {
			parts = append(parts, "ip="+n.IP)
		}
		if n.Mac != "" {
			parts = append(parts, "mac="+n.Mac)
		}
		args = append(args, "--net", strings.Join(parts, ","))
	}
	for _, s := range cfg.Vsock {
		args = append(args, "--vsock", fmt.Sprintf("cid=%d,socket=%s", s.CID, s.Socket))
	}
	for _, d := range cfg.Devices {
		args = append(args, "--device", "path="+d.Path)
	}
	return args
}
