package vm

import "errors"

var (
	ErrNotRunning     = errors.New("vm is not running")
	ErrAlreadyRunning = errors.New("vm is already running")
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceExists   = errors.New("device already attached")
)

// Process backend errors
var (
	ErrHypervisorNotFound = errors.New("hypervisor binary not found")
	ErrStartHypervisor    = errors.New("start hypervisor")
	ErrStopHypervisor     = errors.New("stop hypervisor")
	ErrCreateLogFile      = errors.New("create hypervisor log file")
)
