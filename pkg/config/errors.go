package config

import "errors"

var (
	ErrInvalidConfig  = errors.New("invalid vm config")
	ErrMissingKernel  = errors.New("kernel image path is required")
	ErrInvalidCpus    = errors.New("invalid cpus config")
	ErrInvalidMemory  = errors.New("invalid memory config")
	ErrInvalidDisk    = errors.New("invalid disk config")
	ErrInvalidFs      = errors.New("invalid fs config")
	ErrInvalidPmem    = errors.New("invalid pmem config")
	ErrInvalidNet     = errors.New("invalid net config")
	ErrInvalidVsock   = errors.New("invalid vsock config")
	ErrInvalidDevice  = errors.New("invalid device config")
	ErrInvalidCmdline = errors.New("invalid kernel cmdline")
)
