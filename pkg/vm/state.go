// Package vm models a single guest: its lifecycle state and the backend
// machine that runs it.
package vm

// State is the guest lifecycle state. It is copied into info responses as
// a value, never as a reference.
type State string

const (
	// StateCreated means the VM exists but has not been booted.
	StateCreated State = "created"
	// StateRunning means the VM has been booted and is executing.
	StateRunning State = "running"
	// StateShutdown means the VM ran and has been shut down. It can be
	// booted again.
	StateShutdown State = "shutdown"
)

func (s State) String() string {
	return string(s)
}
