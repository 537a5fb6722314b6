package vm

import (
	"context"

	"github.com/embervm/ember/pkg/config"
)

// Backend creates machines from a configuration snapshot.
type Backend interface {
	Create(ctx context.Context, cfg *config.Vm) (Machine, error)
	Name() string
}

// Machine is one running (or runnable) guest instance.
type Machine interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	PID() int
	Close() error
}
