package state

import "errors"

var (
	ErrOpenRegistry     = errors.New("state: open registry")
	ErrMigrateRegistry  = errors.New("state: migrate registry")
	ErrSaveInstance     = errors.New("state: save instance")
	ErrUpdateInstance   = errors.New("state: update instance")
	ErrListInstances    = errors.New("state: list instances")
	ErrDeleteInstance   = errors.New("state: delete instance")
	ErrInstanceNotFound = errors.New("state: instance not found")
)
