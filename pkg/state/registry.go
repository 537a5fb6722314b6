// Package state persists the registry of VMM instances so `emberd list`
// can report daemons across restarts.
package state

import (
	"database/sql"
	"errors"
	"time"

	"github.com/embervm/ember/internal/errx"
)

// Instance is one registered VMM daemon.
type Instance struct {
	ID         string
	SocketPath string
	PID        int
	VmState    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Registry struct {
	db *sql.DB
}

func OpenRegistry(path string) (*Registry, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Registry{db: db}, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// Save registers the instance, replacing any stale row with the same ID.
func (r *Registry) Save(inst *Instance) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(`
INSERT INTO instances (id, socket_path, pid, vm_state, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  socket_path = excluded.socket_path,
  pid = excluded.pid,
  vm_state = excluded.vm_state,
  updated_at = excluded.updated_at`,
		inst.ID, inst.SocketPath, inst.PID, inst.VmState,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return errx.Wrap(ErrSaveInstance, err)
	}
	return nil
}

// UpdateVmState records the instance's current VM lifecycle state.
func (r *Registry) UpdateVmState(id, vmState string) error {
	res, err := r.db.Exec(`
UPDATE instances SET vm_state = ?, updated_at = ? WHERE id = ?`,
		vmState, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return errx.Wrap(ErrUpdateInstance, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.Wrap(ErrUpdateInstance, err)
	}
	if n == 0 {
		return errx.With(ErrInstanceNotFound, ": %s", id)
	}
	return nil
}

// Get returns one instance by ID.
func (r *Registry) Get(id string) (*Instance, error) {
	row := r.db.QueryRow(`
SELECT id, socket_path, pid, vm_state, created_at, updated_at
FROM instances WHERE id = ?`, id)

	inst, err := scanInstance(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errx.With(ErrInstanceNotFound, ": %s", id)
	}
	if err != nil {
		return nil, errx.Wrap(ErrListInstances, err)
	}
	return inst, nil
}

// List returns all instances, newest first.
func (r *Registry) List() ([]*Instance, error) {
	rows, err := r.db.Query(`
SELECT id, socket_path, pid, vm_state, created_at, updated_at
FROM instances ORDER BY created_at DESC`)
	if err != nil {
		return nil, errx.Wrap(ErrListInstances, err)
	}
	defer rows.Close()

	var out []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, errx.Wrap(ErrListInstances, err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(ErrListInstances, err)
	}
	return out, nil
}

// Delete unregisters the instance.
func (r *Registry) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return errx.Wrap(ErrDeleteInstance, err)
	}
	return nil
}

func scanInstance(scan func(...any) error) (*Instance, error) {
	var inst Instance
	var createdAt, updatedAt string
	if err := scan(&inst.ID, &inst.SocketPath, &inst.PID, &inst.VmState, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	inst.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	inst.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &inst, nil
}
