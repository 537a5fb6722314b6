package state

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := OpenRegistry(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSaveGet_RoundTrip(t *testing.T) {
	r := openTestRegistry(t)

	id := uuid.NewString()
	require.NoError(t, r.Save(&Instance{
		ID:         id,
		SocketPath: "/run/ember/" + id + ".sock",
		PID:        4321,
		VmState:    "created",
	}))

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 4321, got.PID)
	assert.Equal(t, "created", got.VmState)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSave_ReplacesStaleRow(t *testing.T) {
	r := openTestRegistry(t)

	id := uuid.NewString()
	require.NoError(t, r.Save(&Instance{ID: id, SocketPath: "/old.sock", PID: 1}))
	require.NoError(t, r.Save(&Instance{ID: id, SocketPath: "/new.sock", PID: 2}))

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "/new.sock", got.SocketPath)
	assert.Equal(t, 2, got.PID)

	all, err := r.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateVmState(t *testing.T) {
	r := openTestRegistry(t)

	id := uuid.NewString()
	require.NoError(t, r.Save(&Instance{ID: id, SocketPath: "/s.sock"}))
	require.NoError(t, r.UpdateVmState(id, "running"))

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "running", got.VmState)
}

func TestUpdateVmState_Unknown(t *testing.T) {
	r := openTestRegistry(t)
	assert.ErrorIs(t, r.UpdateVmState("ghost", "running"), ErrInstanceNotFound)
}

func TestGet_Unknown(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.Get("ghost")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestDelete(t *testing.T) {
	r := openTestRegistry(t)

	id := uuid.NewString()
	require.NoError(t, r.Save(&Instance{ID: id, SocketPath: "/s.sock"}))
	require.NoError(t, r.Delete(id))

	_, err := r.Get(id)
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	// Deleting an absent row is not an error.
	assert.NoError(t, r.Delete(id))
}

func TestReopen_KeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.db")

	r, err := OpenRegistry(path)
	require.NoError(t, err)
	id := uuid.NewString()
	require.NoError(t, r.Save(&Instance{ID: id, SocketPath: "/s.sock"}))
	require.NoError(t, r.Close())

	r, err = OpenRegistry(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "/s.sock", got.SocketPath)
}
