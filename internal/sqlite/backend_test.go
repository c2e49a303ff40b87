package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cortex/pkg/types"
)

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
	}

	require.NoError(t, b.Attach(config))
	defer b.Detach()

	dbPath := filepath.Join(tmpDir, DatabaseFile)
	_, err := os.Stat(dbPath)
	require.NoError(t, err, "database file not created")
	assert.Equal(t, dbPath, b.Path())

	assert.ErrorIs(t, b.Attach(config), types.ErrAlreadyAttached)
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	b := NewBackend()
	assert.ErrorIs(t, b.Attach(types.Config{}), types.ErrBackendEmpty)
	assert.ErrorIs(t, b.Attach(types.Config{Backend: "postgres"}), types.ErrBackendUnknown)
	assert.Nil(t, b.DB())
}

func TestBackend_Pragmas(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	defer b.Detach()

	var fk int
	require.NoError(t, b.DB().QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, b.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, b.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, types.DefaultBusyTimeoutMS, timeout)
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: types.InMemory}))

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "second Detach should not error")

	noop := func(types.Tx) error { return nil }
	assert.ErrorIs(t, b.Update(noop), types.ErrDetached)
	assert.ErrorIs(t, b.View(noop), types.ErrDetached)
	assert.Nil(t, b.DB())
}

func TestBackend_UpdateCommitsAndRollsBack(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: types.InMemory}))
	defer b.Detach()

	require.NoError(t, b.Update(func(tx types.Tx) error {
		_, err := CreateEntitySchema(tx, types.CreateEntitySchema{Name: "kept"})
		return err
	}))

	boom := errors.New("boom")
	err := b.Update(func(tx types.Tx) error {
		if _, err := CreateEntitySchema(tx, types.CreateEntitySchema{Name: "dropped"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, b.View(func(tx types.Tx) error {
		_, err := CreateEntitySchema(tx, types.CreateEntitySchema{Name: "viewed"})
		return err
	}))

	require.NoError(t, b.View(func(tx types.Tx) error {
		schemas, err := ListEntitySchemas(tx)
		require.NoError(t, err)
		require.Len(t, schemas, 1)
		assert.Equal(t, "kept", schemas[0].Name)
		return nil
	}))
}

func TestBackend_ReattachKeepsData(t *testing.T) {
	dir := t.TempDir()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	b := NewBackend()
	require.NoError(t, b.Attach(config))
	var id types.ID
	require.NoError(t, b.Update(func(tx types.Tx) error {
		s, err := CreateEntitySchema(tx, types.CreateEntitySchema{Name: "Note"})
		id = s.ID
		return err
	}))
	require.NoError(t, b.Detach())

	require.NoError(t, b.Attach(config))
	defer b.Detach()
	require.NoError(t, b.View(func(tx types.Tx) error {
		s, err := GetEntitySchema(tx, id)
		require.NoError(t, err)
		assert.Equal(t, "Note", s.Name)
		return nil
	}))
}
