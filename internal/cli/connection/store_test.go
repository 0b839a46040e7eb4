package connection

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStoreAt(filepath.Join(t.TempDir(), "nested", "connection.json"))
}

func TestLoadWithoutSave(t *testing.T) {
	s := testStore(t)

	_, err := s.Load()
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestSaveAndLoad(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.Save(&Connection{
		ServerURL: "http://localhost:8080",
		Token:     "tok",
	}))

	conn, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", conn.ServerURL)
	assert.Equal(t, "tok", conn.Token)
}

func TestSaveUsesOwnerOnlyPermissions(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(&Connection{ServerURL: "http://localhost:8080"}))

	info, err := os.Stat(s.path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestClear(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Save(&Connection{ServerURL: "http://localhost:8080"}))
	require.NoError(t, s.Clear())

	_, err := s.Load()
	assert.True(t, errors.Is(err, ErrNotConnected))

	// Clearing twice is fine.
	require.NoError(t, s.Clear())
}
