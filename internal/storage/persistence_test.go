package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigDir(t *testing.T) {
	explicit := filepath.Join(t.TempDir(), "explicit")
	fromEnv := filepath.Join(t.TempDir(), "env")
	t.Setenv(ConfigDirEnv, fromEnv)

	dir, err := InitConfigDir(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, dir, "explicit dir wins over the environment")
	assert.DirExists(t, explicit)

	dir, err = InitConfigDir("")
	require.NoError(t, err)
	assert.Equal(t, fromEnv, dir)
	assert.DirExists(t, fromEnv)
}

func TestLoadServersMissingFile(t *testing.T) {
	svc := NewService(t.TempDir())
	servers, err := svc.LoadServers()
	require.NoError(t, err)
	assert.NotNil(t, servers)
	assert.Empty(t, servers)
}

func TestLoadServersCorruptFile(t *testing.T) {
	svc := NewService(t.TempDir())
	require.NoError(t, os.WriteFile(svc.ServersFile(), []byte("{not json"), 0600))

	_, err := svc.LoadServers()
	assert.ErrorContains(t, err, "servers.json")
}

func TestPersistedFilesArePrivate(t *testing.T) {
	svc := NewService(t.TempDir())
	require.NoError(t, svc.PersistQueries(nil))

	info, err := os.Stat(svc.QueriesFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
