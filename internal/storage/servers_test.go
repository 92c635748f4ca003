package storage

import (
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/peternagy/mongobrowse/internal/core"
	"github.com/peternagy/mongobrowse/internal/credential"
	"github.com/peternagy/mongobrowse/internal/types"
)

func setupTestServerService(t *testing.T) (*ServerService, *Service) {
	t.Helper()
	keyring.MockInit()
	storage := NewService(t.TempDir())
	svc, err := NewServerService(storage, credential.NewService())
	require.NoError(t, err)
	return svc, storage
}

func localServer(label string) types.ServerConfiguration {
	return types.ServerConfiguration{Label: label, Addresses: []string{"localhost"}, Username: "app"}
}

func TestSaveNewServer(t *testing.T) {
	svc, storage := setupTestServerService(t)

	saved, err := svc.Save(localServer("local"), types.Secrets{Password: "hunter2"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	// The password never reaches the JSON file.
	data, err := os.ReadFile(storage.ServersFile())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	var onDisk []types.ServerConfiguration
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, saved.ID, onDisk[0].ID)

	target, err := svc.Target(saved.ID)
	require.NoError(t, err)
	require.NotNil(t, target.Auth)
	assert.Equal(t, "hunter2", target.Auth.Password)
	assert.Equal(t, "admin", target.Auth.AuthDatabase)
	assert.Equal(t, types.DefaultMongoPort, target.Addresses[0].Port)
}

func TestSaveUpdateKeepsTimestampsAndSecrets(t *testing.T) {
	svc, _ := setupTestServerService(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return created }

	saved, err := svc.Save(localServer("local"), types.Secrets{Password: "pw"})
	require.NoError(t, err)

	svc.now = func() time.Time { return created.Add(time.Hour) }
	update := localServer("renamed")
	update.ID = saved.ID
	updated, err := svc.Save(update, types.Secrets{})
	require.NoError(t, err)
	assert.Equal(t, created, updated.CreatedAt)

	servers := svc.List()
	require.Len(t, servers, 1)
	assert.Equal(t, "renamed", servers[0].Label)

	target, err := svc.Target(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "pw", target.Auth.Password, "empty secrets keep the stored password")
}

func TestSaveRejectsInvalidConfiguration(t *testing.T) {
	svc, storage := setupTestServerService(t)

	_, err := svc.Save(types.ServerConfiguration{Label: "empty"}, types.Secrets{})
	var ce *core.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "addresses", ce.Field)

	_, err = svc.Save(types.ServerConfiguration{
		Label:     "tunnel",
		Addresses: []string{"db:27017"},
		SSHTunnel: &types.SSHTunnel{Host: "bastion"},
	}, types.Secrets{})
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "sshTunnel.user", ce.Field)

	assert.Empty(t, svc.List())
	assert.NoFileExists(t, storage.ServersFile())
}

func TestServersSurviveReload(t *testing.T) {
	svc, storage := setupTestServerService(t)
	a, err := svc.Save(localServer("a"), types.Secrets{})
	require.NoError(t, err)
	b, err := svc.Save(localServer("b"), types.Secrets{})
	require.NoError(t, err)

	reloaded, err := NewServerService(storage, credential.NewService())
	require.NoError(t, err)
	servers := reloaded.List()
	require.Len(t, servers, 2)
	assert.Equal(t, a.ID, servers[0].ID)
	assert.Equal(t, b.ID, servers[1].ID)
}

func TestGetAndFind(t *testing.T) {
	svc, _ := setupTestServerService(t)
	saved, err := svc.Save(localServer("prod"), types.Secrets{})
	require.NoError(t, err)

	got, err := svc.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "prod", got.Label)

	got, err = svc.Find("prod")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)

	_, err = svc.Get("prod")
	var nf *core.ConfigurationNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "prod", nf.ID)

	_, err = svc.Find("missing")
	assert.True(t, errors.As(err, &nf))
}

func TestDeleteServerRemovesSecrets(t *testing.T) {
	svc, _ := setupTestServerService(t)
	saved, err := svc.Save(localServer("local"), types.Secrets{Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(saved.ID))
	assert.Empty(t, svc.List())

	secrets, err := credential.NewService().LoadSecrets(saved.ID)
	require.NoError(t, err)
	assert.Empty(t, secrets.Password)

	var nf *core.ConfigurationNotFoundError
	assert.True(t, errors.As(svc.Delete(saved.ID), &nf))
}

func TestUpdateLastAccessed(t *testing.T) {
	svc, storage := setupTestServerService(t)
	saved, err := svc.Save(localServer("local"), types.Secrets{})
	require.NoError(t, err)
	assert.True(t, saved.LastAccessedAt.IsZero())

	accessed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return accessed }
	require.NoError(t, svc.UpdateLastAccessed(saved.ID))

	servers, err := storage.LoadServers()
	require.NoError(t, err)
	assert.True(t, accessed.Equal(servers[0].LastAccessedAt))

	var nf *core.ConfigurationNotFoundError
	assert.True(t, errors.As(svc.UpdateLastAccessed("missing"), &nf))
}

func TestTargetUnknownServer(t *testing.T) {
	svc, _ := setupTestServerService(t)
	_, err := svc.Target("missing")
	var nf *core.ConfigurationNotFoundError
	assert.True(t, errors.As(err, &nf))
}
