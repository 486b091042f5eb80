package connection

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grupofy/grupofy-backend/pkg/config"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

func newTestCredentialStore(t *testing.T, backup bool) (*CredentialStore, *fakeRepo, config.MessengerConfig) {
	t.Helper()
	cfg := config.MessengerConfig{
		AuthPath:         filepath.Join(t.TempDir(), "auth.db"),
		SessionID:        "primary",
		BackupEnabled:    backup,
		LogoutRetryDelay: time.Millisecond,
	}
	repo := &fakeRepo{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	store, err := NewCredentialStore(cfg, repo, logg)
	require.NoError(t, err)
	return store, repo, cfg
}

func TestRestoreMissingBackupIsNotAnError(t *testing.T) {
	store, _, cfg := newTestCredentialStore(t, true)

	require.NoError(t, store.Restore(context.Background()))
	_, err := os.Stat(cfg.AuthPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreWritesBackupToDisk(t *testing.T) {
	store, repo, cfg := newTestCredentialStore(t, true)
	repo.payload = []byte("session-bytes")

	require.NoError(t, store.Restore(context.Background()))

	data, err := os.ReadFile(cfg.AuthPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("session-bytes"), data)
}

func TestRestoreNeverOverwritesLocalStore(t *testing.T) {
	store, repo, cfg := newTestCredentialStore(t, true)
	repo.payload = []byte("stale-backup")
	require.NoError(t, os.WriteFile(cfg.AuthPath, []byte("local"), 0o600))

	require.NoError(t, store.Restore(context.Background()))

	data, err := os.ReadFile(cfg.AuthPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("local"), data)
}

func TestBackupUploadsLocalStore(t *testing.T) {
	store, repo, cfg := newTestCredentialStore(t, true)
	require.NoError(t, os.WriteFile(cfg.AuthPath, []byte("fresh"), 0o600))

	require.NoError(t, store.Backup(context.Background()))
	assert.Equal(t, []byte("fresh"), repo.payload)
}

func TestBackupSkippedWhenDisabled(t *testing.T) {
	store, repo, cfg := newTestCredentialStore(t, false)
	require.NoError(t, os.WriteFile(cfg.AuthPath, []byte("fresh"), 0o600))

	require.NoError(t, store.Backup(context.Background()))
	assert.Nil(t, repo.payload)
}

func TestWipeRemovesLocalAndBackup(t *testing.T) {
	store, repo, cfg := newTestCredentialStore(t, true)
	require.NoError(t, os.WriteFile(cfg.AuthPath, []byte("fresh"), 0o600))
	require.NoError(t, os.WriteFile(cfg.AuthPath+"-wal", []byte("wal"), 0o600))
	repo.payload = []byte("fresh")

	require.NoError(t, store.Wipe(context.Background()))

	_, err := os.Stat(cfg.AuthPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(cfg.AuthPath + "-wal")
	assert.True(t, os.IsNotExist(err))
	assert.True(t, repo.deleted)
}
