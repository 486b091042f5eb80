package connection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/grupofy/grupofy-backend/pkg/config"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

// CredentialRepo persists the durable copy of the session auth store.
type CredentialRepo interface {
	Get(ctx context.Context, sessionID string) (*models.MessengerCredential, error)
	Upsert(ctx context.Context, sessionID string, payload []byte) error
	Delete(ctx context.Context, sessionID string) error
}

// CredentialStore mirrors the local auth database into a durable backup so a
// paired session survives host rebuilds, and wipes both copies on logout.
type CredentialStore struct {
	cfg  config.MessengerConfig
	repo CredentialRepo
	logg *logger.Logger
}

// NewCredentialStore validates dependencies and builds the store.
func NewCredentialStore(cfg config.MessengerConfig, repo CredentialRepo, logg *logger.Logger) (*CredentialStore, error) {
	if repo == nil {
		return nil, fmt.Errorf("credential repo is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &CredentialStore{cfg: cfg, repo: repo, logg: logg}, nil
}

// Restore copies the durable backup onto local disk when no local auth store
// exists yet. A missing backup is not an error, it just means first-time
// pairing. Restore never overwrites an existing local store.
func (s *CredentialStore) Restore(ctx context.Context) error {
	if _, err := os.Stat(s.cfg.AuthPath); err == nil {
		return nil
	}

	record, err := s.repo.Get(ctx, s.cfg.SessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Info(ctx, "no credential backup found, pairing from scratch")
			return nil
		}
		return fmt.Errorf("reading credential backup: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.AuthPath), 0o755); err != nil {
		return fmt.Errorf("creating auth store dir: %w", err)
	}
	if err := os.WriteFile(s.cfg.AuthPath, record.Payload, 0o600); err != nil {
		return fmt.Errorf("writing restored auth store: %w", err)
	}

	s.logg.Info(ctx, "credential backup restored to local auth store")
	return nil
}

// Backup uploads the current local auth store to the durable backup. Skipped
// when backups are disabled or the local store does not exist yet.
func (s *CredentialStore) Backup(ctx context.Context) error {
	if !s.cfg.BackupEnabled {
		return nil
	}

	payload, err := os.ReadFile(s.cfg.AuthPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading local auth store: %w", err)
	}

	if err := s.repo.Upsert(ctx, s.cfg.SessionID, payload); err != nil {
		return fmt.Errorf("uploading credential backup: %w", err)
	}
	return nil
}

// Wipe removes the local auth store, its sqlite siblings, and the durable
// backup. Called when the platform reports an explicit logout, so the next
// connect starts a fresh pairing.
func (s *CredentialStore) Wipe(ctx context.Context) error {
	for _, path := range []string{s.cfg.AuthPath, s.cfg.AuthPath + "-wal", s.cfg.AuthPath + "-shm"} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}

	if err := s.repo.Delete(ctx, s.cfg.SessionID); err != nil {
		return fmt.Errorf("deleting credential backup: %w", err)
	}

	s.logg.Warn(ctx, "messenger credentials wiped")
	return nil
}
