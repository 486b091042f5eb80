package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grupofy/grupofy-backend/pkg/db"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
)

// Repo persists roster snapshots.
type Repo interface {
	// ReplaceRoster swaps one group's stored roster for the fresh set in a
	// single transaction, so readers never observe a half-written roster.
	ReplaceRoster(ctx context.Context, projectID uuid.UUID, groupID string, members []models.GroupMember) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.GroupMember, error)
	MarkProjectSynced(ctx context.Context, projectID uuid.UUID, at time.Time) error
}

type gormRepo struct {
	client *db.Client
}

// NewRepo returns the Postgres-backed membership repository.
func NewRepo(client *db.Client) (Repo, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	return &gormRepo{client: client}, nil
}

func (r *gormRepo) ReplaceRoster(ctx context.Context, projectID uuid.UUID, groupID string, members []models.GroupMember) error {
	return r.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.
			Where("project_id = ? AND group_id = ?", projectID, groupID).
			Delete(&models.GroupMember{}).Error; err != nil {
			return fmt.Errorf("clearing roster: %w", err)
		}
		if len(members) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(members, 500).Error; err != nil {
			return fmt.Errorf("inserting roster: %w", err)
		}
		return nil
	})
}

func (r *gormRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.client.DB().WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("synced_at DESC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return members, nil
}

func (r *gormRepo) MarkProjectSynced(ctx context.Context, projectID uuid.UUID, at time.Time) error {
	return r.client.DB().WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ?", projectID).
		Update("last_sync_at", at).Error
}
