package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grupofy/grupofy-backend/pkg/db"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
)

type Store struct {
	client *db.Client
}

// NewStore returns the Postgres-backed reconciliation data access, covering
// all three source interfaces.
func NewStore(client *db.Client) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	return &Store{client: client}, nil
}

func (s *Store) RealMembersByProject(ctx context.Context, projectID uuid.UUID) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := s.client.DB().WithContext(ctx).
		Where("project_id = ? AND opaque = FALSE", projectID).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) ProjectIDsForGroup(ctx context.Context, groupID string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.client.DB().WithContext(ctx).
		Model(&models.ProjectGroup{}).
		Where("group_id = ?", groupID).
		Pluck("project_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) PendingByProject(ctx context.Context, projectID uuid.UUID, phoneClause string, phoneArg any) ([]models.Purchase, error) {
	query := s.client.DB().WithContext(ctx).
		Where("project_id = ? AND joined_group = FALSE", projectID)
	if phoneClause != "" {
		query = query.Where(phoneClause, phoneArg)
	}
	var purchases []models.Purchase
	if err := query.Find(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) MarkJoined(ctx context.Context, purchaseID uuid.UUID, groupID string, at time.Time) (bool, error) {
	// the joined_group guard makes the flip idempotent
	result := s.client.DB().WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND joined_group = FALSE", purchaseID).
		Updates(map[string]any{
			"joined_group":    true,
			"joined_group_id": groupID,
			"joined_at":       at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
