package purchase

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/grupofy/grupofy-backend/pkg/db"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
)

// recentLogLimit bounds the delivery history shown per project.
const recentLogLimit = 50

// LogRepo persists the raw delivery trail of webhook events.
type LogRepo interface {
	Append(ctx context.Context, log *models.WebhookLog) error
	SetStatus(ctx context.Context, id uuid.UUID, status string, errText *string) error
	Recent(ctx context.Context, projectID uuid.UUID) ([]models.WebhookLog, error)
	Clear(ctx context.Context, projectID uuid.UUID) (int64, error)
}

type gormLogRepo struct {
	client *db.Client
}

func NewLogRepo(client *db.Client) (LogRepo, error) {
	if client == nil {
		return nil, errors.New("db client is required")
	}
	return &gormLogRepo{client: client}, nil
}

func (r *gormLogRepo) Append(ctx context.Context, log *models.WebhookLog) error {
	return r.client.DB().WithContext(ctx).Create(log).Error
}

func (r *gormLogRepo) SetStatus(ctx context.Context, id uuid.UUID, status string, errText *string) error {
	return r.client.DB().WithContext(ctx).
		Model(&models.WebhookLog{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "error": errText}).Error
}

func (r *gormLogRepo) Recent(ctx context.Context, projectID uuid.UUID) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := r.client.DB().WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(recentLogLimit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *gormLogRepo) Clear(ctx context.Context, projectID uuid.UUID) (int64, error) {
	res := r.client.DB().WithContext(ctx).
		Where("project_id = ?", projectID).
		Delete(&models.WebhookLog{})
	return res.RowsAffected, res.Error
}
