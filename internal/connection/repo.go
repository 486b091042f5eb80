package connection

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/grupofy/grupofy-backend/pkg/db"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
)

type gormCredentialRepo struct {
	client *db.Client
}

// NewCredentialRepo returns the Postgres-backed credential repository.
func NewCredentialRepo(client *db.Client) (CredentialRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	return &gormCredentialRepo{client: client}, nil
}

func (r *gormCredentialRepo) Get(ctx context.Context, sessionID string) (*models.MessengerCredential, error) {
	var record models.MessengerCredential
	err := r.client.DB().WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *gormCredentialRepo) Upsert(ctx context.Context, sessionID string, payload []byte) error {
	record := models.MessengerCredential{SessionID: sessionID, Payload: payload}
	return r.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&record).Error
}

func (r *gormCredentialRepo) Delete(ctx context.Context, sessionID string) error {
	return r.client.DB().WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.MessengerCredential{}).Error
}
