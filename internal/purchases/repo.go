package purchases

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/grupofy/grupofy-backend/pkg/db"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
	"github.com/grupofy/grupofy-backend/pkg/pagination"
)

// Repo persists purchases.
type Repo interface {
	Insert(ctx context.Context, purchase *models.Purchase) error
	ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error)
	// List pages newest-first by purchase_date with id as tiebreaker.
	List(ctx context.Context, projectID uuid.UUID, joined *bool, limit int, cursor *pagination.Cursor) ([]models.Purchase, error)
	// ListAll streams every purchase of a project, oldest first, for export.
	ListAll(ctx context.Context, projectID uuid.UUID) ([]models.Purchase, error)
}

type gormRepo struct {
	client *db.Client
}

// NewRepo returns the Postgres-backed purchase repository.
func NewRepo(client *db.Client) (Repo, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	return &gormRepo{client: client}, nil
}

func (r *gormRepo) Insert(ctx context.Context, purchase *models.Purchase) error {
	return r.client.DB().WithContext(ctx).Create(purchase).Error
}

func (r *gormRepo) ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	err := r.client.DB().WithContext(ctx).
		Model(&models.Purchase{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepo) List(ctx context.Context, projectID uuid.UUID, joined *bool, limit int, cursor *pagination.Cursor) ([]models.Purchase, error) {
	query := r.client.DB().WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("purchase_date DESC, id DESC").
		Limit(limit)
	if joined != nil {
		query = query.Where("joined_group = ?", *joined)
	}
	if cursor != nil {
		query = query.Where(
			"(purchase_date < ?) OR (purchase_date = ? AND id < ?)",
			cursor.At, cursor.At, cursor.ID,
		)
	}
	var purchases []models.Purchase
	if err := query.Find(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *gormRepo) ListAll(ctx context.Context, projectID uuid.UUID) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.client.DB().WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("purchase_date ASC").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}
