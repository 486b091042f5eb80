package projects

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grupofy/grupofy-backend/pkg/db"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
)

// Repo persists projects and their group links.
type Repo interface {
	Create(ctx context.Context, project *models.Project, groups []models.ProjectGroup) error
	// Update persists the project fields and, when groups is non-nil,
	// replaces every group link in the same transaction.
	Update(ctx context.Context, project *models.Project, groups []models.ProjectGroup) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetBySlug(ctx context.Context, slug string) (*models.Project, error)
	List(ctx context.Context) ([]models.Project, error)
	// Delete removes the project and everything hanging off it in one
	// transaction: group links, purchases, stored members, webhook logs.
	Delete(ctx context.Context, id uuid.UUID) error
	AddGroup(ctx context.Context, group *models.ProjectGroup) error
	RemoveGroup(ctx context.Context, projectID uuid.UUID, groupID string) (bool, error)
	GroupsForProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectGroup, error)
	ProjectsForGroup(ctx context.Context, groupID string) ([]uuid.UUID, error)
	Stats(ctx context.Context, projectID uuid.UUID) (*Stats, error)
}

type gormRepo struct {
	client *db.Client
}

// NewRepo returns the Postgres-backed project repository.
func NewRepo(client *db.Client) (Repo, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}
	return &gormRepo{client: client}, nil
}

func (r *gormRepo) Create(ctx context.Context, project *models.Project, groups []models.ProjectGroup) error {
	return r.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		for i := range groups {
			groups[i].ProjectID = project.ID
		}
		if len(groups) > 0 {
			if err := tx.Create(&groups).Error; err != nil {
				return err
			}
		}
		project.Groups = groups
		return nil
	})
}

func (r *gormRepo) Update(ctx context.Context, project *models.Project, groups []models.ProjectGroup) error {
	return r.client.WithTx(ctx, func(tx *gorm.DB) error {
		err := tx.Model(&models.Project{}).
			Where("id = ?", project.ID).
			Updates(map[string]any{
				"name":        project.Name,
				"description": project.Description,
			}).Error
		if err != nil {
			return err
		}
		if groups == nil {
			return nil
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.ProjectGroup{}).Error; err != nil {
			return err
		}
		if len(groups) > 0 {
			if err := tx.Create(&groups).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := r.client.DB().WithContext(ctx).
		Preload("Groups").
		Where("id = ?", id).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *gormRepo) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	var project models.Project
	err := r.client.DB().WithContext(ctx).
		Preload("Groups").
		Where("slug = ?", slug).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *gormRepo) List(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := r.client.DB().WithContext(ctx).
		Preload("Groups").
		Order("created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *gormRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.client.WithTx(ctx, func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.WebhookLog{},
			&models.GroupMember{},
			&models.Purchase{},
			&models.ProjectGroup{},
		} {
			if err := tx.Where("project_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&models.Project{}).Error
	})
}

func (r *gormRepo) AddGroup(ctx context.Context, group *models.ProjectGroup) error {
	return r.client.DB().WithContext(ctx).Create(group).Error
}

func (r *gormRepo) RemoveGroup(ctx context.Context, projectID uuid.UUID, groupID string) (bool, error) {
	result := r.client.DB().WithContext(ctx).
		Where("project_id = ? AND group_id = ?", projectID, groupID).
		Delete(&models.ProjectGroup{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepo) GroupsForProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectGroup, error) {
	var groups []models.ProjectGroup
	err := r.client.DB().WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *gormRepo) ProjectsForGroup(ctx context.Context, groupID string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.client.DB().WithContext(ctx).
		Model(&models.ProjectGroup{}).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Pluck("project_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *gormRepo) Stats(ctx context.Context, projectID uuid.UUID) (*Stats, error) {
	conn := r.client.DB().WithContext(ctx)
	stats := &Stats{}

	if err := conn.Model(&models.Purchase{}).
		Where("project_id = ?", projectID).
		Count(&stats.TotalPurchases).Error; err != nil {
		return nil, err
	}
	if err := conn.Model(&models.Purchase{}).
		Where("project_id = ? AND joined_group = TRUE", projectID).
		Count(&stats.JoinedPurchases).Error; err != nil {
		return nil, err
	}
	stats.PendingPurchases = stats.TotalPurchases - stats.JoinedPurchases

	if err := conn.Model(&models.GroupMember{}).
		Where("project_id = ? AND opaque = FALSE", projectID).
		Count(&stats.MemberCount).Error; err != nil {
		return nil, err
	}
	if err := conn.Model(&models.ProjectGroup{}).
		Where("project_id = ?", projectID).
		Count(&stats.GroupCount).Error; err != nil {
		return nil, err
	}

	var project models.Project
	if err := conn.Where("id = ?", projectID).First(&project).Error; err != nil {
		return nil, err
	}
	stats.LastSyncAt = project.LastSyncAt
	return stats, nil
}
