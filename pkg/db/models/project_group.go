package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectGroup links a messenger group to a project. The same group may be
// attached to several projects, but only once per project.
type ProjectGroup struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_project_groups_project_group"`
	GroupID   string    `gorm:"column:group_id;type:text;not null;uniqueIndex:idx_project_groups_project_group"`
	GroupName string    `gorm:"column:group_name;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ProjectGroup) TableName() string { return "project_groups" }
