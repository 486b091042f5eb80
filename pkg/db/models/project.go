package models

import (
	"time"

	"github.com/google/uuid"
)

// Project groups a set of chat groups behind one webhook endpoint.
type Project struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string     `gorm:"type:text;not null"`
	Slug        string     `gorm:"type:text;not null;uniqueIndex"`
	Description *string    `gorm:"column:description"`
	LastSyncAt  *time.Time `gorm:"column:last_sync_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Groups []ProjectGroup `gorm:"foreignKey:ProjectID"`
}

func (Project) TableName() string { return "projects" }
