package models

import (
	"time"

	"github.com/google/uuid"
)

// GroupMember is one roster entry captured during a sync pass. Phone holds the
// digits exactly as the messenger delivered them, so purchase matching can run
// substring containment against the full international number. Opaque marks
// privacy-shielded entries whose identifier is not a phone number at all.
type GroupMember struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index:idx_group_members_project_group"`
	GroupID   string    `gorm:"column:group_id;type:text;not null;index:idx_group_members_project_group"`
	Phone     string    `gorm:"column:phone;type:text;not null;index"`
	Name      string    `gorm:"column:name;type:text;not null;default:''"`
	IsAdmin   bool      `gorm:"column:is_admin;not null;default:false"`
	Opaque    bool      `gorm:"column:opaque;not null;default:false"`
	SyncedAt  time.Time `gorm:"column:synced_at;not null"`
}

func (GroupMember) TableName() string { return "group_members" }
