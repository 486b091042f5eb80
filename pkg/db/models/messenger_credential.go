package models

import (
	"time"

	"github.com/google/uuid"
)

// MessengerCredential is the durable backup of the local session store. One
// row per session id; the payload is the serialized auth database.
type MessengerCredential struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID string    `gorm:"column:session_id;type:text;not null;uniqueIndex"`
	Payload   []byte    `gorm:"column:payload;type:bytea;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (MessengerCredential) TableName() string { return "messenger_credentials" }
