package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookLog stores every webhook delivery before any parsing happens, so a
// payload in an unexpected shape is never lost.
type WebhookLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID uuid.UUID      `gorm:"type:uuid;not null;index"`
	EventType string          `gorm:"column:event_type;type:text;not null"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	Status    string          `gorm:"column:status;type:text;not null"`
	Error     *string         `gorm:"column:error"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime;index"`
}

func (WebhookLog) TableName() string { return "webhook_logs" }

// Webhook log statuses.
const (
	WebhookStatusReceived  = "received"
	WebhookStatusProcessed = "processed"
	WebhookStatusDuplicate = "duplicate"
	WebhookStatusFailed    = "failed"
)
