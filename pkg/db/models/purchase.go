package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase is one recorded sale for a project. TransactionID carries the
// upstream platform id and is globally unique, which is what makes webhook
// retries idempotent.
type Purchase struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	TransactionID string          `gorm:"column:transaction_id;type:text;not null;uniqueIndex"`
	CustomerName  string          `gorm:"column:customer_name;type:text;not null"`
	CustomerEmail string          `gorm:"column:customer_email;type:text;not null"`
	CustomerPhone string          `gorm:"column:customer_phone;type:text;not null;index"`
	ProductName   string          `gorm:"column:product_name;type:text;not null"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Platform      string          `gorm:"column:platform;type:text;not null"`
	PurchaseDate  time.Time       `gorm:"column:purchase_date;not null;index"`
	JoinedGroup   bool            `gorm:"column:joined_group;not null;default:false"`
	JoinedGroupID *string         `gorm:"column:joined_group_id"`
	JoinedAt      *time.Time      `gorm:"column:joined_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Purchase) TableName() string { return "purchases" }
