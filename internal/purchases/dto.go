package purchases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/grupofy/grupofy-backend/pkg/pagination"
)

// ManualInput is the operator-entered purchase payload.
type ManualInput struct {
	Name         string          `json:"name" validate:"required,min=2,max=120"`
	Email        string          `json:"email" validate:"omitempty,email"`
	Phone        string          `json:"phone" validate:"required,min=8"`
	Product      string          `json:"product" validate:"max=200"`
	Price        decimal.Decimal `json:"price"`
	PurchaseDate *time.Time      `json:"purchaseDate"`
}

// ImportRow is one line of a bulk import.
type ImportRow struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required,min=8"`
	Email   string `json:"email" validate:"omitempty,email"`
	Product string `json:"product"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Joined   int `json:"joined"`
}

// ListParams filters the purchase listing.
type ListParams struct {
	Pagination pagination.Params
	Joined     *bool
}

// View is the purchase representation returned to operators.
type View struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID string          `json:"transactionId"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerPhone string          `json:"customerPhone"`
	ProductName   string          `json:"productName"`
	Price         decimal.Decimal `json:"price"`
	Platform      string          `json:"platform"`
	PurchaseDate  time.Time       `json:"purchaseDate"`
	JoinedGroup   bool            `json:"joinedGroup"`
	JoinedGroupID *string         `json:"joinedGroupId,omitempty"`
	JoinedAt      *time.Time      `json:"joinedAt,omitempty"`
}

// Page is one page of purchases with the cursor for the next one.
type Page struct {
	Items      []View `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}
