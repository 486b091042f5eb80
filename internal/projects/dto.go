package projects

import (
	"time"

	"github.com/google/uuid"
)

// CreateInput is the payload for creating a project.
type CreateInput struct {
	Name        string       `json:"name" validate:"required,min=2,max=120"`
	Description string       `json:"description" validate:"max=500"`
	Groups      []GroupInput `json:"groups" validate:"dive"`
}

// UpdateInput renames a project and optionally replaces its group links.
// A nil Groups keeps the existing links; an empty array clears them.
type UpdateInput struct {
	Name        string       `json:"name" validate:"required,min=2,max=120"`
	Description string       `json:"description" validate:"max=500"`
	Groups      []GroupInput `json:"groups" validate:"omitempty,dive"`
}

// GroupInput links one group at creation or afterwards.
type GroupInput struct {
	GroupID   string `json:"groupId" validate:"required"`
	GroupName string `json:"groupName" validate:"required"`
}

// ProjectView is the operator-facing project representation.
type ProjectView struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	Description string      `json:"description,omitempty"`
	LastSyncAt  *time.Time  `json:"lastSyncAt,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	Groups      []GroupView `json:"groups"`
}

// GroupView is one linked group.
type GroupView struct {
	ID        uuid.UUID `json:"id"`
	GroupID   string    `json:"groupId"`
	GroupName string    `json:"groupName"`
}

// Stats summarizes a project for the dashboard.
type Stats struct {
	TotalPurchases   int64      `json:"totalPurchases"`
	JoinedPurchases  int64      `json:"joinedPurchases"`
	PendingPurchases int64      `json:"pendingPurchases"`
	MemberCount      int64      `json:"memberCount"`
	GroupCount       int64      `json:"groupCount"`
	LastSyncAt       *time.Time `json:"lastSyncAt,omitempty"`
}
