package membership

import "time"

// Member is one synced roster entry as returned to callers.
type Member struct {
	Phone   string `json:"phone"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
	Opaque  bool   `json:"opaque"`
}

// ConsolidatedMember merges one person's appearances across every group of a
// project. Groups accumulates every group name the phone was seen in, and
// IsAdmin is true when the person was an admin in any of them.
type ConsolidatedMember struct {
	Phone   string   `json:"phone"`
	Name    string   `json:"name,omitempty"`
	IsAdmin bool     `json:"isAdmin"`
	Groups  []string `json:"groups"`
}

// GroupSyncResult reports one group's sync outcome.
type GroupSyncResult struct {
	GroupID     string `json:"groupId"`
	GroupName   string `json:"groupName"`
	MemberCount int    `json:"memberCount"`
	RealCount   int    `json:"realCount"`
}

// ProjectSyncResult is the fan-out outcome over a whole project.
type ProjectSyncResult struct {
	Groups       []GroupSyncResult    `json:"groups"`
	Members      []ConsolidatedMember `json:"members"`
	SyncedAt     time.Time            `json:"syncedAt"`
	FailedGroups []string             `json:"failedGroups,omitempty"`
}
