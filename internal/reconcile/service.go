// Package reconcile links purchases to group membership: a pending purchase
// whose phone matches a member of any group linked to its project is marked
// joined. The transition is one-way; nothing here ever unmarks a purchase.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grupofy/grupofy-backend/internal/messenger"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
	"github.com/grupofy/grupofy-backend/pkg/metrics"
	"github.com/grupofy/grupofy-backend/pkg/phone"
)

// MemberSource reads the stored, phone-resolvable roster of a project.
type MemberSource interface {
	RealMembersByProject(ctx context.Context, projectID uuid.UUID) ([]models.GroupMember, error)
}

// ProjectSource resolves which projects a group is linked to.
type ProjectSource interface {
	ProjectIDsForGroup(ctx context.Context, groupID string) ([]uuid.UUID, error)
}

// PurchaseStore reads and flips pending purchases.
type PurchaseStore interface {
	PendingByProject(ctx context.Context, projectID uuid.UUID, phoneClause string, phoneArg any) ([]models.Purchase, error)
	// MarkJoined flips joined_group false to true. Returns false when the
	// purchase was already joined, keeping the transition monotonic under
	// concurrent reconciler runs.
	MarkJoined(ctx context.Context, purchaseID uuid.UUID, groupID string, at time.Time) (bool, error)
}

// Service is the reconciliation engine.
type Service struct {
	members   MemberSource
	projects  ProjectSource
	purchases PurchaseStore
	matcher   phone.Matcher
	logg      *logger.Logger
	metrics   *metrics.DomainMetrics
}

// ServiceParams collects the service dependencies.
type ServiceParams struct {
	Members   MemberSource
	Projects  ProjectSource
	Purchases PurchaseStore
	Matcher   phone.Matcher
	Logger    *logger.Logger
	Metrics   *metrics.DomainMetrics
}

// NewService validates dependencies and builds the engine.
func NewService(p ServiceParams) (*Service, error) {
	if p.Members == nil {
		return nil, fmt.Errorf("member source is required")
	}
	if p.Projects == nil {
		return nil, fmt.Errorf("project source is required")
	}
	if p.Purchases == nil {
		return nil, fmt.Errorf("purchase store is required")
	}
	if p.Matcher == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		members:   p.Members,
		projects:  p.Projects,
		purchases: p.Purchases,
		matcher:   p.Matcher,
		logg:      p.Logger,
		metrics:   p.Metrics,
	}, nil
}

// Reconcile scans the project's pending purchases against the stored rosters.
// When normalizedPhone is non-empty the scan is restricted to purchases
// matching that phone. Returns how many purchases were flipped to joined.
func (s *Service) Reconcile(ctx context.Context, projectID uuid.UUID, normalizedPhone string) (int, error) {
	ctx = s.logg.WithProjectID(ctx, projectID.String())

	var clause string
	var arg any
	if normalizedPhone != "" {
		clause, arg = s.matcher.Clause("customer_phone", normalizedPhone)
	}

	pending, err := s.purchases.PendingByProject(ctx, projectID, clause, arg)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "loading pending purchases")
	}
	if len(pending) == 0 {
		return 0, nil
	}

	members, err := s.members.RealMembersByProject(ctx, projectID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "loading stored members")
	}
	if len(members) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	updated := 0
	for _, purchase := range pending {
		needle := purchase.CustomerPhone
		if needle == "" {
			continue
		}
		// first matching group wins, remaining groups are not checked
		for _, member := range members {
			if !s.matcher.Match(member.Phone, needle) {
				continue
			}
			flipped, err := s.purchases.MarkJoined(ctx, purchase.ID, member.GroupID, now)
			if err != nil {
				return updated, apperrors.Wrap(apperrors.CodeInternal, err, "marking purchase joined")
			}
			if flipped {
				updated++
				s.metrics.IncJoined()
			}
			break
		}
	}

	if updated > 0 {
		s.logg.Info(s.logg.WithField(ctx, "updated", updated), "purchases marked as joined")
	}
	return updated, nil
}

// HandleJoins is the low-latency path for group join events: the freshly
// added phones are matched against pending purchases of every project linked
// to the group, without waiting for a roster sync.
func (s *Service) HandleJoins(ctx context.Context, groupID string, joined []messenger.Participant) {
	projectIDs, err := s.projects.ProjectIDsForGroup(ctx, groupID)
	if err != nil {
		s.logg.Error(ctx, "resolving projects for group failed", err)
		return
	}
	if len(projectIDs) == 0 {
		return
	}

	ctx = s.logg.WithGroupID(ctx, groupID)
	now := time.Now().UTC()
	for _, participant := range joined {
		normalized := phone.Normalize(participant.Phone)
		if normalized == "" {
			continue
		}
		clause, arg := s.matcher.Clause("customer_phone", normalized)
		for _, projectID := range projectIDs {
			pending, err := s.purchases.PendingByProject(ctx, projectID, clause, arg)
			if err != nil {
				s.logg.Error(ctx, "loading pending purchases failed", err)
				continue
			}
			for _, purchase := range pending {
				if !s.matcher.Match(participant.Phone, purchase.CustomerPhone) {
					continue
				}
				flipped, err := s.purchases.MarkJoined(ctx, purchase.ID, groupID, now)
				if err != nil {
					s.logg.Error(ctx, "marking purchase joined failed", err)
					continue
				}
				if flipped {
					s.metrics.IncJoined()
					s.logg.Info(s.logg.WithField(ctx, "purchase_id", purchase.ID.String()), "purchase joined via group event")
				}
			}
		}
	}
}
