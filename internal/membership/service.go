package membership

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/grupofy/grupofy-backend/internal/messenger"
	"github.com/grupofy/grupofy-backend/pkg/config"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
	"github.com/grupofy/grupofy-backend/pkg/metrics"
	"github.com/grupofy/grupofy-backend/pkg/phone"
)

// SessionProvider hands out the live messenger session when connected.
// Satisfied by *connection.Manager.
type SessionProvider interface {
	Session() (messenger.Session, error)
}

// GroupSource resolves group links in both directions.
type GroupSource interface {
	GroupsForProject(ctx context.Context, projectID uuid.UUID) ([]models.ProjectGroup, error)
	ProjectsForGroup(ctx context.Context, groupID string) ([]uuid.UUID, error)
}

// Reconciler re-checks pending purchases after a roster refresh.
type Reconciler interface {
	Reconcile(ctx context.Context, projectID uuid.UUID, normalizedPhone string) (int, error)
}

// Service fetches rosters from the live session, snapshots them, and feeds
// reconciliation.
type Service struct {
	manager    SessionProvider
	repo       Repo
	groups     GroupSource
	reconciler Reconciler
	logg       *logger.Logger
	metrics    *metrics.DomainMetrics
	syncCfg    config.SyncConfig
}

// ServiceParams collects the service dependencies.
type ServiceParams struct {
	Manager    SessionProvider
	Repo       Repo
	Groups     GroupSource
	Reconciler Reconciler
	Logger     *logger.Logger
	Metrics    *metrics.DomainMetrics
	SyncConfig config.SyncConfig
}

// NewService validates dependencies and builds the sync engine.
func NewService(p ServiceParams) (*Service, error) {
	if p.Manager == nil {
		return nil, fmt.Errorf("connection manager is required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("membership repo is required")
	}
	if p.Groups == nil {
		return nil, fmt.Errorf("group source is required")
	}
	if p.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		manager:    p.Manager,
		repo:       p.Repo,
		groups:     p.Groups,
		reconciler: p.Reconciler,
		logg:       p.Logger,
		metrics:    p.Metrics,
		syncCfg:    p.SyncConfig,
	}, nil
}

// SyncGroup replaces one group's stored roster with the live participant list
// and reconciles the project's pending purchases against it. Requires a
// connected session.
func (s *Service) SyncGroup(ctx context.Context, projectID uuid.UUID, groupID string) (*GroupSyncResult, []Member, error) {
	sess, err := s.manager.Session()
	if err != nil {
		return nil, nil, err
	}

	ctx = s.logg.WithGroupID(s.logg.WithProjectID(ctx, projectID.String()), groupID)

	roster, err := sess.Roster(ctx, groupID)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeDependency, err, "fetching group roster")
	}

	now := time.Now().UTC()
	rows := make([]models.GroupMember, 0, len(roster))
	out := make([]Member, 0, len(roster))
	real := 0
	for _, p := range roster {
		entry := toMember(p)
		if entry.Phone == "" && !entry.Opaque {
			continue
		}
		if !entry.Opaque {
			real++
		}
		rows = append(rows, models.GroupMember{
			ProjectID: projectID,
			GroupID:   groupID,
			Phone:     entry.Phone,
			Name:      entry.Name,
			IsAdmin:   entry.IsAdmin,
			Opaque:    entry.Opaque,
			SyncedAt:  now,
		})
		out = append(out, entry)
	}

	if err := s.repo.ReplaceRoster(ctx, projectID, groupID, rows); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeInternal, err, "replacing roster")
	}

	s.metrics.SetSyncedMembers(groupID, real)
	s.logg.Info(s.logg.WithField(ctx, "members", len(rows)), "group roster replaced")

	// Roster replacement committed; now pending purchases can match it.
	if _, err := s.reconciler.Reconcile(ctx, projectID, ""); err != nil {
		s.logg.Error(ctx, "post-sync reconciliation failed", err)
	}

	result := &GroupSyncResult{
		GroupID:     groupID,
		MemberCount: len(rows),
		RealCount:   real,
	}
	return result, out, nil
}

// SyncProject fans SyncGroup out over every linked group, then consolidates
// the stored rosters into one deduplicated contact view. Individual group
// failures do not abort the pass; they are reported alongside the result.
func (s *Service) SyncProject(ctx context.Context, projectID uuid.UUID) (*ProjectSyncResult, error) {
	groups, err := s.groups.GroupsForProject(ctx, projectID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading project groups")
	}
	if len(groups) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "project has no linked groups")
	}

	result := &ProjectSyncResult{SyncedAt: time.Now().UTC()}
	var syncErr error
	for _, g := range groups {
		groupResult, _, err := s.SyncGroup(ctx, projectID, g.GroupID)
		if err != nil {
			// Not-connected aborts the whole pass; nothing else will
			// succeed either.
			if appErr := apperrors.As(err); appErr != nil && appErr.Code() == apperrors.CodeNotConnected {
				return nil, err
			}
			syncErr = multierr.Append(syncErr, fmt.Errorf("group %s: %w", g.GroupID, err))
			result.FailedGroups = append(result.FailedGroups, g.GroupID)
			continue
		}
		groupResult.GroupName = g.GroupName
		result.Groups = append(result.Groups, *groupResult)
	}

	if len(result.Groups) == 0 && syncErr != nil {
		return nil, apperrors.Wrap(apperrors.CodeDependency, syncErr, "all group syncs failed")
	}

	members, err := s.Contacts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	result.Members = members

	if err := s.repo.MarkProjectSynced(ctx, projectID, result.SyncedAt); err != nil {
		s.logg.Error(ctx, "recording project sync time failed", err)
	}

	if syncErr != nil {
		s.logg.Error(ctx, "project sync finished with group failures", syncErr)
	}
	return result, nil
}

// Contacts consolidates the stored rosters of a project into one entry per
// normalized phone. Opaque entries are excluded; they cannot be merged or
// matched against purchases.
func (s *Service) Contacts(ctx context.Context, projectID uuid.UUID) ([]ConsolidatedMember, error) {
	stored, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing stored members")
	}

	groups, err := s.groups.GroupsForProject(ctx, projectID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading project groups")
	}
	groupNames := make(map[string]string, len(groups))
	for _, g := range groups {
		groupNames[g.GroupID] = g.GroupName
	}

	s.warnIfStale(ctx, stored)

	byPhone := make(map[string]*ConsolidatedMember)
	order := make([]string, 0)
	for _, m := range stored {
		if m.Opaque {
			continue
		}
		key := phone.Normalize(m.Phone)
		if key == "" {
			continue
		}
		entry, ok := byPhone[key]
		if !ok {
			entry = &ConsolidatedMember{Phone: key}
			byPhone[key] = entry
			order = append(order, key)
		}
		entry.IsAdmin = entry.IsAdmin || m.IsAdmin
		if entry.Name == "" {
			entry.Name = m.Name
		}
		name := groupNames[m.GroupID]
		if name == "" {
			name = m.GroupID
		}
		if !containsString(entry.Groups, name) {
			entry.Groups = append(entry.Groups, name)
		}
	}

	sort.Strings(order)
	out := make([]ConsolidatedMember, 0, len(order))
	for _, key := range order {
		out = append(out, *byPhone[key])
	}
	return out, nil
}

func (s *Service) warnIfStale(ctx context.Context, stored []models.GroupMember) {
	if len(stored) == 0 || s.syncCfg.RosterMaxAge <= 0 {
		return
	}
	newest := stored[0].SyncedAt
	for _, m := range stored {
		if m.SyncedAt.After(newest) {
			newest = m.SyncedAt
		}
	}
	if age := time.Since(newest); age > s.syncCfg.RosterMaxAge {
		s.logg.Warn(s.logg.WithField(ctx, "age", age.String()), "stored rosters are stale")
	}
}

// GroupMembers refreshes the stored roster of every project linked to the
// group and returns the live member list. A group linked to no project is
// fetched read-only, so the operator can inspect it before linking.
func (s *Service) GroupMembers(ctx context.Context, groupID string) ([]Member, error) {
	projectIDs, err := s.groups.ProjectsForGroup(ctx, groupID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "resolving group links")
	}

	if len(projectIDs) == 0 {
		sess, err := s.manager.Session()
		if err != nil {
			return nil, err
		}
		roster, err := sess.Roster(ctx, groupID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDependency, err, "fetching group roster")
		}
		out := make([]Member, 0, len(roster))
		for _, p := range roster {
			entry := toMember(p)
			if entry.Phone == "" && !entry.Opaque {
				continue
			}
			out = append(out, entry)
		}
		return out, nil
	}

	var members []Member
	for i, projectID := range projectIDs {
		_, out, err := s.SyncGroup(ctx, projectID, groupID)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			members = out
		}
	}
	return members, nil
}

// toMember classifies a platform participant: prefer an explicit phone,
// otherwise treat the identifier itself as the phone unless it is opaque.
// Opaque entries keep their raw identifier so the snapshot stays complete,
// but are never phone-matched.
func toMember(p messenger.Participant) Member {
	out := Member{Name: p.Name, IsAdmin: p.IsAdmin, Opaque: p.Opaque}
	switch {
	case p.Phone != "":
		out.Phone = p.Phone
		out.Opaque = false
	case p.Opaque:
		out.Phone = p.ID
	default:
		if at := strings.IndexByte(p.ID, '@'); at >= 0 {
			out.Phone = p.ID[:at]
		} else {
			out.Phone = p.ID
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
