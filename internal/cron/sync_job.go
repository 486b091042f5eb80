package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/grupofy/grupofy-backend/internal/membership"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

const defaultSyncInterval = time.Hour

type projectLister interface {
	List(ctx context.Context) ([]models.Project, error)
}

type projectSyncer interface {
	SyncProject(ctx context.Context, projectID uuid.UUID) (*membership.ProjectSyncResult, error)
}

type MembershipSyncJobParams struct {
	Logger   *logger.Logger
	Projects projectLister
	Syncer   projectSyncer
	Interval time.Duration
}

// membershipSyncJob refreshes the stored rosters of projects whose last sync
// is older than the configured interval.
type membershipSyncJob struct {
	logg     *logger.Logger
	projects projectLister
	syncer   projectSyncer
	interval time.Duration
	now      func() time.Time
}

func NewMembershipSyncJob(params MembershipSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Projects == nil {
		return nil, fmt.Errorf("project lister required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("project syncer required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &membershipSyncJob{
		logg:     params.Logger,
		projects: params.Projects,
		syncer:   params.Syncer,
		interval: interval,
		now:      time.Now,
	}, nil
}

func (j *membershipSyncJob) Name() string { return "membership-sync" }

func (j *membershipSyncJob) Run(ctx context.Context) error {
	projects, err := j.projects.List(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	now := j.now().UTC()
	var runErr error
	synced := 0
	for _, project := range projects {
		if !j.due(project, now) {
			continue
		}
		projectCtx := j.logg.WithProjectID(ctx, project.ID.String())
		if _, err := j.syncer.SyncProject(projectCtx, project.ID); err != nil {
			if appErr := apperrors.As(err); appErr != nil && appErr.Code() == apperrors.CodeNotConnected {
				// The messenger is offline; every remaining project would
				// fail the same way.
				j.logg.Info(projectCtx, "messenger not connected, skipping remaining syncs")
				return nil
			}
			runErr = multierr.Append(runErr, fmt.Errorf("project %s: %w", project.ID, err))
			continue
		}
		synced++
	}

	j.logg.Info(j.logg.WithField(ctx, "projects_synced", synced), "membership sync pass finished")
	return runErr
}

func (j *membershipSyncJob) due(project models.Project, now time.Time) bool {
	if project.LastSyncAt == nil {
		return true
	}
	return now.Sub(*project.LastSyncAt) >= j.interval
}
