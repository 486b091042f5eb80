package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/grupofy/grupofy-backend/internal/membership"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

type fakeProjectLister struct {
	projects []models.Project
}

func (f *fakeProjectLister) List(ctx context.Context) ([]models.Project, error) {
	return f.projects, nil
}

type fakeSyncer struct {
	synced []uuid.UUID
	errs   map[uuid.UUID]error
}

func (f *fakeSyncer) SyncProject(ctx context.Context, projectID uuid.UUID) (*membership.ProjectSyncResult, error) {
	if err := f.errs[projectID]; err != nil {
		return nil, err
	}
	f.synced = append(f.synced, projectID)
	return &membership.ProjectSyncResult{}, nil
}

func newSyncJob(t *testing.T, lister *fakeProjectLister, syncer *fakeSyncer) *membershipSyncJob {
	t.Helper()
	jobIface, err := NewMembershipSyncJob(MembershipSyncJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Projects: lister,
		Syncer:   syncer,
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewMembershipSyncJob: %v", err)
	}
	job, ok := jobIface.(*membershipSyncJob)
	if !ok {
		t.Fatalf("expected membershipSyncJob, got %T", jobIface)
	}
	return job
}

func TestMembershipSyncJobSyncsDueProjects(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-10 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	neverSynced := models.Project{ID: uuid.New()}
	recentlySynced := models.Project{ID: uuid.New(), LastSyncAt: &fresh}
	staleProject := models.Project{ID: uuid.New(), LastSyncAt: &stale}

	lister := &fakeProjectLister{projects: []models.Project{neverSynced, recentlySynced, staleProject}}
	syncer := &fakeSyncer{}
	job := newSyncJob(t, lister, syncer)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(syncer.synced) != 2 {
		t.Fatalf("expected 2 projects synced, got %d", len(syncer.synced))
	}
	if syncer.synced[0] != neverSynced.ID || syncer.synced[1] != staleProject.ID {
		t.Fatalf("wrong projects synced: %v", syncer.synced)
	}
}

func TestMembershipSyncJobStopsWhenNotConnected(t *testing.T) {
	first := models.Project{ID: uuid.New()}
	second := models.Project{ID: uuid.New()}
	lister := &fakeProjectLister{projects: []models.Project{first, second}}
	syncer := &fakeSyncer{errs: map[uuid.UUID]error{
		first.ID: apperrors.New(apperrors.CodeNotConnected, "messenger offline"),
	}}
	job := newSyncJob(t, lister, syncer)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(syncer.synced) != 0 {
		t.Fatalf("expected no syncs after disconnect, got %v", syncer.synced)
	}
}

func TestMembershipSyncJobCollectsOtherFailures(t *testing.T) {
	broken := models.Project{ID: uuid.New()}
	healthy := models.Project{ID: uuid.New()}
	lister := &fakeProjectLister{projects: []models.Project{broken, healthy}}
	syncer := &fakeSyncer{errs: map[uuid.UUID]error{
		broken.ID: errors.New("roster fetch failed"),
	}}
	job := newSyncJob(t, lister, syncer)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(syncer.synced) != 1 || syncer.synced[0] != healthy.ID {
		t.Fatalf("healthy project should still sync: %v", syncer.synced)
	}
}
