package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/grupofy/grupofy-backend/api/responses"
	"github.com/grupofy/grupofy-backend/api/validators"
	"github.com/grupofy/grupofy-backend/internal/membership"
	"github.com/grupofy/grupofy-backend/internal/projects"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

// ProjectsService is the project CRUD surface used by the API.
type ProjectsService interface {
	Create(ctx context.Context, input projects.CreateInput) (*projects.ProjectView, error)
	Update(ctx context.Context, id uuid.UUID, input projects.UpdateInput) (*projects.ProjectView, error)
	Get(ctx context.Context, id uuid.UUID) (*projects.ProjectView, error)
	List(ctx context.Context) ([]projects.ProjectView, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddGroup(ctx context.Context, projectID uuid.UUID, input projects.GroupInput) (*projects.GroupView, error)
	RemoveGroup(ctx context.Context, projectID uuid.UUID, groupID string) error
	Stats(ctx context.Context, projectID uuid.UUID) (*projects.Stats, error)
}

// MembershipService triggers roster syncs and serves the consolidated view.
type MembershipService interface {
	SyncProject(ctx context.Context, projectID uuid.UUID) (*membership.ProjectSyncResult, error)
	Contacts(ctx context.Context, projectID uuid.UUID) ([]membership.ConsolidatedMember, error)
}

// WebhookLogReader serves the delivery history of a project.
type WebhookLogReader interface {
	RecentLogs(ctx context.Context, projectID uuid.UUID) ([]models.WebhookLog, error)
	ClearLogs(ctx context.Context, projectID uuid.UUID) (int64, error)
}

func projectIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "projectID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.New(apperrors.CodeValidation, "invalid project id")
	}
	return id, nil
}

func ProjectsCreate(svc ProjectsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input projects.CreateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func ProjectsUpdate(svc ProjectsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input projects.UpdateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func ProjectsList(svc ProjectsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

func ProjectsGet(svc ProjectsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func ProjectsDelete(svc ProjectsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

func ProjectsAddGroup(svc ProjectsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input projects.GroupInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.AddGroup(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func ProjectsRemoveGroup(svc ProjectsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		groupID := chi.URLParam(r, "groupID")
		if groupID == "" {
			responses.WriteError(r.Context(), logg, w, apperrors.New(apperrors.CodeValidation, "group id is required"))
			return
		}
		if err := svc.RemoveGroup(r.Context(), id, groupID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"removed": true})
	}
}

func ProjectsStats(svc ProjectsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stats, err := svc.Stats(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// ProjectsSync refreshes every linked roster now instead of waiting for the
// background pass.
func ProjectsSync(svc MembershipService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SyncProject(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ProjectsContacts(svc MembershipService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		members, err := svc.Contacts(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, members)
	}
}

func ProjectWebhookLogs(svc WebhookLogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logs, err := svc.RecentLogs(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, logs)
	}
}

func ProjectWebhookLogsClear(svc WebhookLogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cleared, err := svc.ClearLogs(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"cleared": cleared})
	}
}
