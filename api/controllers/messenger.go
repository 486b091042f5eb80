package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grupofy/grupofy-backend/api/responses"
	"github.com/grupofy/grupofy-backend/internal/connection"
	"github.com/grupofy/grupofy-backend/internal/membership"
	"github.com/grupofy/grupofy-backend/internal/messenger"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

// ConnectionManager is the slice of the session manager the API exposes.
type ConnectionManager interface {
	Status() connection.Status
	Connect(ctx context.Context)
	Disconnect(ctx context.Context)
	ForcePair(ctx context.Context) error
	Session() (messenger.Session, error)
}

// GroupRosterService serves a single group's member list and CSV export.
// Both refresh the stored roster of every project linked to the group.
type GroupRosterService interface {
	GroupMembers(ctx context.Context, groupID string) ([]membership.Member, error)
	ExportGroupCSV(ctx context.Context, groupID string, w io.Writer) error
}

func groupIDParam(r *http.Request) (string, error) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		return "", apperrors.New(apperrors.CodeValidation, "group id is required")
	}
	return groupID, nil
}

func MessengerStatus(manager ConnectionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, manager.Status())
	}
}

// MessengerConnect kicks off a connection attempt. The call returns
// immediately; clients poll the status endpoint for the QR code.
func MessengerConnect(manager ConnectionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go manager.Connect(context.WithoutCancel(r.Context()))
		responses.WriteSuccessStatus(w, http.StatusAccepted, manager.Status())
	}
}

func MessengerDisconnect(manager ConnectionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manager.Disconnect(r.Context())
		responses.WriteSuccess(w, manager.Status())
	}
}

// MessengerForcePair drops the stored credentials and starts a fresh pairing.
func MessengerForcePair(manager ConnectionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.ForcePair(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, manager.Status())
	}
}

// MessengerGroups lists the groups of the connected account, used by the
// dashboard when linking groups to a project.
func MessengerGroups(manager ConnectionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := manager.Session()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		groups, err := session.Groups(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, groups)
	}
}

// MessengerGroupMembers returns one group's live roster. Fetching is not
// read-only: linked projects get their stored roster replaced and their
// pending purchases reconciled on the way.
func MessengerGroupMembers(svc GroupRosterService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := groupIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		members, err := svc.GroupMembers(r.Context(), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, members)
	}
}

// MessengerGroupExport streams one group's roster as a CSV download.
func MessengerGroupExport(svc GroupRosterService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := groupIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filename := fmt.Sprintf("membros_%s.csv", time.Now().Format("2006-01-02"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		if err := svc.ExportGroupCSV(r.Context(), groupID, w); err != nil {
			// The header may already be out; all we can do is log.
			logg.Error(r.Context(), "group csv export failed", err)
		}
	}
}
