package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/grupofy/grupofy-backend/api/responses"
	"github.com/grupofy/grupofy-backend/api/validators"
	"github.com/grupofy/grupofy-backend/internal/purchases"
	"github.com/grupofy/grupofy-backend/pkg/logger"
	"github.com/grupofy/grupofy-backend/pkg/pagination"
)

// PurchasesService is the purchase surface used by the API.
type PurchasesService interface {
	List(ctx context.Context, projectID uuid.UUID, params purchases.ListParams) (*purchases.Page, error)
	ManualInsert(ctx context.Context, projectID uuid.UUID, input purchases.ManualInput) (*purchases.View, error)
	Import(ctx context.Context, projectID uuid.UUID, rows []purchases.ImportRow) (*purchases.ImportResult, error)
	ExportCSV(ctx context.Context, projectID uuid.UUID, w io.Writer) error
}

func PurchasesList(svc PurchasesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		joined, err := validators.ParseQueryBool(r, "joined")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), id, purchases.ListParams{
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
			Joined: joined,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func PurchasesManual(svc PurchasesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input purchases.ManualInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.ManualInsert(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

type importRequest struct {
	Rows []purchases.ImportRow `json:"rows" validate:"required,min=1,max=5000,dive"`
}

func PurchasesImport(svc PurchasesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req importRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Import(r.Context(), id, req.Rows)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PurchasesExport streams the project's purchases as a CSV download.
func PurchasesExport(svc PurchasesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := projectIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filename := fmt.Sprintf("compras_%s.csv", time.Now().Format("2006-01-02"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		if err := svc.ExportCSV(r.Context(), id, w); err != nil {
			// Headers are already out; log and cut the stream.
			logg.Error(r.Context(), "csv export failed", err)
		}
	}
}
