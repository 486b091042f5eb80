package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grupofy/grupofy-backend/api/responses"
	purchasewebhook "github.com/grupofy/grupofy-backend/internal/webhooks/purchase"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

// IngestService processes one purchase webhook delivery.
type IngestService interface {
	Ingest(ctx context.Context, slug string, raw json.RawMessage) (*purchasewebhook.Result, error)
}

// maxWebhookBody guards against pathological payloads; real deliveries are a
// few kilobytes.
const maxWebhookBody = 1 << 20

// PurchaseWebhook receives sales-platform callbacks. The response contract is
// flat {success,message}: platforms retry on any non-2xx, so handled
// duplicates still answer 200.
func PurchaseWebhook(svc IngestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		slug := chi.URLParam(r, "projectSlug")
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			logg.Error(ctx, "reading webhook body failed", err)
			responses.WriteWebhookAck(w, http.StatusInternalServerError, false, "Erro ao ler requisição")
			return
		}

		result, err := svc.Ingest(ctx, slug, body)
		if err != nil {
			if appErr := apperrors.As(err); appErr != nil {
				switch appErr.Code() {
				case apperrors.CodeNotFound:
					responses.WriteWebhookAck(w, http.StatusNotFound, false, "Projeto não encontrado")
					return
				case apperrors.CodeValidation:
					responses.WriteWebhookAck(w, http.StatusBadRequest, false, appErr.Message())
					return
				}
			}
			logg.Error(ctx, "webhook processing failed", err)
			responses.WriteWebhookAck(w, http.StatusInternalServerError, false, "Erro ao processar webhook")
			return
		}

		responses.WriteWebhookAck(w, http.StatusOK, result.Success, result.Message)
	}
}
