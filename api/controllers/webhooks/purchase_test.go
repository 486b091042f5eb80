package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	purchasewebhook "github.com/grupofy/grupofy-backend/internal/webhooks/purchase"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
	"github.com/grupofy/grupofy-backend/pkg/types"
)

func notFoundErr() error {
	return apperrors.New(apperrors.CodeNotFound, "project not found")
}

type stubIngest struct {
	result  *purchasewebhook.Result
	err     error
	slug    string
	payload json.RawMessage
}

func (s *stubIngest) Ingest(ctx context.Context, slug string, raw json.RawMessage) (*purchasewebhook.Result, error) {
	s.slug = slug
	s.payload = raw
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func doWebhook(t *testing.T, svc IngestService, slug, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/webhook/{projectSlug}", PurchaseWebhook(svc, logger.New(logger.Options{ServiceName: "test"})))

	req := httptest.NewRequest(http.MethodPost, "/webhook/"+slug, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) types.WebhookResult {
	t.Helper()
	var ack types.WebhookResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	return ack
}

func TestPurchaseWebhookSuccess(t *testing.T) {
	svc := &stubIngest{result: &purchasewebhook.Result{Success: true, Message: "Compra registrada com sucesso"}}

	rec := doWebhook(t, svc, "mentoria", `{"transaction": "TX-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	ack := decodeAck(t, rec)
	assert.True(t, ack.Success)
	assert.Equal(t, "Compra registrada com sucesso", ack.Message)
	assert.Equal(t, "mentoria", svc.slug)
	assert.JSONEq(t, `{"transaction": "TX-1"}`, string(svc.payload))
}

func TestPurchaseWebhookDuplicateStillAnswers200(t *testing.T) {
	svc := &stubIngest{result: &purchasewebhook.Result{Success: true, Message: "Transação já registrada", Duplicate: true}}

	rec := doWebhook(t, svc, "mentoria", `{"transaction": "TX-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeAck(t, rec).Success)
}

func TestPurchaseWebhookUnknownProject(t *testing.T) {
	svc := &stubIngest{err: notFoundErr()}

	rec := doWebhook(t, svc, "nope", `{}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	ack := decodeAck(t, rec)
	assert.False(t, ack.Success)
	assert.Equal(t, "Projeto não encontrado", ack.Message)
}

func TestPurchaseWebhookProcessingFailure(t *testing.T) {
	svc := &stubIngest{err: assert.AnError}

	rec := doWebhook(t, svc, "mentoria", `{}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, decodeAck(t, rec).Success)
}
