package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grupofy/grupofy-backend/pkg/db/models"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
	"github.com/grupofy/grupofy-backend/pkg/metrics"
	"github.com/grupofy/grupofy-backend/pkg/phone"
)

// User-facing acknowledgement messages, kept stable because sales platforms
// surface them in their delivery dashboards.
const (
	msgRegistered = "Compra registrada com sucesso"
	msgDuplicate  = "Transação já registrada"
)

// ProjectResolver maps an inbound webhook URL slug to a project.
type ProjectResolver interface {
	ResolveSlug(ctx context.Context, slug string) (*models.Project, error)
}

// PurchaseWriter is the slice of the purchase repo the ingestor needs.
type PurchaseWriter interface {
	Insert(ctx context.Context, purchase *models.Purchase) error
	ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error)
}

// Reconciler re-checks pending purchases right after an insert.
type Reconciler interface {
	Reconcile(ctx context.Context, projectID uuid.UUID, normalizedPhone string) (int, error)
}

// Result is the flat acknowledgement returned to the sales platform.
type Result struct {
	Success   bool
	Message   string
	Duplicate bool
}

// ServiceParams lists the ingestor dependencies. Guard is optional and only
// set when Redis is configured.
type ServiceParams struct {
	Projects   ProjectResolver
	Purchases  PurchaseWriter
	Logs       LogRepo
	Reconciler Reconciler
	Guard      *IdempotencyGuard
	Metrics    *metrics.DomainMetrics
	Logger     *logger.Logger
}

// Service ingests purchase webhooks: log first, dedup by transaction id,
// persist, then immediately try to link the buyer to a group.
type Service struct {
	projects   ProjectResolver
	purchases  PurchaseWriter
	logs       LogRepo
	reconciler Reconciler
	guard      *IdempotencyGuard
	metrics    *metrics.DomainMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Projects == nil {
		return nil, fmt.Errorf("project resolver is required")
	}
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchase writer is required")
	}
	if params.Logs == nil {
		return nil, fmt.Errorf("webhook log repo is required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		projects:   params.Projects,
		purchases:  params.Purchases,
		logs:       params.Logs,
		reconciler: params.Reconciler,
		guard:      params.Guard,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        time.Now,
	}, nil
}

// Ingest processes one webhook delivery addressed to the project behind slug.
// The raw payload is logged before any parsing so malformed deliveries are
// never lost. Duplicates acknowledge with success so the platform stops
// retrying.
func (s *Service) Ingest(ctx context.Context, slug string, raw json.RawMessage) (*Result, error) {
	project, err := s.projects.ResolveSlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithProjectID(ctx, project.ID.String())

	event, parseErr := ParseEvent(raw, s.now())
	if parseErr != nil {
		s.appendLog(ctx, project.ID, "UNKNOWN", raw, models.WebhookStatusFailed, parseErr)
		s.metrics.IncWebhook(models.WebhookStatusFailed)
		return nil, apperrors.Wrap(apperrors.CodeValidation, parseErr, "unreadable webhook payload")
	}

	entry := &models.WebhookLog{
		ProjectID: project.ID,
		EventType: event.EventType,
		Payload:   raw,
		Status:    models.WebhookStatusReceived,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		// Keep going: losing the audit row is better than dropping the sale.
		s.logg.Error(ctx, "appending webhook log failed", err)
	}
	ctx = s.logg.WithField(ctx, "transaction_id", event.TransactionID)

	if dup, err := s.checkGuard(ctx, event); err == nil && dup {
		s.finishLog(ctx, entry, models.WebhookStatusDuplicate, nil)
		s.metrics.IncWebhook(models.WebhookStatusDuplicate)
		return &Result{Success: true, Message: msgDuplicate, Duplicate: true}, nil
	}

	result, procErr := s.process(ctx, project, event)
	if procErr != nil {
		s.finishLog(ctx, entry, models.WebhookStatusFailed, procErr)
		s.metrics.IncWebhook(models.WebhookStatusFailed)
		s.releaseGuard(ctx, event)
		return nil, procErr
	}

	status := models.WebhookStatusProcessed
	if result.Duplicate {
		status = models.WebhookStatusDuplicate
	}
	s.finishLog(ctx, entry, status, nil)
	s.metrics.IncWebhook(status)
	return result, nil
}

func (s *Service) process(ctx context.Context, project *models.Project, event *Event) (*Result, error) {
	exists, err := s.purchases.ExistsByTransactionID(ctx, event.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("check transaction: %w", err)
	}
	if exists {
		return &Result{Success: true, Message: msgDuplicate, Duplicate: true}, nil
	}

	normalized := phone.Normalize(event.BuyerPhone)
	purchase := &models.Purchase{
		ProjectID:     project.ID,
		TransactionID: event.TransactionID,
		CustomerName:  event.BuyerName,
		CustomerEmail: event.BuyerEmail,
		CustomerPhone: normalized,
		ProductName:   event.ProductName,
		Price:         event.Price,
		Platform:      event.Platform,
		PurchaseDate:  s.now(),
	}
	if err := s.purchases.Insert(ctx, purchase); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Concurrent retry beat us to the insert.
			return &Result{Success: true, Message: msgDuplicate, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("insert purchase: %w", err)
	}

	if normalized != "" {
		if _, err := s.reconciler.Reconcile(ctx, project.ID, normalized); err != nil {
			// The purchase is saved; the periodic sync will retry the link.
			s.logg.Error(ctx, "post-webhook reconciliation failed", err)
		}
	}

	s.logg.Info(ctx, "webhook purchase registered")
	return &Result{Success: true, Message: msgRegistered}, nil
}

// RecentLogs returns the latest deliveries for a project, newest first.
func (s *Service) RecentLogs(ctx context.Context, projectID uuid.UUID) ([]models.WebhookLog, error) {
	return s.logs.Recent(ctx, projectID)
}

// ClearLogs drops the delivery history of a project.
func (s *Service) ClearLogs(ctx context.Context, projectID uuid.UUID) (int64, error) {
	return s.logs.Clear(ctx, projectID)
}

// checkGuard consults the Redis dedup mark when configured. Synthesized
// transaction ids are unique per delivery, so guarding them is pointless.
func (s *Service) checkGuard(ctx context.Context, event *Event) (bool, error) {
	if s.guard == nil || event.Synthesized {
		return false, nil
	}
	dup, err := s.guard.CheckAndMark(ctx, event.TransactionID)
	if err != nil {
		// Redis being down must not block ingestion; the unique constraint
		// still catches duplicates.
		s.logg.Warn(ctx, "idempotency check failed, falling back to database")
		return false, err
	}
	return dup, nil
}

func (s *Service) releaseGuard(ctx context.Context, event *Event) {
	if s.guard == nil || event.Synthesized {
		return
	}
	if err := s.guard.Release(ctx, event.TransactionID); err != nil {
		s.logg.Error(ctx, "releasing idempotency mark failed", err)
	}
}

func (s *Service) appendLog(ctx context.Context, projectID uuid.UUID, eventType string, raw json.RawMessage, status string, cause error) {
	payload := raw
	if !json.Valid(payload) {
		// jsonb rejects invalid documents; keep the broken body as a string.
		payload, _ = json.Marshal(string(raw))
	}
	entry := &models.WebhookLog{
		ProjectID: projectID,
		EventType: eventType,
		Payload:   payload,
		Status:    status,
	}
	if cause != nil {
		text := cause.Error()
		entry.Error = &text
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		s.logg.Error(ctx, "appending webhook log failed", err)
	}
}

func (s *Service) finishLog(ctx context.Context, entry *models.WebhookLog, status string, cause error) {
	if entry.ID == uuid.Nil {
		// The initial append failed; nothing to update.
		return
	}
	var text *string
	if cause != nil {
		msg := cause.Error()
		text = &msg
	}
	if err := s.logs.SetStatus(ctx, entry.ID, status, text); err != nil {
		s.logg.Error(ctx, "updating webhook log failed", err)
	}
}
