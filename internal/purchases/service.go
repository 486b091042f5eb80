package purchases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grupofy/grupofy-backend/pkg/db/models"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
	"github.com/grupofy/grupofy-backend/pkg/pagination"
	"github.com/grupofy/grupofy-backend/pkg/phone"
)

// Platform tags for purchases created outside the webhook path.
const (
	PlatformManual = "manual"
	PlatformImport = "import"
)

// fallbackName fills customer fields the source did not provide.
const fallbackName = "Desconhecido"

// Reconciler re-checks pending purchases after inserts.
type Reconciler interface {
	Reconcile(ctx context.Context, projectID uuid.UUID, normalizedPhone string) (int, error)
}

// Service owns purchase listing, manual entry and bulk import/export.
type Service struct {
	repo       Repo
	reconciler Reconciler
	logg       *logger.Logger
}

// NewService validates dependencies and builds the service.
func NewService(repo Repo, reconciler Reconciler, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase repo is required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{repo: repo, reconciler: reconciler, logg: logg}, nil
}

// List returns one page of purchases, newest first.
func (s *Service) List(ctx context.Context, projectID uuid.UUID, params ListParams) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Pagination.Cursor)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Pagination.Limit)
	rows, err := s.repo.List(ctx, projectID, params.Joined, pagination.LimitWithBuffer(params.Pagination.Limit), cursor)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing purchases")
	}

	page := &Page{Items: make([]View, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for i := range rows {
		page.Items = append(page.Items, toView(&rows[i]))
	}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{At: last.PurchaseDate, ID: last.ID})
	}
	return page, nil
}

// ManualInsert stores an operator-entered purchase and immediately reconciles
// it, so a buyer who is already in a group shows up joined right away.
func (s *Service) ManualInsert(ctx context.Context, projectID uuid.UUID, input ManualInput) (*View, error) {
	normalized := phone.Normalize(input.Phone)
	if normalized == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "phone has no digits")
	}

	purchaseDate := time.Now().UTC()
	if input.PurchaseDate != nil {
		purchaseDate = input.PurchaseDate.UTC()
	}

	purchase := &models.Purchase{
		ProjectID:     projectID,
		TransactionID: fmt.Sprintf("MANUAL_%d", time.Now().UnixMilli()),
		CustomerName:  orFallback(input.Name),
		CustomerEmail: input.Email,
		CustomerPhone: normalized,
		ProductName:   orFallback(input.Product),
		Price:         input.Price,
		Platform:      PlatformManual,
		PurchaseDate:  purchaseDate,
	}
	if err := s.repo.Insert(ctx, purchase); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "inserting purchase")
	}

	if _, err := s.reconciler.Reconcile(ctx, projectID, normalized); err != nil {
		s.logg.Error(ctx, "post-insert reconciliation failed", err)
	}

	view := toView(purchase)
	return &view, nil
}

// Import bulk-inserts purchases. Rows whose synthesized transaction id
// collides are skipped, and a single reconciliation pass runs at the end.
func (s *Service) Import(ctx context.Context, projectID uuid.UUID, rows []ImportRow) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "import payload is empty")
	}

	result := &ImportResult{}
	batch := time.Now().UnixMilli()
	now := time.Now().UTC()
	for i, row := range rows {
		normalized := phone.Normalize(row.Phone)
		if normalized == "" {
			result.Skipped++
			continue
		}
		purchase := &models.Purchase{
			ProjectID:     projectID,
			TransactionID: fmt.Sprintf("IMPORT_%d_%d", batch, i),
			CustomerName:  orFallback(row.Name),
			CustomerEmail: row.Email,
			CustomerPhone: normalized,
			ProductName:   orFallback(row.Product),
			Platform:      PlatformImport,
			PurchaseDate:  now,
		}
		if err := s.repo.Insert(ctx, purchase); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				result.Skipped++
				continue
			}
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "inserting imported purchase")
		}
		result.Inserted++
	}

	joined, err := s.reconciler.Reconcile(ctx, projectID, "")
	if err != nil {
		s.logg.Error(ctx, "post-import reconciliation failed", err)
	}
	result.Joined = joined

	fields := map[string]any{"inserted": result.Inserted, "skipped": result.Skipped, "joined": result.Joined}
	s.logg.Info(s.logg.WithFields(s.logg.WithProjectID(ctx, projectID.String()), fields), "purchase import finished")
	return result, nil
}

func orFallback(v string) string {
	if v == "" {
		return fallbackName
	}
	return v
}

func toView(p *models.Purchase) View {
	return View{
		ID:            p.ID,
		TransactionID: p.TransactionID,
		CustomerName:  p.CustomerName,
		CustomerEmail: p.CustomerEmail,
		CustomerPhone: p.CustomerPhone,
		ProductName:   p.ProductName,
		Price:         p.Price,
		Platform:      p.Platform,
		PurchaseDate:  p.PurchaseDate,
		JoinedGroup:   p.JoinedGroup,
		JoinedGroupID: p.JoinedGroupID,
		JoinedAt:      p.JoinedAt,
	}
}
