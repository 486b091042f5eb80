package purchases

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/google/uuid"

	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
)

var csvHeader = []string{"Nome", "Email", "Telefone", "Produto", "Data", "Entrou no Grupo"}

// ExportCSV writes every purchase of the project to w in the spreadsheet
// layout operators expect, oldest first.
func (s *Service) ExportCSV(ctx context.Context, projectID uuid.UUID, w io.Writer) error {
	rows, err := s.repo.ListAll(ctx, projectID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading purchases for export")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "writing csv header")
	}
	for _, p := range rows {
		joined := "Não"
		if p.JoinedGroup {
			joined = "Sim"
		}
		record := []string{
			p.CustomerName,
			p.CustomerEmail,
			p.CustomerPhone,
			p.ProductName,
			p.PurchaseDate.Format("02/01/2006 15:04"),
			joined,
		}
		if err := writer.Write(record); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "writing csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "flushing csv")
	}
	return nil
}
