package membership

import (
	"context"
	"encoding/csv"
	"io"

	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
)

var csvHeader = []string{"Telefone", "Nome", "Admin"}

// ExportGroupCSV refreshes the group roster and streams it to w in the
// spreadsheet format the dashboard download expects. Opaque entries are
// skipped; they have no phone to contact.
func (s *Service) ExportGroupCSV(ctx context.Context, groupID string, w io.Writer) error {
	members, err := s.GroupMembers(ctx, groupID)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "writing csv header")
	}
	for _, m := range members {
		if m.Opaque {
			continue
		}
		admin := "Não"
		if m.IsAdmin {
			admin = "Sim"
		}
		if err := writer.Write([]string{m.Phone, m.Name, admin}); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "writing csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "flushing csv")
	}
	return nil
}
