package records

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ausbildung/nachweis/internal/shared"
)

const overviewSheet = "Nachweise"

// ExportFileName names a record's PDF inside the export archive.
func ExportFileName(rec Record) string {
	return fmt.Sprintf("Nachweis_%d_%s.pdf", rec.Number, rec.ID)
}

// BatchExport renders every id into one ZIP. Any failure aborts the whole export.
func (s *Service) BatchExport(ctx context.Context, p shared.Principal, ids []uuid.UUID) ([]byte, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyIDs
	}
	if err := validateStruct(BatchRequest{IDs: ids}); err != nil {
		return nil, err
	}
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	recs := make([]Record, len(unique))
	pdfs := make([][]byte, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range unique {
		g.Go(func() error {
			rec, err := s.repo.GetByID(gctx, id)
			if err != nil {
				return fmt.Errorf("export %s: %w", id, err)
			}
			if !rec.CanRead(p) {
				return fmt.Errorf("export %s: %w", id, ErrCannotRead)
			}
			pdf, err := s.renderPDF(gctx, *rec)
			if err != nil {
				return fmt.Errorf("export %s: %w", id, err)
			}
			recs[i] = *rec
			pdfs[i] = pdf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("batch export aborted", slog.Int("records", len(unique)), slog.Any("error", err))
		return nil, err
	}

	archive, err := buildArchive(recs, pdfs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("batch export completed", slog.Int("records", len(recs)), slog.Int("bytes", len(archive)))
	return archive, nil
}

func buildArchive(recs []Record, pdfs [][]byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	now := time.Now()
	for i, rec := range recs {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: ExportFileName(rec), Method: zip.Deflate, Modified: now})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(pdfs[i]); err != nil {
			return nil, err
		}
	}
	overview, err := BuildOverview(recs)
	if err != nil {
		return nil, err
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "overview.xlsx", Method: zip.Deflate, Modified: now})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(overview); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildOverview writes the spreadsheet listing number, period, status and total hours.
func BuildOverview(recs []Record) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(overviewSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetColWidth(overviewSheet, "A", "A", 10)
	_ = f.SetColWidth(overviewSheet, "B", "C", 14)
	_ = f.SetColWidth(overviewSheet, "D", "D", 18)
	_ = f.SetColWidth(overviewSheet, "E", "E", 14)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	headers := []string{"Nummer", "Von", "Bis", "Status", "Stunden"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(overviewSheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(overviewSheet, "A1", last, headerStyle)

	for i, rec := range recs {
		row := i + 2
		hours, _ := TotalHours(rec.Activities).Float64()
		values := []any{rec.Number, rec.PeriodStart.String(), rec.PeriodEnd.String(), string(rec.Status), hours}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(overviewSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
