package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter implements ReportWriter by writing a local .xlsx workbook.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates an XLSXWriter that saves to the given path.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write renders the report into SUMMARY and HISTORY sheets and saves the file.
func (w *XLSXWriter) Write(_ context.Context, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "SUMMARY"); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet("HISTORY"); err != nil {
		return fmt.Errorf("creating HISTORY sheet: %w", err)
	}

	if err := writeRows(f, "SUMMARY", buildSummary(report)); err != nil {
		return err
	}
	if err := writeRows(f, "HISTORY", buildHistory(report)); err != nil {
		return err
	}

	if err := f.SetColWidth("SUMMARY", "A", "A", 18); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}
	if err := f.SetColWidth("HISTORY", "A", "C", 14); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("resolving cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
