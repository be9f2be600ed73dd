package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"pimphoto/internal"
)

var reportHeaders = []string{"Product ID", "Canonical Code", "URL", "Reason", "Locale Tag"}

// WriteMissingReport appends the missing entries to an XLSX report at path,
// creating it with a header row when absent. Appending keeps the report
// additive across passes, one per locale tag.
func WriteMissingReport(path string, entries []internal.MissingEntry) error {
	f, startRow, err := openReport(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, entry := range entries {
		r := startRow + i
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, entry.ProductInternalID)
		set(2, entry.CanonicalCode)
		set(3, entry.SourceURL)
		set(4, string(entry.Reason))
		set(5, entry.Tag)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func openReport(path string) (*excelize.File, int, error) {
	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, 0, err
		}
		rows, err := f.GetRows(f.GetSheetName(0))
		if err != nil {
			_ = f.Close()
			return nil, 0, err
		}
		return f, len(rows) + 1, nil
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, h := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	return f, 2, nil
}
