package schema

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportSheetName is the single sheet written by Export.
const ExportSheetName = "Data Disesuaikan"

// XLSXContentType is the MIME type of exported workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export writes t as a one-sheet xlsx workbook with the canonical headers in
// order. Cells are written as text exactly as they appear in the normalized
// table, so normalized dates come out as YYYY-MM-DD and missing dates as
// empty cells.
func Export(t *NormalizedTable) ([]byte, error) {
	return WriteSheet(ExportSheetName, t.Headers, t.Rows)
}

// WriteSheet writes headers and rows as a one-sheet xlsx workbook.
func WriteSheet(sheet string, headers []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to open sheet writer: %w", err)
	}

	if err := sw.SetRow("A1", toCells(headers)); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, toCells(row)); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
