package schema

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// Formats the upload endpoints accept, by extension.
var SupportedExtensions = []string{".xlsx", ".csv"}

// ReadFile reads the first sheet of an xlsx workbook or a csv file. The
// format is chosen by the file name's extension.
func ReadFile(name string, r io.Reader) (Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return readXLSX(r)
	case ".csv":
		return readCSV(r)
	default:
		return Table{}, fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedFormat, filepath.Ext(name), strings.Join(SupportedExtensions, ", "))
	}
}

func readXLSX(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("%w: not a readable xlsx workbook: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("%w: workbook has no sheets", ErrUnsupportedFormat)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	return tableFromRows(rows), nil
}

func readCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("%w: malformed csv: %v", ErrUnsupportedFormat, err)
		}
		rows = append(rows, record)
	}

	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], utf8BOM)
	}

	return tableFromRows(rows), nil
}

// tableFromRows splits off the header row and pads short rows, which the
// xlsx reader produces when trailing cells are empty.
func tableFromRows(rows [][]string) Table {
	if len(rows) == 0 {
		return Table{}
	}

	t := Table{Headers: trimTrailingEmpty(rows[0])}
	width := len(t.Headers)

	for _, row := range rows[1:] {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func trimTrailingEmpty(cells []string) []string {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	return cells[:end]
}

// ReadBytes is ReadFile over an in-memory upload.
func ReadBytes(name string, data []byte) (Table, error) {
	return ReadFile(name, bytes.NewReader(data))
}
