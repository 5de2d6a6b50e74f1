package schema

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrSchemaMismatch    = errors.New("column count does not match the canonical schema")
)

// SchemaMismatchError carries the offending column count. It matches
// ErrSchemaMismatch with errors.Is.
type SchemaMismatchError struct {
	Got  int
	Want int
	Row  int // spreadsheet row (1-based) for a row wider than the header, 0 for the header
}

func (e *SchemaMismatchError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s: row %d has %d columns, want %d", ErrSchemaMismatch, e.Row, e.Got, e.Want)
	}
	return fmt.Sprintf("%s: got %d columns, want %d", ErrSchemaMismatch, e.Got, e.Want)
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// DateParseWarning records a date cell that could not be parsed. The row's
// date is treated as missing; the rest of the row is kept. A row holding
// nothing but the bad date is dropped and its warning has Row -1.
type DateParseWarning struct {
	Row      int    `json:"row"`       // index into NormalizedTable.Rows, or -1
	SheetRow int    `json:"sheet_row"` // 1-based spreadsheet row, header is row 1
	Value    string `json:"value"`
}

func (w DateParseWarning) Error() string {
	return fmt.Sprintf("row %d: cannot parse date %q", w.SheetRow, w.Value)
}

// HeaderDrift is a position where the uploaded header text differs from the
// canonical name it was mapped to.
type HeaderDrift struct {
	Position  int    `json:"position"`
	Uploaded  string `json:"uploaded"`
	Canonical string `json:"canonical"`
}
