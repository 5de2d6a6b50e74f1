package schema

import (
	"strings"
	"time"
)

// Table is a raw sheet: the first row as headers, the rest as rows.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NormalizedTable is a table whose headers are exactly the schema's fields.
// Rows all have len(Headers) cells. Dates[i] is the parsed date of Rows[i],
// or nil when the cell was empty or unparseable; in that case the date cell
// of Rows[i] is "".
type NormalizedTable struct {
	Schema           Schema
	Headers          []string
	Rows             [][]string
	Dates            []*time.Time
	Warnings         []DateParseWarning
	Drift            []HeaderDrift
	RowNumberDropped bool
}

// Normalize renames raw's columns positionally to s.Fields and parses the
// date column. Column count must match the schema exactly; the only tolerated
// extra column is a leading row-number column.
func Normalize(raw Table, s Schema) (*NormalizedTable, error) {
	want := len(s.Fields)
	headers := raw.Headers
	rows := raw.Rows

	dropFirst := len(headers) == want+1 && isRowNumberHeader(headers[0])
	if dropFirst {
		headers = headers[1:]
	}
	if len(headers) != want {
		return nil, &SchemaMismatchError{Got: len(headers), Want: want}
	}

	out := &NormalizedTable{
		Schema:           s,
		Headers:          append([]string(nil), s.Fields...),
		RowNumberDropped: dropFirst,
	}

	for i, h := range headers {
		if foldHeader(h) != foldHeader(s.Fields[i]) {
			out.Drift = append(out.Drift, HeaderDrift{Position: i, Uploaded: h, Canonical: s.Fields[i]})
		}
	}

	dateIdx := s.DateIndex()
	for i, raw := range rows {
		cells := raw
		if dropFirst && len(cells) > 0 {
			cells = cells[1:]
		}
		if isBlankRow(cells) {
			continue
		}
		if len(cells) > want && !isBlankRow(cells[want:]) {
			return nil, &SchemaMismatchError{Got: len(cells), Want: want, Row: i + 2}
		}

		row := make([]string, want)
		copy(row, cells)

		var date *time.Time
		var bad string
		if dateIdx >= 0 {
			value := row[dateIdx]
			if t, ok := ParseDate(value); ok {
				date = &t
				row[dateIdx] = t.Format(DateLayout)
			} else {
				if strings.TrimSpace(value) != "" {
					bad = value
				}
				row[dateIdx] = ""
			}
		}

		// A row left empty once its date is cleared would vanish on the next
		// pass over the export, so it is dropped here too.
		keep := !isBlankRow(row)
		if bad != "" {
			w := DateParseWarning{Row: -1, SheetRow: i + 2, Value: bad}
			if keep {
				w.Row = len(out.Rows)
			}
			out.Warnings = append(out.Warnings, w)
		}
		if !keep {
			continue
		}

		out.Rows = append(out.Rows, row)
		out.Dates = append(out.Dates, date)
	}

	return out, nil
}

// Column returns the index of a field in the normalized headers, or -1.
func (t *NormalizedTable) Column(field string) int {
	for i, h := range t.Headers {
		if h == field {
			return i
		}
	}
	return -1
}

// Len is the number of data rows.
func (t *NormalizedTable) Len() int {
	return len(t.Rows)
}

// MissingDates counts rows without a usable date, whether the cell was empty
// or unparseable.
func (t *NormalizedTable) MissingDates() int {
	n := 0
	for _, d := range t.Dates {
		if d == nil {
			n++
		}
	}
	return n
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
