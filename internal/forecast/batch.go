package forecast

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pride/internal/analytics"
	"pride/internal/schema"
)

// Columns appended to a batch sheet.
const (
	ColumnPrediction = "Prediksi Investasi"
	ColumnCategory   = "Kategori Investasi"

	BatchSheetName = "Hasil Prediksi"
)

var ErrMissingColumns = errors.New("missing feature columns")

// MissingColumnsError lists the feature columns a batch sheet lacks.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// BatchRow is the forecast of one data row. SheetRow is 1-based and counts
// the header row.
type BatchRow struct {
	SheetRow int     `json:"sheet_row"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

// BatchResult is a sheet enriched with a prediction and category per row.
// Rows whose features are not numbers are listed in Invalid and left without
// a prediction.
type BatchResult struct {
	Headers     []string          `json:"headers"`
	Rows        [][]string        `json:"-"`
	Predictions []BatchRow        `json:"predictions"`
	Invalid     []int             `json:"invalid_rows,omitempty"`
	Counts      []analytics.Group `json:"category_counts"`
	Insight     string            `json:"insight,omitempty"`
}

// Batch predicts every row of t. Feature columns are found by header name
// anywhere in the sheet; other columns are carried through unchanged.
func (s *Service) Batch(ctx context.Context, t schema.Table) (*BatchResult, error) {
	if s.regressor == nil || s.classifier == nil {
		return nil, ErrNoModel
	}

	idx := make([]int, len(FeatureColumns))
	var missing []string
	for i, name := range FeatureColumns {
		idx[i] = schema.HeaderIndex(t.Headers, name)
		if idx[i] < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	out := &BatchResult{
		Headers: append(append([]string(nil), t.Headers...), ColumnPrediction, ColumnCategory),
	}
	counts := make(map[string]float64)

	for r, row := range t.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		enriched := make([]string, len(out.Headers))
		copy(enriched, row[:min(len(row), len(t.Headers))])

		features, ok := rowFeatures(row, idx)
		if !ok {
			out.Invalid = append(out.Invalid, r+2)
			out.Rows = append(out.Rows, enriched)
			continue
		}

		res, err := s.Components(ctx, features)
		if errors.Is(err, ErrNegativeValue) {
			out.Invalid = append(out.Invalid, r+2)
			out.Rows = append(out.Rows, enriched)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r+2, err)
		}

		enriched[len(enriched)-2] = strconv.FormatFloat(res.Amount, 'f', 2, 64)
		enriched[len(enriched)-1] = res.Category
		out.Rows = append(out.Rows, enriched)
		out.Predictions = append(out.Predictions, BatchRow{SheetRow: r + 2, Amount: res.Amount, Category: res.Category})
		counts[res.Category]++
	}

	for _, label := range []string{LabelHigh, LabelLow} {
		if n := counts[label]; n > 0 {
			out.Counts = append(out.Counts, analytics.Group{Key: label, Value: n})
		}
	}
	if insight, err := analytics.ShareInsight("jumlah investasi", out.Counts); err == nil {
		out.Insight = insight
	}
	return out, nil
}

// XLSX writes the enriched sheet.
func (r *BatchResult) XLSX() ([]byte, error) {
	return schema.WriteSheet(BatchSheetName, r.Headers, r.Rows)
}

// Blank feature cells count as zero.
func rowFeatures(row []string, idx []int) ([]float64, bool) {
	features := make([]float64, len(idx))
	for i, c := range idx {
		if c >= len(row) || strings.TrimSpace(row[c]) == "" {
			continue
		}
		v, ok := analytics.ParseNumber(row[c])
		if !ok {
			return nil, false
		}
		features[i] = v
	}
	return features, true
}
