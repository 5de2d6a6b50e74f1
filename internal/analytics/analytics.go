// Package analytics aggregates a normalized OSS table the way the dashboard's
// analysis page presents it: grouped counts and sums, monthly movement,
// per-group statistics and the sentences that summarize them.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"pride/internal/schema"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrNoData        = errors.New("no rows match the filter")
)

// Filter selects rows. Equals matches cells exactly after trimming space;
// Year, when non-zero, keeps rows whose issue date falls in that year.
type Filter struct {
	Equals map[string]string `json:"equals,omitempty"`
	Year   int               `json:"year,omitempty"`
}

// Group is one aggregated bucket.
type Group struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// View is a filtered selection of rows over a normalized table.
type View struct {
	table *schema.NormalizedTable
	rows  []int
}

// Select applies f to t. Unknown filter columns are an error.
func Select(t *schema.NormalizedTable, f Filter) (*View, error) {
	type cond struct {
		col   int
		value string
	}
	conds := make([]cond, 0, len(f.Equals))
	for column, value := range f.Equals {
		idx := t.Column(column)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		}
		conds = append(conds, cond{col: idx, value: strings.TrimSpace(value)})
	}

	v := &View{table: t}
	for i, row := range t.Rows {
		if f.Year != 0 {
			d := t.Dates[i]
			if d == nil || d.Year() != f.Year {
				continue
			}
		}
		match := true
		for _, c := range conds {
			if strings.TrimSpace(row[c.col]) != c.value {
				match = false
				break
			}
		}
		if match {
			v.rows = append(v.rows, i)
		}
	}
	return v, nil
}

// Len is the number of selected rows.
func (v *View) Len() int {
	return len(v.rows)
}

func (v *View) column(name string) (int, error) {
	idx := v.table.Column(name)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return idx, nil
}

// CountBy counts selected rows per distinct value of column, largest first.
// Blank cells are grouped under "".
func (v *View) CountBy(column string) ([]Group, error) {
	idx, err := v.column(column)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]float64)
	for _, r := range v.rows {
		counts[strings.TrimSpace(v.table.Rows[r][idx])]++
	}
	return sortedGroups(counts), nil
}

// Aggregate is a grouped numeric result. Skipped counts non-empty cells of the
// value column that were not numbers; they contribute zero.
type Aggregate struct {
	Groups  []Group `json:"groups"`
	Skipped int     `json:"skipped"`
}

// SumBy totals valueColumn per distinct value of column, largest first.
func (v *View) SumBy(column, valueColumn string) (Aggregate, error) {
	idx, err := v.column(column)
	if err != nil {
		return Aggregate{}, err
	}
	valIdx, err := v.column(valueColumn)
	if err != nil {
		return Aggregate{}, err
	}

	sums := make(map[string]float64)
	skipped := 0
	for _, r := range v.rows {
		row := v.table.Rows[r]
		n, ok := ParseNumber(row[valIdx])
		if !ok && strings.TrimSpace(row[valIdx]) != "" {
			skipped++
		}
		sums[strings.TrimSpace(row[idx])] += n
	}
	return Aggregate{Groups: sortedGroups(sums), Skipped: skipped}, nil
}

// MonthPoint is the total of one calendar month and its change from the
// previous month in the series.
type MonthPoint struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
	Delta float64 `json:"delta"`
}

// MonthlySeries is a chronological list of monthly totals. Undated counts
// rows left out because their issue date is missing.
type MonthlySeries struct {
	Points  []MonthPoint `json:"points"`
	Skipped int          `json:"skipped"`
	Undated int          `json:"undated"`
}

// Monthly totals valueColumn per issue month (YYYY-MM). Only months that
// have at least one row appear.
func (v *View) Monthly(valueColumn string) (MonthlySeries, error) {
	valIdx, err := v.column(valueColumn)
	if err != nil {
		return MonthlySeries{}, err
	}

	var out MonthlySeries
	totals := make(map[string]float64)
	for _, r := range v.rows {
		d := v.table.Dates[r]
		if d == nil {
			out.Undated++
			continue
		}
		cell := v.table.Rows[r][valIdx]
		n, ok := ParseNumber(cell)
		if !ok && strings.TrimSpace(cell) != "" {
			out.Skipped++
		}
		totals[d.Format("2006-01")] += n
	}
	out.Points = monthPoints(totals)
	return out, nil
}

// MonthlyCount counts selected rows (projects) per issue month.
func (v *View) MonthlyCount() MonthlySeries {
	var out MonthlySeries
	counts := make(map[string]float64)
	for _, r := range v.rows {
		d := v.table.Dates[r]
		if d == nil {
			out.Undated++
			continue
		}
		counts[d.Format("2006-01")]++
	}
	out.Points = monthPoints(counts)
	return out
}

func monthPoints(totals map[string]float64) []MonthPoint {
	months := make([]string, 0, len(totals))
	for m := range totals {
		months = append(months, m)
	}
	sort.Strings(months)

	points := make([]MonthPoint, 0, len(months))
	for i, m := range months {
		p := MonthPoint{Month: m, Total: totals[m]}
		if i > 0 {
			p.Delta = p.Total - totals[months[i-1]]
		}
		points = append(points, p)
	}
	return points
}

// GroupStats are the central tendencies of one group. Mode is the smallest
// of the most frequent values.
type GroupStats struct {
	Key    string  `json:"key"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Mode   float64 `json:"mode"`
}

// StatsResult holds per-group statistics ordered by key.
type StatsResult struct {
	Groups  []GroupStats `json:"groups"`
	Skipped int          `json:"skipped"`
}

// StatsBy computes mean, median and mode of valueColumn per distinct value of
// column. Empty and non-numeric cells are left out of the statistics.
func (v *View) StatsBy(column, valueColumn string) (StatsResult, error) {
	idx, err := v.column(column)
	if err != nil {
		return StatsResult{}, err
	}
	valIdx, err := v.column(valueColumn)
	if err != nil {
		return StatsResult{}, err
	}

	var out StatsResult
	values := make(map[string][]float64)
	for _, r := range v.rows {
		row := v.table.Rows[r]
		cell := strings.TrimSpace(row[valIdx])
		if cell == "" {
			continue
		}
		n, ok := ParseNumber(cell)
		if !ok {
			out.Skipped++
			continue
		}
		key := strings.TrimSpace(row[idx])
		values[key] = append(values[key], n)
	}

	for key, vals := range values {
		out.Groups = append(out.Groups, GroupStats{
			Key:    key,
			Count:  len(vals),
			Mean:   mean(vals),
			Median: median(vals),
			Mode:   mode(vals),
		})
	}
	sort.Slice(out.Groups, func(i, j int) bool { return out.Groups[i].Key < out.Groups[j].Key })
	return out, nil
}

// Rank returns the n largest (top) or n smallest groups. Groups must be
// sorted largest first, as CountBy and SumBy return them; the bottom ranking
// is returned smallest first.
func Rank(groups []Group, n int, top bool) []Group {
	if n <= 0 || len(groups) == 0 {
		return nil
	}
	if n > len(groups) {
		n = len(groups)
	}
	if top {
		return append([]Group(nil), groups[:n]...)
	}
	out := make([]Group, 0, n)
	for i := len(groups) - 1; i >= len(groups)-n; i-- {
		out = append(out, groups[i])
	}
	return out
}

// Distinct lists the non-blank values of column in t, sorted.
func Distinct(t *schema.NormalizedTable, column string) ([]string, error) {
	idx := t.Column(column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}

	seen := make(map[string]struct{})
	for _, row := range t.Rows {
		if v := strings.TrimSpace(row[idx]); v != "" {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// Years lists the issue years present in t, ascending.
func Years(t *schema.NormalizedTable) []int {
	seen := make(map[int]struct{})
	for _, d := range t.Dates {
		if d != nil {
			seen[d.Year()] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for y := range seen {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// ParseNumber reads a spreadsheet cell as a number. It accepts plain
// decimals, an optional "Rp" prefix, and comma thousands separators as the
// spreadsheet's "#,##0" display format writes them. NaN and infinities are
// not numbers here.
func ParseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	s = strings.TrimSpace(strings.TrimPrefix(s, "Rp"))
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		n, err = strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	}
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func sortedGroups(m map[string]float64) []Group {
	out := make([]Group, 0, len(m))
	for k, v := range m {
		out = append(out, Group{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}

func mode(vals []float64) float64 {
	counts := make(map[float64]int)
	for _, v := range vals {
		counts[v]++
	}
	best, bestCount := 0.0, 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}
