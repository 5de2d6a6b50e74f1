package forecast

import (
	"errors"
	"fmt"
	"sort"
)

const (
	MinForecastYear = 2024
	MaxForecastYear = 2100
)

// YearPoint is one year's total.
type YearPoint struct {
	Year   int     `json:"year"`
	Amount float64 `json:"amount"`
}

// YearResult is a projection together with the history it was fitted on.
type YearResult struct {
	Year       int         `json:"year"`
	Prediction float64     `json:"prediction"`
	History    []YearPoint `json:"history"`
}

// Trend is an ordinary least-squares line through yearly totals.
type Trend struct {
	history   []YearPoint
	slope     float64
	intercept float64
}

// FitTrend fits a line through history. At least two distinct years are
// needed.
func FitTrend(history map[int]float64) (*Trend, error) {
	if len(history) < 2 {
		return nil, errors.New("trend needs at least two years of history")
	}

	t := &Trend{}
	for y, v := range history {
		t.history = append(t.history, YearPoint{Year: y, Amount: v})
	}
	sort.Slice(t.history, func(i, j int) bool { return t.history[i].Year < t.history[j].Year })

	n := float64(len(t.history))
	var sumX, sumY float64
	for _, p := range t.history {
		sumX += float64(p.Year)
		sumY += p.Amount
	}
	meanX, meanY := sumX/n, sumY/n

	var sxy, sxx float64
	for _, p := range t.history {
		dx := float64(p.Year) - meanX
		sxy += dx * (p.Amount - meanY)
		sxx += dx * dx
	}

	t.slope = sxy / sxx
	t.intercept = meanY - t.slope*meanX
	return t, nil
}

// At evaluates the line at year without range checks.
func (t *Trend) At(year int) float64 {
	return t.slope*float64(year) + t.intercept
}

// Forecast projects year, which must lie in [MinForecastYear, MaxForecastYear].
func (t *Trend) Forecast(year int) (*YearResult, error) {
	if year < MinForecastYear || year > MaxForecastYear {
		return nil, fmt.Errorf("%w: %d not in %d-%d", ErrYearOutOfRange, year, MinForecastYear, MaxForecastYear)
	}
	return &YearResult{
		Year:       year,
		Prediction: t.At(year),
		History:    append([]YearPoint(nil), t.history...),
	}, nil
}
