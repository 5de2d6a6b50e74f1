// Package forecast predicts investment amounts and categories from the seven
// investment components, and projects yearly totals from history.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Feature order expected by every model.
var FeatureColumns = []string{
	"Mesin Peralatan",
	"Mesin Peralatan Impor",
	"Pembelian Pematangan Tanah",
	"Bangunan Gedung",
	"Modal Kerja",
	"Lain Lain",
	"TKI",
}

const (
	LabelHigh = "Tinggi"
	LabelLow  = "Rendah"
)

var (
	ErrFeatureCount   = errors.New("wrong number of features")
	ErrNegativeValue  = errors.New("feature values must not be negative")
	ErrNonFinite      = errors.New("feature values must be finite numbers")
	ErrModelService   = errors.New("model service unavailable")
	ErrNoModel        = errors.New("no forecast model configured")
	ErrYearOutOfRange = errors.New("year out of range")
)

// Regressor predicts an investment amount from features in FeatureColumns
// order.
type Regressor interface {
	Predict(ctx context.Context, features []float64) (float64, error)
}

// Classifier predicts the investment category; 1 means high.
type Classifier interface {
	Classify(ctx context.Context, features []float64) (int, error)
}

// CategoryLabel maps a classifier output to its display label.
func CategoryLabel(class int) string {
	if class == 1 {
		return LabelHigh
	}
	return LabelLow
}

// ComponentResult is the forecast for one set of component values.
type ComponentResult struct {
	Amount   float64 `json:"amount"`
	Class    int     `json:"class"`
	Category string  `json:"category"`
}

// Service combines the models with the yearly trend.
type Service struct {
	regressor  Regressor
	classifier Classifier
	trend      *Trend
}

func NewService(regressor Regressor, classifier Classifier, trend *Trend) *Service {
	return &Service{
		regressor:  regressor,
		classifier: classifier,
		trend:      trend,
	}
}

// Components predicts amount and category for one row of features.
func (s *Service) Components(ctx context.Context, features []float64) (*ComponentResult, error) {
	if s.regressor == nil || s.classifier == nil {
		return nil, ErrNoModel
	}
	if err := ValidateFeatures(features); err != nil {
		return nil, err
	}

	amount, err := s.regressor.Predict(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("failed to predict amount: %w", err)
	}
	class, err := s.classifier.Classify(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("failed to predict category: %w", err)
	}

	return &ComponentResult{Amount: amount, Class: class, Category: CategoryLabel(class)}, nil
}

// Year projects the total investment of year from the historical trend.
func (s *Service) Year(year int) (*YearResult, error) {
	if s.trend == nil {
		return nil, ErrNoModel
	}
	return s.trend.Forecast(year)
}

// ValidateFeatures checks count, sign and finiteness of a feature vector.
func ValidateFeatures(features []float64) error {
	if len(features) != len(FeatureColumns) {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(features), len(FeatureColumns))
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s", ErrNonFinite, FeatureColumns[i])
		}
		if v < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeValue, FeatureColumns[i])
		}
	}
	return nil
}
