package forecast

import (
	"context"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// LinearModel is a standardized linear regressor paired with a logistic
// classifier, exported from the training notebook as YAML.
type LinearModel struct {
	Scaler struct {
		Mean  []float64 `yaml:"mean"`
		Scale []float64 `yaml:"scale"`
	} `yaml:"scaler"`
	Regression struct {
		Coefficients []float64 `yaml:"coefficients"`
		Intercept    float64   `yaml:"intercept"`
	} `yaml:"regression"`
	Classifier struct {
		Coefficients []float64 `yaml:"coefficients"`
		Intercept    float64   `yaml:"intercept"`
		Threshold    float64   `yaml:"threshold"`
	} `yaml:"classifier"`
}

// LoadLinearModel reads and validates a model file.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return ParseLinearModel(data)
}

// ParseLinearModel decodes a YAML model. A zero classifier threshold means
// 0.5.
func ParseLinearModel(data []byte) (*LinearModel, error) {
	m := &LinearModel{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode model file: %w", err)
	}

	n := len(FeatureColumns)
	for name, v := range map[string][]float64{
		"scaler.mean":             m.Scaler.Mean,
		"scaler.scale":            m.Scaler.Scale,
		"regression.coefficients": m.Regression.Coefficients,
		"classifier.coefficients": m.Classifier.Coefficients,
	} {
		if len(v) != n {
			return nil, fmt.Errorf("model field %s has %d values, want %d", name, len(v), n)
		}
	}
	for i, s := range m.Scaler.Scale {
		if s == 0 {
			return nil, fmt.Errorf("model scaler.scale[%d] is zero", i)
		}
	}
	if m.Classifier.Threshold == 0 {
		m.Classifier.Threshold = 0.5
	}
	return m, nil
}

func (m *LinearModel) scale(features []float64) []float64 {
	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = (v - m.Scaler.Mean[i]) / m.Scaler.Scale[i]
	}
	return out
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Predict implements Regressor.
func (m *LinearModel) Predict(_ context.Context, features []float64) (float64, error) {
	if len(features) != len(FeatureColumns) {
		return 0, ErrFeatureCount
	}
	return dot(m.Regression.Coefficients, m.scale(features)) + m.Regression.Intercept, nil
}

// Classify implements Classifier.
func (m *LinearModel) Classify(_ context.Context, features []float64) (int, error) {
	if len(features) != len(FeatureColumns) {
		return 0, ErrFeatureCount
	}
	z := dot(m.Classifier.Coefficients, m.scale(features)) + m.Classifier.Intercept
	if 1/(1+math.Exp(-z)) >= m.Classifier.Threshold {
		return 1, nil
	}
	return 0, nil
}
