package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the model service over JSON. It serves as both Regressor
// and Classifier.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// FeaturesRequest is the body of both prediction endpoints.
type FeaturesRequest struct {
	Features []float64 `json:"features"`
}

// RegressionResponse is the model service's amount prediction.
type RegressionResponse struct {
	Prediction float64 `json:"prediction"`
}

// CategoryResponse is the model service's category prediction.
type CategoryResponse struct {
	Class int `json:"class"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status           string `json:"status"`
	RegressionLoaded bool   `json:"regression_loaded"`
	CategoryLoaded   bool   `json:"category_loaded"`
	Message          string `json:"message,omitempty"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Predict implements Regressor.
func (c *Client) Predict(ctx context.Context, features []float64) (float64, error) {
	var result RegressionResponse
	if err := c.post(ctx, "/api/v1/predict/regression", FeaturesRequest{Features: features}, &result); err != nil {
		return 0, err
	}
	return result.Prediction, nil
}

// Classify implements Classifier.
func (c *Client) Classify(ctx context.Context, features []float64) (int, error) {
	var result CategoryResponse
	if err := c.post(ctx, "/api/v1/predict/category", FeaturesRequest{Features: features}, &result); err != nil {
		return 0, err
	}
	return result.Class, nil
}

// HealthCheck checks if the model service is healthy
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result HealthResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to send request: %v", ErrModelService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d: %s", ErrModelService, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrModelService, err)
	}
	return nil
}
