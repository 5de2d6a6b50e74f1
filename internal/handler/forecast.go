package handler

import (
	"fmt"
	"net/http"
	"strings"

	"pride/internal/analytics"
	"pride/internal/audit"
	"pride/internal/forecast"
	"pride/internal/middleware"
	"pride/internal/schema"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// YearRequest is the body of POST /api/forecast/year.
type YearRequest struct {
	Year int `json:"year" binding:"required"`
}

// ComponentsRequest is the body of POST /api/forecast/components. Values are
// keyed by feature column name; absent components count as zero.
type ComponentsRequest struct {
	Values map[string]float64 `json:"values" binding:"required"`
}

type ForecastHandler interface {
	Year(c *gin.Context)
	Components(c *gin.Context)
	Batch(c *gin.Context)
}

type forecastHandler struct {
	forecasts      *forecast.Service
	audit          *audit.Log
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewForecastHandler(forecasts *forecast.Service, auditLog *audit.Log, maxUploadBytes int64, logger *zap.Logger) ForecastHandler {
	return &forecastHandler{forecasts: forecasts, audit: auditLog, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Year handles POST /api/forecast/year
func (h *forecastHandler) Year(c *gin.Context) {
	var req YearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.forecasts.Year(req.Year)
	if err != nil {
		respondError(c, h.logger, "Failed to forecast year", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"year":       res.Year,
		"prediction": res.Prediction,
		"history":    res.History,
		"insight":    fmt.Sprintf("Prediksi Jumlah Investasi Tahun %d adalah Rp %s", res.Year, analytics.FormatAmount(res.Prediction)),
	})
}

// Components handles POST /api/forecast/components
func (h *forecastHandler) Components(c *gin.Context) {
	var req ComponentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	features, err := featureVector(req.Values)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.forecasts.Components(c.Request.Context(), features)
	if err != nil {
		respondError(c, h.logger, "Failed to forecast components", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"amount":   res.Amount,
		"category": res.Category,
		"insight": fmt.Sprintf("Prediksi Jumlah Investasi Berdasarkan Komponen: Rp %s. Prediksi Kategori Jumlah Investasi: %s",
			analytics.FormatAmount(res.Amount), res.Category),
	})
}

func featureVector(values map[string]float64) ([]float64, error) {
	features := make([]float64, len(forecast.FeatureColumns))
	used := 0
	for i, name := range forecast.FeatureColumns {
		if v, ok := values[name]; ok {
			features[i] = v
			used++
		}
	}
	if used != len(values) {
		return nil, fmt.Errorf("unknown component; expected any of: %s", strings.Join(forecast.FeatureColumns, ", "))
	}
	return features, nil
}

// Batch handles POST /api/forecast/batch?format=json|xlsx
func (h *forecastHandler) Batch(c *gin.Context) {
	s := middleware.CurrentSession(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		if errorStatus(err) == http.StatusRequestEntityTooLarge {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, h.logger, "Failed to read upload", err)
		return
	}
	defer f.Close()

	table, err := schema.ReadFile(fh.Filename, f)
	if err != nil {
		respondError(c, h.logger, "Failed to read sheet", err)
		return
	}

	res, err := h.forecasts.Batch(c.Request.Context(), table)
	if err != nil {
		h.audit.Record(audit.ActionForecast, s.Username, false, logrus.Fields{"file": fh.Filename})
		respondError(c, h.logger, "Failed to forecast batch", err)
		return
	}
	h.audit.Record(audit.ActionForecast, s.Username, true, logrus.Fields{"file": fh.Filename, "rows": len(res.Rows)})

	if c.Query("format") == "xlsx" {
		data, err := res.XLSX()
		if err != nil {
			respondError(c, h.logger, "Failed to write forecast sheet", err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="hasil_prediksi.xlsx"`)
		c.Data(http.StatusOK, schema.XLSXContentType, data)
		return
	}

	c.JSON(http.StatusOK, res)
}
