package handler

import (
	"fmt"
	"net/http"
	"strings"

	"pride/internal/analytics"
	"pride/internal/middleware"
	"pride/internal/schema"
	"pride/internal/service"
	"pride/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	previewRows  = 5
	maxWarnings  = 100
	exportedName = "adjusted_file.xlsx"
)

// filterColumns are offered as filter options by default.
var filterColumns = []string{
	schema.FieldSubDistrict,
	schema.FieldVillage,
	schema.FieldProjectType,
	schema.FieldCompanyType,
	schema.FieldBusinessScale,
	schema.FieldProjectRisk,
	schema.FieldInvestmentStatus,
	schema.FieldSector,
	schema.FieldKBLITitle,
}

type DatasetHandler interface {
	Schema(c *gin.Context)
	Upload(c *gin.Context)
	Current(c *gin.Context)
	Export(c *gin.Context)
	Options(c *gin.Context)
}

type datasetHandler struct {
	datasets       service.DatasetService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewDatasetHandler(datasets service.DatasetService, maxUploadBytes int64, logger *zap.Logger) DatasetHandler {
	return &datasetHandler{datasets: datasets, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Schema handles GET /api/schema
func (h *datasetHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"fields":     schema.OSS.Fields,
		"date_field": schema.OSS.DateField,
		"formats":    schema.SupportedExtensions,
	})
}

// Upload handles POST /api/datasets
func (h *datasetHandler) Upload(c *gin.Context) {
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

	d, err := h.datasets.Load(c.Request.Context(), s, fh.Filename, f)
	if err != nil {
		respondError(c, h.logger, "Failed to load dataset", err)
		return
	}

	c.JSON(http.StatusCreated, datasetSummary(d))
}

// Current handles GET /api/datasets/current
func (h *datasetHandler) Current(c *gin.Context) {
	d := middleware.CurrentSession(c).Dataset()
	if d == nil {
		respondError(c, h.logger, "No dataset", session.ErrNoDataset)
		return
	}
	c.JSON(http.StatusOK, datasetSummary(d))
}

// Export handles GET /api/datasets/current/export
func (h *datasetHandler) Export(c *gin.Context) {
	data, err := h.datasets.Export(middleware.CurrentSession(c))
	if err != nil {
		respondError(c, h.logger, "Failed to export dataset", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportedName))
	c.Data(http.StatusOK, schema.XLSXContentType, data)
}

// Options handles GET /api/datasets/current/options?column=...
func (h *datasetHandler) Options(c *gin.Context) {
	d := middleware.CurrentSession(c).Dataset()
	if d == nil {
		respondError(c, h.logger, "No dataset", session.ErrNoDataset)
		return
	}

	columns := filterColumns
	if q := strings.TrimSpace(c.Query("column")); q != "" {
		columns = []string{q}
	}

	values := make(map[string][]string, len(columns))
	for _, col := range columns {
		v, err := analytics.Distinct(d.Table, col)
		if err != nil {
			respondError(c, h.logger, "Failed to list options", err)
			return
		}
		values[col] = v
	}

	c.JSON(http.StatusOK, gin.H{
		"years":   analytics.Years(d.Table),
		"columns": values,
	})
}

func datasetSummary(d *session.Dataset) gin.H {
	t := d.Table

	warnings := t.Warnings
	if len(warnings) > maxWarnings {
		warnings = warnings[:maxWarnings]
	}
	preview := t.Rows
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}

	return gin.H{
		"file_name":          d.FileName,
		"uploaded_at":        d.UploadedAt,
		"rows":               t.Len(),
		"headers":            t.Headers,
		"missing_dates":      t.MissingDates(),
		"date_warnings":      len(t.Warnings),
		"warnings":           warnings,
		"header_drift":       t.Drift,
		"row_number_dropped": t.RowNumberDropped,
		"preview":            preview,
	}
}
