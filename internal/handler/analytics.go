package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pride/internal/analytics"
	"pride/internal/middleware"
	"pride/internal/schema"
	"pride/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Measures accepted by /api/analysis/monthly.
const (
	MeasureSum   = "sum"
	MeasureCount = "count"
)

// AnalysisRequest is the body of every /api/analysis endpoint. Value
// defaults to the investment total; Top, when positive, adds the top and
// bottom ranking of that size. Measure only applies to the monthly series:
// "count" counts projects per month instead of summing Value.
type AnalysisRequest struct {
	Filter  analytics.Filter `json:"filter"`
	GroupBy string           `json:"group_by"`
	Value   string           `json:"value"`
	Measure string           `json:"measure" binding:"omitempty,oneof=sum count"`
	Top     int              `json:"top"`
}

type AnalyticsHandler interface {
	Count(c *gin.Context)
	Sum(c *gin.Context)
	Monthly(c *gin.Context)
	Stats(c *gin.Context)
	Points(c *gin.Context)
}

type analyticsHandler struct {
	logger *zap.Logger
}

func NewAnalyticsHandler(logger *zap.Logger) AnalyticsHandler {
	return &analyticsHandler{logger: logger}
}

// view binds the request and applies its filter to the session's dataset.
// It writes the error response itself and returns nil on failure.
func (h *analyticsHandler) view(c *gin.Context, needGroup bool) (*analytics.View, *AnalysisRequest) {
	var req AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil
	}
	if needGroup && strings.TrimSpace(req.GroupBy) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_by is required"})
		return nil, nil
	}
	if req.Value == "" {
		req.Value = schema.FieldInvestment
	}

	d := middleware.CurrentSession(c).Dataset()
	if d == nil {
		respondError(c, h.logger, "No dataset", session.ErrNoDataset)
		return nil, nil
	}

	v, err := analytics.Select(d.Table, req.Filter)
	if err != nil {
		respondError(c, h.logger, "Failed to filter dataset", err)
		return nil, nil
	}
	return v, &req
}

func metricName(column string) string {
	return strings.ToLower(strings.ReplaceAll(column, "_", " "))
}

// insight tolerates an empty selection: the response then has no sentence.
func insight(text string, err error) string {
	if errors.Is(err, analytics.ErrNoData) {
		return ""
	}
	return text
}

func withRanking(resp gin.H, groups []analytics.Group, top int, subject string) {
	if top <= 0 {
		return
	}
	best := analytics.Rank(groups, top, true)
	worst := analytics.Rank(groups, top, false)
	resp["top"] = best
	resp["bottom"] = worst
	resp["top_insight"] = insight(analytics.RankInsight(fmt.Sprintf("%d %s teratas", top, subject), best))
	resp["bottom_insight"] = insight(analytics.RankInsight(fmt.Sprintf("%d %s terbawah", top, subject), worst))
}

// Count handles POST /api/analysis/count
func (h *analyticsHandler) Count(c *gin.Context) {
	v, req := h.view(c, true)
	if v == nil {
		return
	}

	groups, err := v.CountBy(req.GroupBy)
	if err != nil {
		respondError(c, h.logger, "Failed to count", err)
		return
	}

	resp := gin.H{
		"rows":    v.Len(),
		"groups":  groups,
		"insight": insight(analytics.ExtremesInsight(req.GroupBy, "jumlah proyek", groups)),
	}
	withRanking(resp, groups, req.Top, req.GroupBy)
	c.JSON(http.StatusOK, resp)
}

// Sum handles POST /api/analysis/sum
func (h *analyticsHandler) Sum(c *gin.Context) {
	v, req := h.view(c, true)
	if v == nil {
		return
	}

	agg, err := v.SumBy(req.GroupBy, req.Value)
	if err != nil {
		respondError(c, h.logger, "Failed to sum", err)
		return
	}

	resp := gin.H{
		"rows":    v.Len(),
		"groups":  agg.Groups,
		"skipped": agg.Skipped,
		"insight": insight(analytics.ExtremesInsight(req.GroupBy, metricName(req.Value), agg.Groups)),
	}
	withRanking(resp, agg.Groups, req.Top, req.GroupBy)
	c.JSON(http.StatusOK, resp)
}

// Monthly handles POST /api/analysis/monthly
func (h *analyticsHandler) Monthly(c *gin.Context) {
	v, req := h.view(c, false)
	if v == nil {
		return
	}

	measure, metric := MeasureSum, metricName(req.Value)
	var series analytics.MonthlySeries
	if req.Measure == MeasureCount {
		measure, metric = MeasureCount, "jumlah proyek"
		series = v.MonthlyCount()
	} else {
		var err error
		series, err = v.Monthly(req.Value)
		if err != nil {
			respondError(c, h.logger, "Failed to build monthly series", err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"rows":    v.Len(),
		"measure": measure,
		"points":  series.Points,
		"skipped": series.Skipped,
		"undated": series.Undated,
		"insight": insight(analytics.MonthlyInsight(metric, series)),
	})
}

// Stats handles POST /api/analysis/stats
func (h *analyticsHandler) Stats(c *gin.Context) {
	v, req := h.view(c, true)
	if v == nil {
		return
	}

	res, err := v.StatsBy(req.GroupBy, req.Value)
	if err != nil {
		respondError(c, h.logger, "Failed to compute statistics", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rows":    v.Len(),
		"groups":  res.Groups,
		"skipped": res.Skipped,
		"insight": insight(analytics.StatsInsight(req.GroupBy, metricName(req.Value), res)),
	})
}

// Points handles POST /api/analysis/points
func (h *analyticsHandler) Points(c *gin.Context) {
	v, _ := h.view(c, false)
	if v == nil {
		return
	}

	geo := v.Points()
	c.JSON(http.StatusOK, gin.H{
		"rows":     v.Len(),
		"points":   geo.Points,
		"unplaced": geo.Unplaced,
	})
}
