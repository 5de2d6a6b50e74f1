package handler

import (
	"errors"
	"net/http"

	"pride/internal/analytics"
	"pride/internal/forecast"
	"pride/internal/repository"
	"pride/internal/schema"
	"pride/internal/service"
	"pride/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorStatus maps domain errors to HTTP statuses. Unknown errors are 500.
func errorStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, schema.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, schema.ErrSchemaMismatch),
		errors.Is(err, repository.ErrInvalidUsername),
		errors.Is(err, repository.ErrEmptyPassword),
		errors.Is(err, analytics.ErrUnknownColumn),
		errors.Is(err, forecast.ErrFeatureCount),
		errors.Is(err, forecast.ErrNegativeValue),
		errors.Is(err, forecast.ErrNonFinite),
		errors.Is(err, forecast.ErrYearOutOfRange),
		errors.Is(err, forecast.ErrMissingColumns):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrRegistrationDisabled):
		return http.StatusForbidden
	case errors.Is(err, session.ErrNoDataset):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, forecast.ErrModelService):
		return http.StatusBadGateway
	case errors.Is(err, forecast.ErrNoModel):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Internal errors are logged and their
// text is not exposed.
func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	if status == http.StatusBadGateway {
		logger.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
