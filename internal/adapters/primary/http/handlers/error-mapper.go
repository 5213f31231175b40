package handlers

import (
	"context"
	"errors"
	"net/http"

	"xray-pipeline/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, domain.ErrPipelineBusy):
		return http.StatusConflict

	// Bad request / validation errors
	case errors.Is(err, domain.ErrInvalidRunID),
		errors.Is(err, domain.ErrInvalidParams):
		return http.StatusBadRequest

	// Pipeline ran but rejected the data or the model
	case errors.Is(err, domain.ErrSourceNotFound),
		errors.Is(err, domain.ErrNoImages),
		errors.Is(err, domain.ErrDataValidationFailed),
		errors.Is(err, domain.ErrAccuracyBelowExpected),
		errors.Is(err, domain.ErrModelOverfit):
		return http.StatusUnprocessableEntity

	// Service unavailable errors
	case errors.Is(err, domain.ErrRunStoreDisabled),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

func mapDomainError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
