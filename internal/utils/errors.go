package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Common error types for consistent handling
var (
	ErrNotFound         = errors.New("resource not found")
	ErrBadRequest       = errors.New("invalid request")
	ErrValidation       = errors.New("validation error")
	ErrInsufficientData = errors.New("insufficient data to train")
	ErrTrainingBusy     = errors.New("training already in progress")
	ErrNoModel          = errors.New("no trained model available yet")
	ErrProvider         = errors.New("external provider error")
	ErrPersistence      = errors.New("persistence error")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrInternalServer   = errors.New("internal server error")
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HandleError processes an error and returns the appropriate HTTP response
func HandleError(ctx *gin.Context, err error, logger *Logger) {
	status, response := processError(err)

	// Server errors get logged with request context
	if status >= 500 {
		logger.Error("Server error",
			zap.Error(err),
			zap.String("path", ctx.Request.URL.Path),
			zap.String("method", ctx.Request.Method),
			zap.String("ip", ctx.ClientIP()),
		)
	}

	ctx.JSON(status, response)
}

// processError determines the appropriate HTTP status code and response for an error
func processError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: err.Error(),
		}
	case errors.Is(err, ErrInsufficientData):
		return http.StatusConflict, ErrorResponse{
			Error:   "insufficient_data",
			Message: err.Error(),
		}
	case errors.Is(err, ErrTrainingBusy):
		return http.StatusConflict, ErrorResponse{
			Error:   "training_in_progress",
			Message: err.Error(),
		}
	case errors.Is(err, ErrNoModel):
		// Surfaced as "not ready" rather than a generic 500
		return http.StatusServiceUnavailable, ErrorResponse{
			Error:   "no_model_available",
			Message: "no trained model available yet, trigger training first",
		}
	case errors.Is(err, ErrProvider):
		return http.StatusBadGateway, ErrorResponse{
			Error:   "provider_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrPersistence):
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "persistence_error",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_server_error",
			Message: "An unexpected error occurred",
		}
	}
}

// IsValidationError checks if an error is a "validation error"
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInsufficientDataError checks if an error means too few rows to train
func IsInsufficientDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

// IsTrainingBusyError checks if an error means a retrain is already running
func IsTrainingBusyError(err error) bool {
	return errors.Is(err, ErrTrainingBusy)
}

// IsNoModelError checks if an error means no trained model is loaded
func IsNoModelError(err error) bool {
	return errors.Is(err, ErrNoModel)
}

// IsProviderError checks if an error came from an external provider
func IsProviderError(err error) bool {
	return errors.Is(err, ErrProvider)
}

// IsPersistenceError checks if an error is a dataset or artifact write failure
func IsPersistenceError(err error) bool {
	return errors.Is(err, ErrPersistence)
}
