package utils

import (
	"errors"
	"net/http"

	"document-qa-platform/internal/errs"
	"document-qa-platform/internal/llm"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithUnauthorized sends a 401 Unauthorized error
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// RespondWithForbidden sends a 403 Forbidden error
func RespondWithForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, "forbidden", message, nil)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithDomainError maps service-layer errors to HTTP responses so
// handlers don't repeat the same switch everywhere.
func RespondWithDomainError(c *gin.Context, err error) {
	switch {
	case errs.IsValidation(err):
		RespondWithError(c, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errs.IsNotFound(err):
		RespondWithError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errs.IsExtraction(err):
		RespondWithError(c, http.StatusUnprocessableEntity, "extraction_failed", err.Error(), nil)
	case errors.Is(err, llm.ErrNoProvider):
		RespondWithError(c, http.StatusServiceUnavailable, "no_provider", err.Error(), nil)
	default:
		var llmErr *llm.Error
		if errors.As(err, &llmErr) {
			RespondWithError(c, http.StatusServiceUnavailable, "provider_error", llmErr.Error(), nil)
			return
		}
		RespondWithInternalError(c, "Internal server error", nil)
	}
}
