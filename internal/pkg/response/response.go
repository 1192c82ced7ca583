package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carshare/internal/domain"
	"carshare/internal/pkg/validator"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{domain.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{domain.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED", "You are not allowed to perform this action"},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Resource not found"},
	{domain.ErrInsufficientFunds, http.StatusConflict, "INSUFFICIENT_FUNDS", "Insufficient funds"},
	{domain.ErrInsufficientLockedFunds, http.StatusConflict, "INSUFFICIENT_LOCKED_FUNDS", "Held funds do not cover this amount"},
	{domain.ErrDuplicateHold, http.StatusConflict, "DUPLICATE_HOLD", "Funds are already held for this reference"},
	{domain.ErrInvalidStateTransition, http.StatusConflict, "INVALID_STATE_TRANSITION", "Booking cannot move to the requested status"},
	{domain.ErrCarNotAvailable, http.StatusConflict, "CAR_NOT_AVAILABLE", "Car is not available for the selected dates"},
	{domain.ErrConcurrentModification, http.StatusConflict, "CONCURRENT_MODIFICATION", "Booking was modified concurrently, retry the request"},
}

// FromError writes the envelope for a service error. Validation messages are
// passed through; anything unrecognised becomes a 500 without internals.
func FromError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrFatalInconsistency) {
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, "INCONSISTENT_STATE", "Operation failed and could not be rolled back, support has been notified")
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			Error(c, m.status, m.code, msg)
			return
		}
	}
	_ = c.Error(err)
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}

// BindError reports a request body that failed to bind. Field rules are
// returned as details when the failure came from validation tags.
func BindError(c *gin.Context, err error) {
	if fields := validator.Fields(err); len(fields) > 0 {
		ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", fields)
		return
	}
	Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
}
