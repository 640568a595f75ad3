package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	mechanicdomain "github.com/smallbiznis/bengkel/internal/mechanic/domain"
	performancedomain "github.com/smallbiznis/bengkel/internal/performance/domain"
	workorderdomain "github.com/smallbiznis/bengkel/internal/workorder/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, mechanicdomain.ErrMechanicNotFound),
		errors.Is(err, workorderdomain.ErrWorkOrderNotFound),
		errors.Is(err, performancedomain.ErrAggregateNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}

	case errors.Is(err, performancedomain.ErrNotCumulative),
		errors.Is(err, workorderdomain.ErrAlreadyCompleted),
		errors.Is(err, workorderdomain.ErrNotCompletable):
		return http.StatusConflict, errorPayload{Type: "invalid_state", Message: err.Error()}

	case errors.Is(err, performancedomain.ErrTransient):
		return http.StatusServiceUnavailable, errorPayload{Type: "transient", Message: "temporary contention, retry"}

	case errors.Is(err, mechanicdomain.ErrInvalidName),
		errors.Is(err, workorderdomain.ErrInvalidMechanic),
		errors.Is(err, workorderdomain.ErrInvalidLaborCost),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}

	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal error"}
	}
}
