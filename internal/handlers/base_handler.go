package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/ayudamx/volunteer-service/internal/services"
	"github.com/ayudamx/volunteer-service/internal/utils"
)

// ErrorResponse is the error envelope returned by every handler.
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps operations with no natural response body.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the pieces every handler needs.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs an incoming request with the request-scoped logger.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c).Info(msg, args...)
}

// LogError logs a handler failure with the request-scoped logger.
func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err)
	utils.GetLogger(c).Error(msg, args...)
}

// handleServiceError maps service errors onto HTTP responses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var capacityError *services.CapacityError
	if errors.As(err, &capacityError) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: capacityError.Error(),
			Details: map[string]interface{}{
				"task_id":   capacityError.TaskID,
				"capacity":  capacityError.Capacity,
				"requested": capacityError.Requested,
			},
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Task not found",
		})
	case errors.Is(err, services.ErrVolunteerNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Volunteer not found",
		})
	case errors.Is(err, services.ErrUserNotFound), errors.Is(err, repositories.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
		})
	case errors.Is(err, services.ErrVolunteerNotApproved):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Volunteer profile is not approved",
		})
	case errors.Is(err, services.ErrTaskCompleted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Task is already completed",
		})
	case errors.Is(err, services.ErrNotAssigned):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Volunteer is not assigned to this task",
		})
	case errors.Is(err, services.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "No puedes seleccionar más voluntarios que los necesarios",
		})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Unauthorized",
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden",
		})
	case errors.Is(err, services.ErrStoreUnavailable), errors.Is(err, repositories.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Storage temporarily unavailable",
		})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
