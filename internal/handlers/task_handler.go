package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/ayudamx/volunteer-service/internal/services"
	"github.com/ayudamx/volunteer-service/internal/utils"
	"github.com/ayudamx/volunteer-service/internal/validator"
)

type TaskHandler struct {
	BaseHandler
	taskService       services.TaskService
	assignmentService services.AssignmentService
	validator         *validator.Validator
}

func NewTaskHandler(taskService services.TaskService, assignmentService services.AssignmentService, validator *validator.Validator, logger utils.Logger) *TaskHandler {
	return &TaskHandler{
		BaseHandler:       NewBaseHandler(logger),
		taskService:       taskService,
		assignmentService: assignmentService,
		validator:         validator,
	}
}

// CreateTask creates a new task with its initial volunteers
// @Summary Create task
// @Description Create a task and assign its initial volunteers in one transaction
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body services.CreateTaskRequest true "Task payload"
// @Success 201 {object} services.TaskResponse
// @Failure 400 {object} ErrorResponse "Validation failed"
// @Failure 409 {object} ErrorResponse "Capacity exceeded"
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	var req services.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating task", "name", req.Name, "volunteers", len(req.VolunteerIDs))

	task, err := h.taskService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// GetTask retrieves a task by ID
// @Summary Get task
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} services.TaskResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID, ok := h.parseTaskID(c)
	if !ok {
		return
	}

	userID, _ := GetUserIDFromContext(c)

	task, err := h.taskService.GetByID(c.Request.Context(), taskID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// ListTasks lists tasks with optional filtering
// @Summary List tasks
// @Tags tasks
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param completed query bool false "Filter by completion"
// @Param status query string false "Filter by status (draft, open, completed)"
// @Success 200 {object} services.TaskListResponse
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, _ := GetUserIDFromContext(c)
	filters := h.parseTaskFilters(c)

	response, err := h.taskService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ListOpenTasks lists all not-completed tasks
// @Summary List open tasks
// @Tags tasks
// @Produce json
// @Success 200 {array} services.TaskResponse
// @Router /tasks/open [get]
func (h *TaskHandler) ListOpenTasks(c *gin.Context) {
	tasks, err := h.taskService.ListOpen(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// UpdateTask updates task fields and reconciles its volunteer list
// @Summary Update task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body services.UpdateTaskRequest true "Update payload"
// @Success 200 {object} services.TaskResponse
// @Failure 400 {object} ErrorResponse "Validation failed"
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	taskID, ok := h.parseTaskID(c)
	if !ok {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	var req services.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating task", "task_id", taskID)

	task, err := h.taskService.Update(c.Request.Context(), taskID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// DeleteTask deletes a task and releases its volunteers
// @Summary Delete task
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID, ok := h.parseTaskID(c)
	if !ok {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	h.LogRequest(c, "Deleting task", "task_id", taskID)

	if err := h.taskService.Delete(c.Request.Context(), taskID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Task deleted"})
}

// ToggleTaskCompleted flips the completed flag
// @Summary Toggle task completion
// @Description Mark a task completed, or reopen it when toggled again
// @Tags tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} services.TaskResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /tasks/{id}/toggle-completed [post]
func (h *TaskHandler) ToggleTaskCompleted(c *gin.Context) {
	taskID, ok := h.parseTaskID(c)
	if !ok {
		return
	}

	userID, _ := GetUserIDFromContext(c)

	h.LogRequest(c, "Toggling task completion", "task_id", taskID)

	task, err := h.taskService.ToggleCompleted(c.Request.Context(), taskID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// AssignVolunteers adds volunteers to a task
// @Summary Assign volunteers
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body services.AssignVolunteersRequest true "Volunteer IDs"
// @Success 200 {object} services.TaskResponse
// @Failure 409 {object} ErrorResponse "Capacity exceeded"
// @Router /tasks/{id}/volunteers [post]
func (h *TaskHandler) AssignVolunteers(c *gin.Context) {
	taskID, ok := h.parseTaskID(c)
	if !ok {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	var req services.AssignVolunteersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Assigning volunteers", "task_id", taskID, "count", len(req.VolunteerIDs))

	task, err := h.assignmentService.Assign(c.Request.Context(), taskID, req.VolunteerIDs, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// UnassignVolunteers removes volunteers from a task
// @Summary Unassign volunteers
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body services.UnassignVolunteersRequest true "Volunteer IDs"
// @Success 200 {object} services.TaskResponse
// @Router /tasks/{id}/volunteers [delete]
func (h *TaskHandler) UnassignVolunteers(c *gin.Context) {
	taskID, ok := h.parseTaskID(c)
	if !ok {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	var req services.UnassignVolunteersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Unassigning volunteers", "task_id", taskID, "count", len(req.VolunteerIDs))

	task, err := h.assignmentService.Unassign(c.Request.Context(), taskID, req.VolunteerIDs, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// GetTaskStats returns task counters
// @Summary Task statistics
// @Tags tasks
// @Produce json
// @Success 200 {object} repositories.TaskStats
// @Router /tasks/stats [get]
func (h *TaskHandler) GetTaskStats(c *gin.Context) {
	stats, err := h.taskService.GetStats(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ===== HELPER METHODS =====

func (h *TaskHandler) parseTaskID(c *gin.Context) (uint, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid task ID",
			Details: idStr,
		})
		return 0, false
	}
	return uint(id), true
}

func (h *TaskHandler) parseTaskFilters(c *gin.Context) repositories.TaskFilters {
	page := 1
	size := 10

	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if sizeStr := c.Query("size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
			size = s
		}
	}

	filters := repositories.TaskFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if completedStr := c.Query("completed"); completedStr != "" {
		if completed, err := strconv.ParseBool(completedStr); err == nil {
			filters.Completed = &completed
		}
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := models.TaskStatus(statusStr)
		filters.Status = &status
	}
	if createdBy := c.Query("created_by"); createdBy != "" {
		filters.CreatedBy = &createdBy
	}
	if fromStr := c.Query("deadline_from"); fromStr != "" {
		if from, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filters.DeadlineFrom = &from
		}
	}
	if toStr := c.Query("deadline_to"); toStr != "" {
		if to, err := time.Parse(time.RFC3339, toStr); err == nil {
			filters.DeadlineTo = &to
		}
	}

	return filters
}
