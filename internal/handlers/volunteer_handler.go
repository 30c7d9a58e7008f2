package handlers

import (
	"encoding/base64"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/ayudamx/volunteer-service/internal/services"
	"github.com/ayudamx/volunteer-service/internal/utils"
	"github.com/ayudamx/volunteer-service/internal/validator"
)

type VolunteerHandler struct {
	BaseHandler
	directoryService services.DirectoryService
	validator        *validator.Validator
}

func NewVolunteerHandler(directoryService services.DirectoryService, validator *validator.Validator, logger utils.Logger) *VolunteerHandler {
	return &VolunteerHandler{
		BaseHandler:      NewBaseHandler(logger),
		directoryService: directoryService,
		validator:        validator,
	}
}

// ListAvailableVolunteers lists approved, not yet selected volunteers
// @Summary List available volunteers
// @Description Get volunteers who are approved and have no active assignment
// @Tags volunteers
// @Produce json
// @Success 200 {array} services.VolunteerResponse
// @Router /volunteers/available [get]
func (h *VolunteerHandler) ListAvailableVolunteers(c *gin.Context) {
	volunteers, err := h.directoryService.ListAvailable(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"volunteers": volunteers,
		"total":      len(volunteers),
	})
}

// ListVolunteers lists the whole directory with optional filtering
// @Summary List volunteers
// @Tags volunteers
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param q query string false "Search query (name or email)"
// @Param state query string false "Filter by state (pendiente, aprobado, rechazado)"
// @Param selected query bool false "Filter by selected flag"
// @Success 200 {object} services.DirectoryListResponse
// @Router /volunteers [get]
func (h *VolunteerHandler) ListVolunteers(c *gin.Context) {
	filters := h.parseVolunteerFilters(c)

	response, err := h.directoryService.ListAll(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetVolunteer retrieves a volunteer by ID
// @Summary Get volunteer
// @Tags volunteers
// @Produce json
// @Param id path string true "Volunteer ID"
// @Success 200 {object} services.VolunteerResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /volunteers/{id} [get]
func (h *VolunteerHandler) GetVolunteer(c *gin.Context) {
	volunteerID := c.Param("id")
	if volunteerID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Volunteer ID is required"})
		return
	}

	volunteer, err := h.directoryService.GetByID(c.Request.Context(), volunteerID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, volunteer)
}

// UpdateVolunteerProfile updates a volunteer's profile fields
// @Summary Update volunteer profile
// @Tags volunteers
// @Accept json
// @Produce json
// @Param id path string true "Volunteer ID"
// @Param request body services.UpdateVolunteerRequest true "Profile payload"
// @Success 200 {object} services.VolunteerResponse
// @Failure 400 {object} ErrorResponse "Validation failed"
// @Router /volunteers/{id} [put]
func (h *VolunteerHandler) UpdateVolunteerProfile(c *gin.Context) {
	volunteerID := c.Param("id")
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	// Volunteers may only edit their own profile; admins edit anyone's.
	role, _ := GetUserRoleFromContext(c)
	if role != models.RoleAdmin && userID != volunteerID {
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Cannot edit another volunteer's profile"})
		return
	}

	var req services.UpdateVolunteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating volunteer profile", "volunteer_id", volunteerID)

	volunteer, err := h.directoryService.UpdateProfile(c.Request.Context(), volunteerID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, volunteer)
}

// SetVolunteerState changes a volunteer's approval state (admin only)
// @Summary Set volunteer state
// @Tags volunteers
// @Accept json
// @Produce json
// @Param id path string true "Volunteer ID"
// @Param request body services.VolunteerStateRequest true "State payload"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse "Not found"
// @Router /volunteers/{id}/state [put]
func (h *VolunteerHandler) SetVolunteerState(c *gin.Context) {
	volunteerID := c.Param("id")
	adminID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	var req services.VolunteerStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Changing volunteer state", "volunteer_id", volunteerID, "state", req.State)

	if err := h.directoryService.SetState(c.Request.Context(), volunteerID, req.State, adminID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "State updated"})
}

// UploadDocument attaches an INE or medical certificate to a volunteer
// @Summary Upload volunteer document
// @Tags volunteers
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Volunteer ID"
// @Param kind formData string true "Document kind (ine, medical_certificate)"
// @Param file formData file true "Document file (max 1 MiB)"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse "Validation failed"
// @Router /volunteers/{id}/documents [post]
func (h *VolunteerHandler) UploadDocument(c *gin.Context) {
	volunteerID := c.Param("id")
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	role, _ := GetUserRoleFromContext(c)
	if role != models.RoleAdmin && userID != volunteerID {
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Cannot upload documents for another volunteer"})
		return
	}

	req, ok := h.bindDocumentRequest(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Uploading document", "volunteer_id", volunteerID, "kind", req.Kind)

	if err := h.directoryService.UploadDocument(c.Request.Context(), volunteerID, req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Document stored"})
}

// WatchDirectory streams directory changes as server-sent events
// @Summary Watch directory changes
// @Description Stream volunteer directory updates (SSE)
// @Tags volunteers
// @Produce text/event-stream
// @Router /volunteers/watch [get]
func (h *VolunteerHandler) WatchDirectory(c *gin.Context) {
	updates, cancel := h.directoryService.Subscribe()
	defer cancel()

	h.LogRequest(c, "Directory watch started")

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case update, open := <-updates:
			if !open {
				return false
			}
			c.SSEvent("directory", update)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetDirectoryStats returns directory counters
// @Summary Directory statistics
// @Tags volunteers
// @Produce json
// @Success 200 {object} repositories.VolunteerStats
// @Router /volunteers/stats [get]
func (h *VolunteerHandler) GetDirectoryStats(c *gin.Context) {
	stats, err := h.directoryService.GetStats(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ===== HELPER METHODS =====

// bindDocumentRequest accepts either multipart form uploads or a JSON body
// with base64 content.
func (h *VolunteerHandler) bindDocumentRequest(c *gin.Context) (*services.DocumentUploadRequest, bool) {
	if file, err := c.FormFile("file"); err == nil {
		opened, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Cannot read uploaded file"})
			return nil, false
		}
		defer opened.Close()

		content, err := io.ReadAll(io.LimitReader(opened, models.MaxDocumentSize+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Cannot read uploaded file"})
			return nil, false
		}

		return &services.DocumentUploadRequest{
			Kind:     c.PostForm("kind"),
			FileName: file.Filename,
			Content:  content,
		}, true
	}

	var body struct {
		Kind     string `json:"kind"`
		FileName string `json:"file_name"`
		Content  string `json:"content"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return nil, false
	}

	content, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Content must be base64 encoded"})
		return nil, false
	}

	return &services.DocumentUploadRequest{
		Kind:     body.Kind,
		FileName: body.FileName,
		Content:  content,
	}, true
}

func (h *VolunteerHandler) parseVolunteerFilters(c *gin.Context) repositories.VolunteerFilters {
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

	filters := repositories.VolunteerFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		Query:     c.Query("q"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if stateStr := c.Query("state"); stateStr != "" {
		state := models.VolunteerState(stateStr)
		filters.State = &state
	}
	if selectedStr := c.Query("selected"); selectedStr != "" {
		if selected, err := strconv.ParseBool(selectedStr); err == nil {
			filters.Selected = &selected
		}
	}
	if area := c.Query("area"); area != "" {
		filters.Area = &area
	}

	return filters
}
