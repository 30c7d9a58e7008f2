package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ayudamx/volunteer-service/internal/services"
	"github.com/ayudamx/volunteer-service/internal/utils"
)

type AttendanceHandler struct {
	BaseHandler
	attendanceService services.AttendanceService
}

func NewAttendanceHandler(attendanceService services.AttendanceService, logger utils.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		BaseHandler:       NewBaseHandler(logger),
		attendanceService: attendanceService,
	}
}

// GetParticipation projects who participates on a calendar day
// @Summary Get participation for a date
// @Description Derive participation from task deadlines; nothing is stored
// @Tags attendance
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} services.ParticipationResponse
// @Failure 400 {object} ErrorResponse "Invalid date"
// @Router /attendance [get]
func (h *AttendanceHandler) GetParticipation(c *gin.Context) {
	date, ok := h.parseDate(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Projecting participation", "date", date.Format("2006-01-02"))

	participation, err := h.attendanceService.ParticipationFor(c.Request.Context(), date)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, participation)
}

// GetVolunteerParticipation projects a single volunteer's participation
// @Summary Get a volunteer's participation for a date
// @Tags attendance
// @Produce json
// @Param volunteer_id path string true "Volunteer ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} services.ParticipationResponse
// @Router /attendance/volunteer/{volunteer_id} [get]
func (h *AttendanceHandler) GetVolunteerParticipation(c *gin.Context) {
	volunteerID := c.Param("volunteer_id")
	if volunteerID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Volunteer ID is required"})
		return
	}

	date, ok := h.parseDate(c)
	if !ok {
		return
	}

	participation, err := h.attendanceService.ParticipationForVolunteer(c.Request.Context(), volunteerID, date)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, participation)
}

// ExportRoster downloads the day's participation as an xlsx workbook
// @Summary Export attendance roster
// @Tags attendance
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {file} binary
// @Router /attendance/export [get]
func (h *AttendanceHandler) ExportRoster(c *gin.Context) {
	date, ok := h.parseDate(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting roster", "date", date.Format("2006-01-02"))

	workbook, err := h.attendanceService.ExportRoster(c.Request.Context(), date)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("asistencia-%s.xlsx", date.Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}

// ===== HELPER METHODS =====

func (h *AttendanceHandler) parseDate(c *gin.Context) (time.Time, bool) {
	dateStr := c.Query("date")
	if dateStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Query parameter 'date' is required"})
		return time.Time{}, false
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid date, expected YYYY-MM-DD",
			Details: dateStr,
		})
		return time.Time{}, false
	}
	return date, true
}
