package repositories

import (
	"time"

	"github.com/ayudamx/volunteer-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type VolunteerFilters struct {
	Selected  *bool                  `json:"selected"`
	State     *models.VolunteerState `json:"state"`
	Area      *string                `json:"area"`
	Query     string                 `json:"query"` // name or email search
	Limit     int                    `json:"limit"`
	Offset    int                    `json:"offset"`
	SortBy    string                 `json:"sort_by"`    // "full_name", "created_at", "area"
	SortOrder string                 `json:"sort_order"` // "asc", "desc"
}

type TaskFilters struct {
	Completed    *bool              `json:"completed"`
	Status       *models.TaskStatus `json:"status"`
	CreatedBy    *string            `json:"created_by"`
	DeadlineFrom *time.Time         `json:"deadline_from"`
	DeadlineTo   *time.Time         `json:"deadline_to"`
	HasDeadline  *bool              `json:"has_deadline"`
	Limit        int                `json:"limit"`
	Offset       int                `json:"offset"`
	SortBy       string             `json:"sort_by"`    // "created_at", "deadline", "type"
	SortOrder    string             `json:"sort_order"` // "asc", "desc"
}

type OutboxFilters struct {
	Status *models.OutboxStatus `json:"status"`
	Limit  int                  `json:"limit"`
}

// ===== SHARED STATISTICS STRUCTS =====

type TaskStats struct {
	Total     int64 `json:"total"`
	Open      int64 `json:"open"`
	Completed int64 `json:"completed"`
}

type VolunteerStats struct {
	Total    int64 `json:"total"`
	Selected int64 `json:"selected"`
	Approved int64 `json:"approved"`
	Pending  int64 `json:"pending"`
}
