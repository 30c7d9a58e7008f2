package postgres

import (
	"context"

	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"gorm.io/gorm"
)

// SharedHelpers contains common database operations
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// CountAssignments counts assignment rows for a task
func (h *SharedHelpers) CountAssignments(ctx context.Context, taskID uint) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.TaskAssignment{}).
		Where("task_id = ?", taskID).
		Count(&count).Error
	return count, err
}

// CountAssignmentsByVolunteer counts how many tasks a volunteer holds
func (h *SharedHelpers) CountAssignmentsByVolunteer(ctx context.Context, volunteerID string) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.TaskAssignment{}).
		Where("volunteer_id = ?", volunteerID).
		Count(&count).Error
	return count, err
}

// ApplyVolunteerFilters applies common filters to volunteer queries
func (h *SharedHelpers) ApplyVolunteerFilters(query *gorm.DB, filters repositories.VolunteerFilters) *gorm.DB {
	if filters.Selected != nil {
		query = query.Where("selected = ?", *filters.Selected)
	}
	if filters.State != nil {
		query = query.Where("state = ?", *filters.State)
	}
	if filters.Area != nil {
		query = query.Where("area = ?", *filters.Area)
	}
	if filters.Query != "" {
		like := "%" + filters.Query + "%"
		query = query.Where("full_name ILIKE ? OR email ILIKE ?", like, like)
	}
	return query
}

// ApplyTaskFilters applies common filters to task queries
func (h *SharedHelpers) ApplyTaskFilters(query *gorm.DB, filters repositories.TaskFilters) *gorm.DB {
	if filters.Completed != nil {
		query = query.Where("completed = ?", *filters.Completed)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.DeadlineFrom != nil {
		query = query.Where("deadline >= ?", *filters.DeadlineFrom)
	}
	if filters.DeadlineTo != nil {
		query = query.Where("deadline <= ?", *filters.DeadlineTo)
	}
	if filters.HasDeadline != nil {
		if *filters.HasDeadline {
			query = query.Where("deadline IS NOT NULL")
		} else {
			query = query.Where("deadline IS NULL")
		}
	}
	return query
}

// ApplyPaginationAndSort applies pagination and sorting with SQL injection protection
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	// Whitelist allowed sort columns
	allowedSortColumns := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"id":         true,
		"name":       true,
		"full_name":  true,
		"deadline":   true,
		"area":       true,
		"status":     true,
	}

	// Validate and set sort column
	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	// Validate and set sort order
	if sortOrder != "asc" && sortOrder != "ASC" {
		sortOrder = "DESC"
	} else {
		sortOrder = "ASC"
	}

	query = query.Order(sortBy + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}
