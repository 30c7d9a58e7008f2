package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
)

type AssignmentPostgreSQL struct {
	db *gorm.DB
}

func NewAssignmentPostgreSQL(db *gorm.DB) repositories.AssignmentRepository {
	return &AssignmentPostgreSQL{db: db}
}

func (a *AssignmentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// Create inserts an assignment row. Conflicts on (task_id, volunteer_id) are
// ignored so repeated assigns stay idempotent.
func (a *AssignmentPostgreSQL) Create(ctx context.Context, tx *gorm.DB, assignment *models.TaskAssignment) error {
	err := a.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "volunteer_id"}},
			DoNothing: true,
		}).
		Create(assignment).Error
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

func (a *AssignmentPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, taskID uint, volunteerID string) error {
	result := a.getDB(tx).WithContext(ctx).
		Where("task_id = ? AND volunteer_id = ?", taskID, volunteerID).
		Delete(&models.TaskAssignment{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete assignment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (a *AssignmentPostgreSQL) DeleteByTask(ctx context.Context, tx *gorm.DB, taskID uint) error {
	err := a.getDB(tx).WithContext(ctx).
		Where("task_id = ?", taskID).
		Delete(&models.TaskAssignment{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete task assignments: %w", err)
	}
	return nil
}

func (a *AssignmentPostgreSQL) GetByTask(ctx context.Context, tx *gorm.DB, taskID uint) ([]*models.TaskAssignment, error) {
	var assignments []*models.TaskAssignment
	err := a.getDB(tx).WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get task assignments: %w", err)
	}
	return assignments, nil
}

func (a *AssignmentPostgreSQL) GetByVolunteer(ctx context.Context, tx *gorm.DB, volunteerID string) ([]*models.TaskAssignment, error) {
	var assignments []*models.TaskAssignment
	err := a.getDB(tx).WithContext(ctx).
		Where("volunteer_id = ?", volunteerID).
		Order("created_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get volunteer assignments: %w", err)
	}
	return assignments, nil
}

func (a *AssignmentPostgreSQL) CountByTask(ctx context.Context, tx *gorm.DB, taskID uint) (int64, error) {
	var count int64
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.TaskAssignment{}).
		Where("task_id = ?", taskID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count task assignments: %w", err)
	}
	return count, nil
}

// CountByVolunteer counts the volunteer's assignments to open tasks. The
// selected flag is derived from this count, so completed and deleted tasks
// do not keep a volunteer out of the available pool.
func (a *AssignmentPostgreSQL) CountByVolunteer(ctx context.Context, tx *gorm.DB, volunteerID string) (int64, error) {
	var count int64
	err := a.getDB(tx).WithContext(ctx).
		Model(&models.TaskAssignment{}).
		Joins("JOIN tasks ON tasks.id = task_assignments.task_id").
		Where("task_assignments.volunteer_id = ? AND tasks.completed = ? AND tasks.deleted_at IS NULL", volunteerID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count volunteer assignments: %w", err)
	}
	return count, nil
}

func (a *AssignmentPostgreSQL) Exists(ctx context.Context, tx *gorm.DB, taskID uint, volunteerID string) (bool, error) {
	var assignment models.TaskAssignment
	err := a.getDB(tx).WithContext(ctx).
		Where("task_id = ? AND volunteer_id = ?", taskID, volunteerID).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check assignment existence: %w", err)
	}
	return true, nil
}
