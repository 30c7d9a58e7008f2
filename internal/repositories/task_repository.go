package repositories

import (
	"context"
	"time"

	"github.com/ayudamx/volunteer-service/internal/models"
	"gorm.io/gorm"
)

// TaskRepository interface for task-specific operations
type TaskRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, task *models.Task) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Task, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Task, error) // row lock inside a transaction
	Update(ctx context.Context, tx *gorm.DB, task *models.Task) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters TaskFilters) ([]*models.Task, int64, error)
	ListOpen(ctx context.Context, tx *gorm.DB) ([]*models.Task, error) // deadline ascending, no deadline last
	ListByDeadlineDate(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]*models.Task, error)

	// Validation and checks
	ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error)

	// Statistics
	GetStats(ctx context.Context, tx *gorm.DB) (*TaskStats, error)
}

// AssignmentRepository interface for task-volunteer assignment operations
type AssignmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, assignment *models.TaskAssignment) error
	Delete(ctx context.Context, tx *gorm.DB, taskID uint, volunteerID string) error // ErrNotFound when the pair does not exist
	DeleteByTask(ctx context.Context, tx *gorm.DB, taskID uint) error

	// Query operations
	GetByTask(ctx context.Context, tx *gorm.DB, taskID uint) ([]*models.TaskAssignment, error)
	GetByVolunteer(ctx context.Context, tx *gorm.DB, volunteerID string) ([]*models.TaskAssignment, error)
	CountByTask(ctx context.Context, tx *gorm.DB, taskID uint) (int64, error)
	CountByVolunteer(ctx context.Context, tx *gorm.DB, volunteerID string) (int64, error) // open tasks only; drives the selected flag
	Exists(ctx context.Context, tx *gorm.DB, taskID uint, volunteerID string) (bool, error)
}
