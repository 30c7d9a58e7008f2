package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ayudamx/volunteer-service/internal/cache"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
)

type TaskPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewTaskPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.TaskRepository {
	return &TaskPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (t *TaskPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return t.db
}

func (t *TaskPostgreSQL) Create(ctx context.Context, tx *gorm.DB, task *models.Task) error {
	if err := t.getDB(tx).WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	cache.SafeInvalidatePattern(ctx, t.cacheManager.Task, "list:*")

	return nil
}

// GetByID retrieves a task by ID with caching
func (t *TaskPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Task, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var task models.Task

	err := t.cacheManager.Task.CacheOrExecute(ctx, cacheKey, &task, cache.TaskCacheConfig.TTL, func() (interface{}, error) {
		var dbTask models.Task
		err := t.getDB(tx).WithContext(ctx).First(&dbTask, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.ErrNotFound
			}
			return nil, fmt.Errorf("failed to get task: %w", err)
		}
		return &dbTask, nil
	})

	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}

	return &task, nil
}

// GetByIDForUpdate locks the task row. Must run inside a transaction; the
// capacity check that follows relies on this lock.
func (t *TaskPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Task, error) {
	var task models.Task
	err := t.getDB(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&task, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}
	return &task, nil
}

func (t *TaskPostgreSQL) Update(ctx context.Context, tx *gorm.DB, task *models.Task) error {
	result := t.getDB(tx).WithContext(ctx).Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
		"name":              task.Name,
		"description":       task.Description,
		"needed_assistants": task.NeededAssistants,
		"deadline":          task.Deadline,
		"completed":         task.Completed,
		"status":            task.Status,
		"updated_at":        task.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}

	cache.InvalidateTaskCache(ctx, t.cacheManager, task.ID)

	return nil
}

func (t *TaskPostgreSQL) UpdateFields(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	result := t.getDB(tx).WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update task fields: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}

	cache.InvalidateTaskCache(ctx, t.cacheManager, id)

	return nil
}

func (t *TaskPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := t.getDB(tx).WithContext(ctx).Delete(&models.Task{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}

	cache.InvalidateTaskCache(ctx, t.cacheManager, id)

	return nil
}

// List retrieves tasks with filters and pagination
func (t *TaskPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.TaskFilters) ([]*models.Task, int64, error) {
	query := t.getDB(tx).WithContext(ctx).Model(&models.Task{})

	// Apply filters
	query = t.helpers.ApplyTaskFilters(query, filters)

	// Count total
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination and ordering
	query = t.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var tasks []*models.Task
	if err := query.Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// ListOpen returns tasks not yet completed, soonest deadline first; tasks
// without a deadline sort last.
func (t *TaskPostgreSQL) ListOpen(ctx context.Context, tx *gorm.DB) ([]*models.Task, error) {
	var tasks []*models.Task

	err := t.cacheManager.Task.CacheOrExecute(ctx, "list:open", &tasks, cache.TaskCacheConfig.TTL, func() (interface{}, error) {
		var dbTasks []*models.Task
		err := t.getDB(tx).WithContext(ctx).
			Where("completed = ?", false).
			Order("deadline ASC NULLS LAST, created_at DESC").
			Find(&dbTasks).Error
		if err != nil {
			return nil, fmt.Errorf("failed to list open tasks: %w", err)
		}
		return dbTasks, nil
	})

	return tasks, err
}

// ListByDeadlineDate returns tasks whose deadline falls inside [from, to)
func (t *TaskPostgreSQL) ListByDeadlineDate(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]*models.Task, error) {
	var tasks []*models.Task
	err := t.getDB(tx).WithContext(ctx).
		Where("deadline IS NOT NULL AND deadline >= ? AND deadline < ?", from, to).
		Order("deadline ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by deadline: %w", err)
	}
	return tasks, nil
}

func (t *TaskPostgreSQL) ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	var count int64
	err := t.getDB(tx).WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}
	return count > 0, nil
}

func (t *TaskPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB) (*repositories.TaskStats, error) {
	stats := &repositories.TaskStats{}
	base := func() *gorm.DB {
		return t.getDB(tx).WithContext(ctx).Model(&models.Task{})
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("completed = ?", false).Count(&stats.Open).Error; err != nil {
		return nil, err
	}
	if err := base().Where("completed = ?", true).Count(&stats.Completed).Error; err != nil {
		return nil, err
	}

	return stats, nil
}
