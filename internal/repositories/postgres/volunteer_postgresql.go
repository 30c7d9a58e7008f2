package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ayudamx/volunteer-service/internal/cache"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
)

type VolunteerPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewVolunteerPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.VolunteerRepository {
	return &VolunteerPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (v *VolunteerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return v.db
}

func (v *VolunteerPostgreSQL) Create(ctx context.Context, tx *gorm.DB, volunteer *models.Volunteer) error {
	if err := v.getDB(tx).WithContext(ctx).Create(volunteer).Error; err != nil {
		return fmt.Errorf("failed to create volunteer: %w", err)
	}
	cache.InvalidateVolunteerCache(ctx, v.cacheManager, volunteer.ID)

	return nil
}

// GetByID retrieves a volunteer by ID with caching
func (v *VolunteerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Volunteer, error) {
	cacheKey := fmt.Sprintf("id:%s", id)
	var volunteer models.Volunteer

	err := v.cacheManager.Volunteer.CacheOrExecute(ctx, cacheKey, &volunteer, cache.VolunteerCacheConfig.TTL, func() (interface{}, error) {
		var dbVolunteer models.Volunteer
		err := v.getDB(tx).WithContext(ctx).First(&dbVolunteer, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.ErrNotFound
			}
			return nil, fmt.Errorf("failed to get volunteer: %w", err)
		}
		return &dbVolunteer, nil
	})

	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}

	return &volunteer, nil
}

func (v *VolunteerPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.Volunteer, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var volunteers []*models.Volunteer
	err := v.getDB(tx).WithContext(ctx).Where("id IN ?", ids).Find(&volunteers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get volunteers by ids: %w", err)
	}
	return volunteers, nil
}

func (v *VolunteerPostgreSQL) Update(ctx context.Context, tx *gorm.DB, volunteer *models.Volunteer) error {
	result := v.getDB(tx).WithContext(ctx).Model(&models.Volunteer{}).Where("id = ?", volunteer.ID).Updates(map[string]interface{}{
		"full_name":       volunteer.FullName,
		"email":           volunteer.Email,
		"phone_number":    volunteer.PhoneNumber,
		"emergency_phone": volunteer.EmergencyPhone,
		"blood_type":      volunteer.BloodType,
		"area":            volunteer.Area,
		"curp":            volunteer.CURP,
		"updated_at":      volunteer.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update volunteer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}

	cache.InvalidateVolunteerCache(ctx, v.cacheManager, volunteer.ID)

	return nil
}

func (v *VolunteerPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	result := v.getDB(tx).WithContext(ctx).Delete(&models.Volunteer{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete volunteer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}

	cache.InvalidateVolunteerCache(ctx, v.cacheManager, id)

	return nil
}

// List retrieves volunteers with filters and pagination
func (v *VolunteerPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.VolunteerFilters) ([]*models.Volunteer, int64, error) {
	query := v.getDB(tx).WithContext(ctx).Model(&models.Volunteer{})

	// Apply filters
	query = v.helpers.ApplyVolunteerFilters(query, filters)

	// Count total
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination and ordering
	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "full_name"
	}
	sortOrder := filters.SortOrder
	if sortOrder == "" {
		sortOrder = "asc"
	}
	query = v.helpers.ApplyPaginationAndSort(query, sortBy, sortOrder, filters.Limit, filters.Offset)

	var volunteers []*models.Volunteer
	if err := query.Find(&volunteers).Error; err != nil {
		return nil, 0, err
	}

	return volunteers, total, nil
}

// ListAvailable returns approved volunteers not yet assigned anywhere,
// ordered by name. Cached as a directory snapshot.
func (v *VolunteerPostgreSQL) ListAvailable(ctx context.Context, tx *gorm.DB) ([]*models.Volunteer, error) {
	var volunteers []*models.Volunteer

	err := v.cacheManager.Directory.CacheOrExecute(ctx, "available", &volunteers, cache.DirectoryCacheConfig.TTL, func() (interface{}, error) {
		var dbVolunteers []*models.Volunteer
		err := v.getDB(tx).WithContext(ctx).
			Where("selected = ? AND state = ?", false, models.StateAprobado).
			Order("full_name ASC").
			Find(&dbVolunteers).Error
		if err != nil {
			return nil, fmt.Errorf("failed to list available volunteers: %w", err)
		}
		return dbVolunteers, nil
	})

	return volunteers, err
}

// SetSelected writes the assignment mirror flag. Idempotent.
func (v *VolunteerPostgreSQL) SetSelected(ctx context.Context, tx *gorm.DB, id string, selected bool) error {
	result := v.getDB(tx).WithContext(ctx).
		Model(&models.Volunteer{}).
		Where("id = ?", id).
		Update("selected", selected)
	if result.Error != nil {
		return fmt.Errorf("failed to set selected flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Flag may already hold the value; treat a missing row as not found
		exists, err := v.ExistsByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return repositories.ErrNotFound
		}
	}

	cache.InvalidateVolunteerCache(ctx, v.cacheManager, id)

	return nil
}

func (v *VolunteerPostgreSQL) SetState(ctx context.Context, tx *gorm.DB, id string, state models.VolunteerState) error {
	result := v.getDB(tx).WithContext(ctx).
		Model(&models.Volunteer{}).
		Where("id = ?", id).
		Update("state", state)
	if result.Error != nil {
		return fmt.Errorf("failed to set volunteer state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}

	cache.InvalidateVolunteerCache(ctx, v.cacheManager, id)

	return nil
}

func (v *VolunteerPostgreSQL) UpdateDocuments(ctx context.Context, tx *gorm.DB, id string, documents []models.DocumentRef) error {
	payload, err := json.Marshal(documents)
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}

	result := v.getDB(tx).WithContext(ctx).
		Model(&models.Volunteer{}).
		Where("id = ?", id).
		Update("documents", payload)
	if result.Error != nil {
		return fmt.Errorf("failed to update documents: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}

	cache.InvalidateVolunteerCache(ctx, v.cacheManager, id)

	return nil
}

func (v *VolunteerPostgreSQL) ExistsByID(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	var count int64
	err := v.getDB(tx).WithContext(ctx).
		Model(&models.Volunteer{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check volunteer existence: %w", err)
	}
	return count > 0, nil
}

func (v *VolunteerPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB) (*repositories.VolunteerStats, error) {
	stats := &repositories.VolunteerStats{}
	base := func() *gorm.DB {
		return v.getDB(tx).WithContext(ctx).Model(&models.Volunteer{})
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("selected = ?", true).Count(&stats.Selected).Error; err != nil {
		return nil, err
	}
	if err := base().Where("state = ?", models.StateAprobado).Count(&stats.Approved).Error; err != nil {
		return nil, err
	}
	if err := base().Where("state = ?", models.StatePendiente).Count(&stats.Pending).Error; err != nil {
		return nil, err
	}

	return stats, nil
}
