package repositories

import (
	"context"

	"github.com/ayudamx/volunteer-service/internal/models"
	"gorm.io/gorm"
)

// VolunteerRepository interface for volunteer profile operations
type VolunteerRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, volunteer *models.Volunteer) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Volunteer, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.Volunteer, error)
	Update(ctx context.Context, tx *gorm.DB, volunteer *models.Volunteer) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters VolunteerFilters) ([]*models.Volunteer, int64, error)
	ListAvailable(ctx context.Context, tx *gorm.DB) ([]*models.Volunteer, error)

	// Flag and state management
	SetSelected(ctx context.Context, tx *gorm.DB, id string, selected bool) error
	SetState(ctx context.Context, tx *gorm.DB, id string, state models.VolunteerState) error
	UpdateDocuments(ctx context.Context, tx *gorm.DB, id string, documents []models.DocumentRef) error

	// Validation and checks
	ExistsByID(ctx context.Context, tx *gorm.DB, id string) (bool, error)

	// Statistics
	GetStats(ctx context.Context, tx *gorm.DB) (*VolunteerStats, error)
}
