package repositories

import (
	"context"

	"github.com/ayudamx/volunteer-service/internal/models"
	"gorm.io/gorm"
)

// OutboxRepository interface for the reconciliation outbox
type OutboxRepository interface {
	Create(ctx context.Context, tx *gorm.DB, entry *models.OutboxEntry) error

	// ListPending returns pending entries oldest first, capped at limit.
	ListPending(ctx context.Context, tx *gorm.DB, limit int) ([]*models.OutboxEntry, error)

	MarkPublished(ctx context.Context, tx *gorm.DB, id uint) error

	// RecordAttempt notes a publish failure but keeps the entry pending so
	// the relay retries it. MarkFailed parks it for good.
	RecordAttempt(ctx context.Context, tx *gorm.DB, id uint, reason string) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id uint, reason string) error
}
