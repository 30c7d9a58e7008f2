package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
)

type OutboxPostgreSQL struct {
	db *gorm.DB
}

func NewOutboxPostgreSQL(db *gorm.DB) repositories.OutboxRepository {
	return &OutboxPostgreSQL{db: db}
}

func (o *OutboxPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return o.db
}

func (o *OutboxPostgreSQL) Create(ctx context.Context, tx *gorm.DB, entry *models.OutboxEntry) error {
	if err := o.getDB(tx).WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create outbox entry: %w", err)
	}
	return nil
}

func (o *OutboxPostgreSQL) ListPending(ctx context.Context, tx *gorm.DB, limit int) ([]*models.OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []*models.OutboxEntry
	err := o.getDB(tx).WithContext(ctx).
		Where("status = ?", models.OutboxPending).
		Order("id ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outbox entries: %w", err)
	}
	return entries, nil
}

func (o *OutboxPostgreSQL) MarkPublished(ctx context.Context, tx *gorm.DB, id uint) error {
	now := time.Now()
	err := o.getDB(tx).WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.OutboxPublished,
			"published_at": &now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry published: %w", err)
	}
	return nil
}

func (o *OutboxPostgreSQL) RecordAttempt(ctx context.Context, tx *gorm.DB, id uint, reason string) error {
	err := o.getDB(tx).WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_error": reason,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to record outbox attempt: %w", err)
	}
	return nil
}

func (o *OutboxPostgreSQL) MarkFailed(ctx context.Context, tx *gorm.DB, id uint, reason string) error {
	err := o.getDB(tx).WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.OutboxFailed,
			"last_error": reason,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry failed: %w", err)
	}
	return nil
}
