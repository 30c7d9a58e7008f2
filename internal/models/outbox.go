package models

import (
	"time"

	"gorm.io/datatypes"
)

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxFailed    OutboxStatus = "failed"
)

// OutboxEntry is written in the same transaction as the state change it
// describes. The relay publishes pending entries to the event bus.
type OutboxEntry struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	EventType   string         `json:"event_type" gorm:"not null;size:100;index"`
	AggregateID string         `json:"aggregate_id" gorm:"not null;size:255;index"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	Status      OutboxStatus   `json:"status" gorm:"size:20;default:pending;index"`
	Attempts    int            `json:"attempts" gorm:"not null;default:0"`
	LastError   *string        `json:"last_error" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
	PublishedAt *time.Time     `json:"published_at"`
}

func (OutboxEntry) TableName() string {
	return "outbox_entries"
}
