package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
)

const (
	defaultRelayInterval  = 2 * time.Second
	defaultRelayBatchSize = 100

	// maxRelayAttempts parks an entry as failed for good once exceeded.
	maxRelayAttempts = 5
)

// OutboxRelay drains pending outbox entries onto the event bus. Running it in
// a single goroutine keeps publishes in insertion order.
type OutboxRelay struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewOutboxRelay(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger) *OutboxRelay {
	return &OutboxRelay{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		interval:  defaultRelayInterval,
		batchSize: defaultRelayBatchSize,
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	r.logger.Info("Outbox relay started", "interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.logger.Error("Outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of pending entries.
func (r *OutboxRelay) Drain(ctx context.Context) error {
	entries, err := r.repo.Outbox().ListPending(ctx, nil, r.batchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := r.relay(ctx, entry); err != nil {
			r.logger.Warn("Failed to relay outbox entry",
				"entry_id", entry.ID, "event_type", entry.EventType, "attempts", entry.Attempts+1, "error", err)

			if entry.Attempts+1 >= maxRelayAttempts {
				if markErr := r.repo.Outbox().MarkFailed(ctx, nil, entry.ID, err.Error()); markErr != nil {
					return markErr
				}
			} else if markErr := r.repo.Outbox().RecordAttempt(ctx, nil, entry.ID, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}

		if err := r.repo.Outbox().MarkPublished(ctx, nil, entry.ID); err != nil {
			return err
		}
	}

	return nil
}

func (r *OutboxRelay) relay(ctx context.Context, entry *models.OutboxEntry) error {
	event := events.NewEvent(entry.EventType, json.RawMessage(entry.Payload))
	return r.publisher.Publish(ctx, topicFor(entry.EventType), event)
}

// topicFor routes outbox entries to their bus topic.
func topicFor(eventType string) string {
	switch eventType {
	case events.EventSelectedChanged:
		return events.TopicSelected
	case events.EventVolunteerUpserted, events.EventVolunteerState:
		return events.TopicDirectory
	default:
		return events.TopicTasks
	}
}
