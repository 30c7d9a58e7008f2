package events

import (
	"context"
	"time"
)

// Topics carried by the event bus.
const (
	TopicDirectory = "volunteer.directory"
	TopicTasks     = "task.registry"
	TopicSelected  = "volunteer.selected"
)

// Event types.
const (
	EventVolunteerUpserted  = "volunteer.upserted"
	EventVolunteerState     = "volunteer.state_changed"
	EventSelectedChanged    = "volunteer.selected_changed"
	EventTaskCreated        = "task.created"
	EventTaskUpdated        = "task.updated"
	EventTaskCompleted      = "task.completed_toggled"
	EventTaskDeleted        = "task.deleted"
	EventVolunteersAssigned = "task.volunteers_assigned"
)

// Event is the envelope published on every topic.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

const (
	eventSource  = "volunteer-service"
	eventVersion = "1.0"
)

// EventPublisher publishes domain events to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close() error
}

// SelectedChangedData is the payload of EventSelectedChanged, produced by the
// outbox relay and consumed by the directory.
type SelectedChangedData struct {
	VolunteerID string `json:"volunteer_id"`
	Selected    bool   `json:"selected"`
}

// TaskChangedData is the payload of task registry events.
type TaskChangedData struct {
	TaskID    uint `json:"task_id"`
	Completed bool `json:"completed"`
}

// VolunteerChangedData is the payload of directory events.
type VolunteerChangedData struct {
	VolunteerID string `json:"volunteer_id"`
}
