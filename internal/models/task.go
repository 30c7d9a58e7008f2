package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusDraft     TaskStatus = "draft"
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusCompleted TaskStatus = "completed"
)

type Task struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"type" gorm:"not null;size:50;index" validate:"required,min=5,max=50,task_text"`
	Description string `json:"description" gorm:"not null;size:150" validate:"required,min=20,max=150,task_text"`

	// NeededAssistants is the assignment capacity. Assignments never exceed it.
	NeededAssistants int `json:"needed_assistants" gorm:"not null" validate:"required,min=1"`

	// Deadline stays nil until the task is scheduled.
	Deadline  *time.Time `json:"deadline"`
	Completed bool       `json:"completed" gorm:"not null;default:false;index"`
	Status    TaskStatus `json:"status" gorm:"size:20;default:draft;index" validate:"omitempty,oneof=draft open completed"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Assignments []TaskAssignment `json:"-" gorm:"foreignKey:TaskID"`

	// Computed fields (not stored)
	AssignedCount int      `json:"assigned_count" gorm:"-"`
	VolunteerIDs  []string `json:"volunteers" gorm:"-"`
}

func (Task) TableName() string {
	return "tasks"
}

// HasCapacityFor reports whether n more volunteers fit, given the current
// assignment count.
func (t *Task) HasCapacityFor(current, n int) bool {
	return current+n <= t.NeededAssistants
}

// TaskAssignment links a volunteer to a task. The (task, volunteer) pair is
// unique so repeated assigns are no-ops.
type TaskAssignment struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	TaskID      uint      `json:"task_id" gorm:"not null;index;uniqueIndex:idx_task_volunteer"`
	VolunteerID string    `json:"volunteer_id" gorm:"not null;size:255;index;uniqueIndex:idx_task_volunteer"`
	AssignedBy  string    `json:"assigned_by" gorm:"size:255"`
	CreatedAt   time.Time `json:"created_at"`
}

func (TaskAssignment) TableName() string {
	return "task_assignments"
}
