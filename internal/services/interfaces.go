package services

import (
	"context"
	"time"

	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/ayudamx/volunteer-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateTaskRequest = validator.TaskCreateRequest
type UpdateTaskRequest = validator.TaskUpdateRequest
type AssignVolunteersRequest = validator.AssignRequest
type UnassignVolunteersRequest = validator.UnassignRequest

// Use business validator types
type UpdateVolunteerRequest = validator.VolunteerUpdateRequest
type VolunteerStateRequest = validator.VolunteerStateRequest
type RegisterRequest = validator.RegisterRequest
type DocumentUploadRequest = validator.DocumentUploadRequest

type TaskResponse struct {
	*models.Task
	Volunteers []*models.Volunteer `json:"assigned_volunteers,omitempty"`
	SpotsLeft  int                 `json:"spots_left"`
	CanEdit    bool                `json:"can_edit"`
	CanDelete  bool                `json:"can_delete"`
}

type TaskListResponse struct {
	Tasks []*TaskResponse `json:"tasks"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

type VolunteerResponse struct {
	*models.Volunteer
	DisplayName       string `json:"display_name"`
	ActiveAssignments int    `json:"active_assignments"`
}

type DirectoryListResponse struct {
	Volunteers []*VolunteerResponse `json:"volunteers"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	Size       int                  `json:"size"`
}

// Identity is the resolved session: the provider account plus the volunteer
// profile that backs it (nil for admins without one).
type Identity struct {
	User      *models.User      `json:"user"`
	Volunteer *models.Volunteer `json:"volunteer,omitempty"`
	Approved  bool              `json:"approved"`
}

// DirectoryUpdate is what directory subscribers receive when a volunteer row
// changes under them.
type DirectoryUpdate struct {
	Type        string `json:"type"`
	VolunteerID string `json:"volunteer_id"`
	Selected    *bool  `json:"selected,omitempty"`
}

type ParticipationResponse struct {
	Date    string                     `json:"date"`
	Records []*models.AttendanceRecord `json:"records"`
	Total   int                        `json:"total"`
}

// ===== SERVICE INTERFACES =====

type TaskService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateTaskRequest, creatorID string) (*TaskResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*TaskResponse, error)
	Update(ctx context.Context, id uint, req *UpdateTaskRequest, userID string) (*TaskResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	// List operations
	List(ctx context.Context, filters repositories.TaskFilters, userID string) (*TaskListResponse, error)
	ListOpen(ctx context.Context) ([]*TaskResponse, error)

	// Lifecycle
	ToggleCompleted(ctx context.Context, id uint, userID string) (*TaskResponse, error)

	// Statistics
	GetStats(ctx context.Context) (*repositories.TaskStats, error)
}

type AssignmentService interface {
	// Assign adds volunteers to a task inside a single transaction. The row
	// lock on the task keeps concurrent assigns from overshooting capacity.
	Assign(ctx context.Context, taskID uint, volunteerIDs []string, userID string) (*TaskResponse, error)

	// Unassign removes volunteers; a volunteer with no remaining assignments
	// gets its selected flag cleared through the outbox.
	Unassign(ctx context.Context, taskID uint, volunteerIDs []string, userID string) (*TaskResponse, error)

	// ReconcileOnSave replaces the task's assignment set with the desired one,
	// computing adds and removals as a diff.
	ReconcileOnSave(ctx context.Context, taskID uint, desired []string, userID string) error
}

type DirectoryService interface {
	// Query operations
	ListAvailable(ctx context.Context) ([]*VolunteerResponse, error)
	ListAll(ctx context.Context, filters repositories.VolunteerFilters) (*DirectoryListResponse, error)
	GetByID(ctx context.Context, id string) (*VolunteerResponse, error)

	// Profile management
	UpdateProfile(ctx context.Context, id string, req *UpdateVolunteerRequest, userID string) (*VolunteerResponse, error)
	SetState(ctx context.Context, id string, state models.VolunteerState, adminID string) error
	UploadDocument(ctx context.Context, id string, req *DocumentUploadRequest, userID string) error

	// SetSelected is the single writer of the selected flag. Only the
	// coordinator's outbox events reach it.
	SetSelected(ctx context.Context, id string, selected bool) error

	// Subscribe registers a live feed of directory changes. The returned
	// cancel func must be called to release the subscription.
	Subscribe() (<-chan DirectoryUpdate, func())

	// Statistics
	GetStats(ctx context.Context) (*repositories.VolunteerStats, error)
}

type IdentityService interface {
	// Resolve loads the account and volunteer profile behind an authenticated
	// user ID, enforcing the approval gate for volunteers.
	Resolve(ctx context.Context, userID string) (*Identity, error)

	// Register creates a provider account plus a pending volunteer profile.
	Register(ctx context.Context, req *RegisterRequest) (*VolunteerResponse, error)

	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	SignOut(ctx context.Context, userID string) error
}

type AttendanceService interface {
	// ParticipationFor projects who participates on a calendar day, derived
	// from task deadlines. Nothing is stored.
	ParticipationFor(ctx context.Context, date time.Time) (*ParticipationResponse, error)
	ParticipationForVolunteer(ctx context.Context, volunteerID string, date time.Time) (*ParticipationResponse, error)

	// ExportRoster renders the day's participation as an xlsx workbook.
	ExportRoster(ctx context.Context, date time.Time) ([]byte, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Task() TaskService
	Assignment() AssignmentService
	Directory() DirectoryService
	Identity() IdentityService
	Attendance() AttendanceService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
