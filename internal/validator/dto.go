package validator

import (
	"time"

	"github.com/ayudamx/volunteer-service/internal/models"
)

// TaskCreateRequest represents the request structure for creating tasks
type TaskCreateRequest struct {
	Name             string     `json:"type" validate:"required,task_name,task_text"`
	Description      string     `json:"description" validate:"required,task_description,task_text"`
	NeededAssistants int        `json:"needed_assistants" validate:"required,needed_assistants"`
	Deadline         *time.Time `json:"deadline"`
	VolunteerIDs     []string   `json:"volunteers" validate:"required,min=1,dive,required"`
}

// TaskUpdateRequest represents the request structure for updating tasks.
// VolunteerIDs, when present, is the desired assignment set and gets
// reconciled against the current one.
type TaskUpdateRequest struct {
	Name         *string    `json:"type" validate:"omitempty,task_name,task_text"`
	Description  *string    `json:"description" validate:"omitempty,task_description,task_text"`
	Deadline     *time.Time `json:"deadline"`
	VolunteerIDs []string   `json:"volunteers" validate:"omitempty,dive,required"`
}

// AssignRequest adds volunteers to a task
type AssignRequest struct {
	VolunteerIDs []string `json:"volunteer_ids" validate:"required,min=1,dive,required"`
}

// UnassignRequest removes volunteers from a task
type UnassignRequest struct {
	VolunteerIDs []string `json:"volunteer_ids" validate:"required,min=1,dive,required"`
}

// VolunteerUpdateRequest updates a volunteer profile
type VolunteerUpdateRequest struct {
	FullName       *string `json:"full_name" validate:"omitempty,max=100"`
	Email          *string `json:"correo" validate:"omitempty,email"`
	PhoneNumber    *string `json:"phone_number" validate:"omitempty,max=30"`
	EmergencyPhone *string `json:"emergency_phone" validate:"omitempty,max=30"`
	BloodType      *string `json:"blood_type" validate:"omitempty,max=10"`
	Area           *string `json:"area" validate:"omitempty,max=100"`
	CURP           *string `json:"curp" validate:"omitempty,len=18"`
}

// VolunteerStateRequest changes a volunteer's approval state (admin only)
type VolunteerStateRequest struct {
	State models.VolunteerState `json:"state" validate:"required,oneof=pendiente aprobado rechazado"`
}

// RegisterRequest creates a provider account plus a pending profile
type RegisterRequest struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required_without=PhoneNumber,omitempty,email"`
	PhoneNumber string `json:"phone_number" validate:"required_without=Email,omitempty,max=30"`
	Password    string `json:"password" validate:"required,min=8"`
}

// DocumentUploadRequest attaches INE or medical certificate metadata
type DocumentUploadRequest struct {
	Kind     string `json:"kind" validate:"required,oneof=ine medical_certificate"`
	FileName string `json:"file_name" validate:"required,max=255"`
	Content  []byte `json:"content" validate:"required"`
}
