package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type VolunteerState string

const (
	StatePendiente VolunteerState = "pendiente"
	StateAprobado  VolunteerState = "aprobado"
	StateRechazado VolunteerState = "rechazado"
)

// Fallback values for records registered with incomplete profiles.
const (
	UnknownName = "Sin nombre"
	UnknownInfo = "Sin información"
)

type Volunteer struct {
	ID             string         `json:"id" gorm:"primaryKey;size:255"`
	FullName       string         `json:"full_name" gorm:"size:100"`
	Email          string         `json:"correo" gorm:"index;size:255" validate:"omitempty,email"`
	PhoneNumber    string         `json:"phone_number" gorm:"size:30"`
	EmergencyPhone string         `json:"emergency_phone" gorm:"size:30"`
	BloodType      string         `json:"blood_type" gorm:"size:10"`
	Area           string         `json:"area" gorm:"size:100;index"`
	CURP           string         `json:"curp" gorm:"size:18"`
	State          VolunteerState `json:"state" gorm:"size:20;default:pendiente;index" validate:"omitempty,oneof=pendiente aprobado rechazado"`

	// Selected mirrors assignment state: true iff the volunteer is assigned
	// to at least one task. Written only by the coordinator and the outbox
	// relay.
	Selected bool `json:"selected" gorm:"not null;default:false;index"`

	// Uploaded document metadata (INE, medical certificate).
	Documents datatypes.JSON `json:"documents" gorm:"type:jsonb"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Assignments []TaskAssignment `json:"-" gorm:"foreignKey:VolunteerID"`
}

func (Volunteer) TableName() string {
	return "volunteers"
}

// DisplayName resolves the name shown in rosters and exports.
func (v *Volunteer) DisplayName() string {
	if v.FullName != "" {
		return v.FullName
	}
	return UnknownName
}

// DocumentRef is one entry in Volunteer.Documents.
type DocumentRef struct {
	Kind       string    `json:"kind"` // "ine" | "medical_certificate"
	FileName   string    `json:"file_name"`
	SizeBytes  int64     `json:"size_bytes"`
	StorageKey string    `json:"storage_key"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// MaxDocumentSize caps volunteer document uploads.
const MaxDocumentSize = 1 << 20
