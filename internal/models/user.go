package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type UserRole string
type Role = UserRole // Alias for compatibility

const (
	RoleVolunteer UserRole = "volunteer"
	RoleAdmin     UserRole = "admin"
)

// User is the identity-provider account. The volunteer profile lives in
// Volunteer, keyed by the same ID.
type User struct {
	ID          string   `json:"id" gorm:"primaryKey;size:255"`
	FullName    string   `json:"full_name" gorm:"size:100"`
	Email       string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PhoneNumber string   `json:"phone_number" gorm:"size:30"`
	Role        UserRole `json:"role" gorm:"-"`

	// Profile info
	AvatarURL *string `json:"avatar_url" gorm:"size:500"`

	// Status
	EmailVerified bool `json:"email_verified" gorm:"default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName picks the best label for an account: full name, then phone,
// then the email local-part, then "Usuario".
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.PhoneNumber != "" {
		return u.PhoneNumber
	}
	if u.Email != "" {
		if at := strings.IndexByte(u.Email, '@'); at > 0 {
			return u.Email[:at]
		}
		return u.Email
	}
	return "Usuario"
}
