package services

import (
	"errors"
	"fmt"

	"github.com/ayudamx/volunteer-service/internal/validator"
)

// ValidationErrors is re-exported so handlers can match it with errors.As
// without importing the validator package directly.
type ValidationErrors = validator.ValidationErrors

// ===== SENTINEL ERRORS =====

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrVolunteerNotFound = errors.New("volunteer not found")
	ErrUserNotFound      = errors.New("user not found")

	// ErrVolunteerNotApproved gates every authenticated operation: a profile
	// whose state is not "aprobado" is signed out instead of served.
	ErrVolunteerNotApproved = errors.New("volunteer not approved")

	// ErrNotAssigned reports an unassign of a volunteer who is not on the
	// task, including a repeated unassign.
	ErrNotAssigned = errors.New("volunteer not assigned to task")

	ErrCapacityExceeded = errors.New("task capacity exceeded")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTaskCompleted    = errors.New("task already completed")
)

// ===== PERMISSION ERROR =====

type PermissionError struct {
	UserID     string
	ResourceID string
	Resource   string
	Action     string
	Reason     string
}

func NewPermissionError(userID string, resourceID interface{}, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: fmt.Sprintf("%v", resourceID),
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %s: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

// ===== BUSINESS RULE ERROR =====

type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

func (e *BusinessRuleError) WithContext(key string, value interface{}) *BusinessRuleError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", e.Rule, e.Message)
}

// ===== CAPACITY ERROR =====

// CapacityError carries the numbers behind a rejected assignment. The message
// is the one shown to coordinators, so it stays in Spanish.
type CapacityError struct {
	TaskID    uint
	Capacity  int
	Requested int
}

func NewCapacityError(taskID uint, capacity, requested int) *CapacityError {
	return &CapacityError{TaskID: taskID, Capacity: capacity, Requested: requested}
}

func (e *CapacityError) Error() string {
	return "No puedes seleccionar más voluntarios que los necesarios"
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}
