package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// ToValidationErrors converts validator/v10 errors to our error type
func ToValidationErrors(err error) ValidationErrors {
	var errors ValidationErrors
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			errors = append(errors, ValidationError{
				Field:   fe.Field(),
				Message: friendlyMessage(fe),
				Value:   fe.Value(),
				Rule:    fe.Tag(),
			})
		}
	}
	return errors
}

// Validator bundles struct-tag validation with domain business rules.
type Validator struct {
	business *BusinessValidator
}

// New creates the service-wide validator with all custom rules registered.
func New() *Validator {
	return &Validator{
		business: NewBusinessValidator(),
	}
}

// Validate runs struct-tag validation, returning ValidationErrors on failure.
func (v *Validator) Validate(s interface{}) error {
	if errs := v.business.Validate(s); len(errs) > 0 {
		return errs
	}
	return nil
}

// GetBusinessValidator exposes the underlying business rule validator.
func (v *Validator) GetBusinessValidator() *BusinessValidator {
	return v.business
}

func friendlyMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is missing", err.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", err.Param())
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	case "task_name":
		return "El nombre de la tarea debe tener entre 5 y 50 caracteres"
	case "task_description":
		return "La descripción debe tener entre 20 y 150 caracteres"
	case "task_text":
		return "contains characters outside the allowed set"
	case "needed_assistants":
		return "must need at least 1 assistant"
	default:
		return fmt.Sprintf("validation failed for rule '%s'", err.Tag())
	}
}
