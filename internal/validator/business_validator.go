package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/utils"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateTaskCreate validates task creation business rules
func (bv *BusinessValidator) ValidateTaskCreate(req *TaskCreateRequest) ValidationErrors {
	var errors ValidationErrors

	// Basic struct validation
	errors = append(errors, bv.Validate(req)...)

	// Additional business validations
	errors = append(errors, bv.validateTaskBusinessRules(req)...)

	return errors
}

// ValidateTaskUpdate validates task update business rules
func (bv *BusinessValidator) ValidateTaskUpdate(req *TaskUpdateRequest, existing *models.Task) ValidationErrors {
	var errors ValidationErrors

	// Basic struct validation
	errors = append(errors, bv.Validate(req)...)

	// Capacity cannot be violated by the desired volunteer set
	if len(req.VolunteerIDs) > 0 && len(req.VolunteerIDs) > existing.NeededAssistants {
		errors = append(errors, ValidationError{
			Field:   "volunteers",
			Message: "No puedes seleccionar más voluntarios que los necesarios",
			Value:   len(req.VolunteerIDs),
			Rule:    "capacity",
		})
	}

	return errors
}

// ValidateAssignment checks capacity before volunteers are added to a task
func (bv *BusinessValidator) ValidateAssignment(task *models.Task, currentCount, adding int) ValidationErrors {
	var errors ValidationErrors

	if !task.HasCapacityFor(currentCount, adding) {
		errors = append(errors, ValidationError{
			Field:   "volunteer_ids",
			Message: "No puedes seleccionar más voluntarios que los necesarios",
			Value:   currentCount + adding,
			Rule:    "capacity",
		})
	}

	return errors
}

// ValidateDocumentUpload checks volunteer document constraints
func (bv *BusinessValidator) ValidateDocumentUpload(req *DocumentUploadRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if len(req.Content) > models.MaxDocumentSize {
		errors = append(errors, ValidationError{
			Field:   "content",
			Message: "document exceeds the 1 MiB limit",
			Value:   len(req.Content),
			Rule:    "max_size",
		})
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Task name validation (5-50 characters after trimming)
	bv.validate.RegisterValidation("task_name", func(fl validator.FieldLevel) bool {
		name := strings.TrimSpace(fl.Field().String())
		n := utf8.RuneCountInString(name)
		return n >= 5 && n <= 50
	})

	// Task description validation (20-150 characters after trimming)
	bv.validate.RegisterValidation("task_description", func(fl validator.FieldLevel) bool {
		desc := strings.TrimSpace(fl.Field().String())
		n := utf8.RuneCountInString(desc)
		return n >= 20 && n <= 150
	})

	// Charset allowlist: letters (Spanish accents included), digits,
	// whitespace and ".,()"
	bv.validate.RegisterValidation("task_text", func(fl validator.FieldLevel) bool {
		return !utils.ContainsDisallowedRunes(fl.Field().String())
	})

	// Capacity validation (at least 1 assistant)
	bv.validate.RegisterValidation("needed_assistants", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() >= 1
	})
}

// validateTaskBusinessRules validates business rules for task creation
func (bv *BusinessValidator) validateTaskBusinessRules(req *TaskCreateRequest) ValidationErrors {
	var errors ValidationErrors

	// A task starts with at least one volunteer
	if len(req.VolunteerIDs) == 0 {
		errors = append(errors, ValidationError{
			Field:   "volunteers",
			Message: "Selecciona al menos un voluntario",
			Value:   0,
			Rule:    "business_logic",
		})
	}

	// Initial volunteers must fit the capacity
	if req.NeededAssistants >= 1 && len(req.VolunteerIDs) > req.NeededAssistants {
		errors = append(errors, ValidationError{
			Field:   "volunteers",
			Message: "No puedes seleccionar más voluntarios que los necesarios",
			Value:   len(req.VolunteerIDs),
			Rule:    "capacity",
		})
	}

	// Duplicate volunteer ids collapse to one assignment; reject explicit dups
	seen := make(map[string]struct{}, len(req.VolunteerIDs))
	for i, id := range req.VolunteerIDs {
		if _, dup := seen[id]; dup {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("volunteers[%d]", i),
				Message: "duplicate volunteer id",
				Value:   id,
				Rule:    "business_logic",
			})
		}
		seen[id] = struct{}{}
	}

	return errors
}
