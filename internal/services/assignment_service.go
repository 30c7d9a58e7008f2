package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/ayudamx/volunteer-service/internal/validator"
	"gorm.io/gorm"
)

type assignmentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewAssignmentService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) AssignmentService {
	return &assignmentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// ===== ASSIGN / UNASSIGN =====

func (s *assignmentService) Assign(ctx context.Context, taskID uint, volunteerIDs []string, userID string) (*TaskResponse, error) {
	s.logger.Info("Assigning volunteers", "task_id", taskID, "count", len(volunteerIDs), "user_id", userID)

	ids := uniqueStrings(volunteerIDs)
	if len(ids) == 0 {
		return nil, NewBusinessRuleError("empty_assignment", "Selecciona al menos un voluntario")
	}

	var assigned []string
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		// The row lock serializes capacity checks across concurrent assigns.
		task, err := txRepo.Task().GetByIDForUpdate(ctx, nil, taskID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrTaskNotFound
			}
			return err
		}
		if task.Completed {
			return ErrTaskCompleted
		}

		if err := s.checkApproved(ctx, txRepo, ids); err != nil {
			return err
		}

		// Only count volunteers not already on the task; repeat assigns are
		// no-ops and never consume capacity.
		toAdd := make([]string, 0, len(ids))
		for _, volunteerID := range ids {
			exists, err := txRepo.Assignment().Exists(ctx, nil, taskID, volunteerID)
			if err != nil {
				return err
			}
			if !exists {
				toAdd = append(toAdd, volunteerID)
			}
		}
		if len(toAdd) == 0 {
			return nil
		}

		current, err := txRepo.Assignment().CountByTask(ctx, nil, taskID)
		if err != nil {
			return err
		}
		if !task.HasCapacityFor(int(current), len(toAdd)) {
			return NewCapacityError(taskID, task.NeededAssistants, int(current)+len(toAdd))
		}

		for _, volunteerID := range toAdd {
			assignment := &models.TaskAssignment{
				TaskID:      taskID,
				VolunteerID: volunteerID,
				AssignedBy:  userID,
			}
			if err := txRepo.Assignment().Create(ctx, nil, assignment); err != nil {
				return fmt.Errorf("failed to assign volunteer %s: %w", volunteerID, err)
			}
			if err := writeSelectedOutbox(ctx, txRepo, volunteerID, true); err != nil {
				return err
			}
		}

		assigned = toAdd
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(assigned) > 0 {
		s.publishAssignedEvent(ctx, taskID)
	}

	return s.taskResponse(ctx, taskID)
}

func (s *assignmentService) Unassign(ctx context.Context, taskID uint, volunteerIDs []string, userID string) (*TaskResponse, error) {
	s.logger.Info("Unassigning volunteers", "task_id", taskID, "count", len(volunteerIDs), "user_id", userID)

	ids := uniqueStrings(volunteerIDs)
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if _, err := txRepo.Task().GetByIDForUpdate(ctx, nil, taskID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrTaskNotFound
			}
			return err
		}

		for _, volunteerID := range ids {
			if err := txRepo.Assignment().Delete(ctx, nil, taskID, volunteerID); err != nil {
				if repositories.IsNotFoundError(err) {
					return fmt.Errorf("%w: %s", ErrNotAssigned, volunteerID)
				}
				return err
			}

			remaining, err := txRepo.Assignment().CountByVolunteer(ctx, nil, volunteerID)
			if err != nil {
				return err
			}
			if remaining == 0 {
				if err := writeSelectedOutbox(ctx, txRepo, volunteerID, false); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishAssignedEvent(ctx, taskID)
	return s.taskResponse(ctx, taskID)
}

// ===== RECONCILE =====

func (s *assignmentService) ReconcileOnSave(ctx context.Context, taskID uint, desired []string, userID string) error {
	wanted := uniqueStrings(desired)
	if len(wanted) == 0 {
		return NewBusinessRuleError("empty_assignment", "Selecciona al menos un voluntario")
	}

	s.logger.Info("Reconciling assignments", "task_id", taskID, "desired", len(wanted))

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		task, err := txRepo.Task().GetByIDForUpdate(ctx, nil, taskID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrTaskNotFound
			}
			return err
		}

		if len(wanted) > task.NeededAssistants {
			return NewCapacityError(taskID, task.NeededAssistants, len(wanted))
		}

		current, err := txRepo.Assignment().GetByTask(ctx, nil, taskID)
		if err != nil {
			return err
		}

		currentSet := make(map[string]struct{}, len(current))
		for _, assignment := range current {
			currentSet[assignment.VolunteerID] = struct{}{}
		}
		wantedSet := make(map[string]struct{}, len(wanted))
		for _, id := range wanted {
			wantedSet[id] = struct{}{}
		}

		var toAdd, toRemove []string
		for _, id := range wanted {
			if _, ok := currentSet[id]; !ok {
				toAdd = append(toAdd, id)
			}
		}
		for _, assignment := range current {
			if _, ok := wantedSet[assignment.VolunteerID]; !ok {
				toRemove = append(toRemove, assignment.VolunteerID)
			}
		}

		if len(toAdd) > 0 {
			if err := s.checkApproved(ctx, txRepo, toAdd); err != nil {
				return err
			}
		}

		for _, volunteerID := range toRemove {
			if err := txRepo.Assignment().Delete(ctx, nil, taskID, volunteerID); err != nil {
				return err
			}
			remaining, err := txRepo.Assignment().CountByVolunteer(ctx, nil, volunteerID)
			if err != nil {
				return err
			}
			if remaining == 0 {
				if err := writeSelectedOutbox(ctx, txRepo, volunteerID, false); err != nil {
					return err
				}
			}
		}

		for _, volunteerID := range toAdd {
			assignment := &models.TaskAssignment{
				TaskID:      taskID,
				VolunteerID: volunteerID,
				AssignedBy:  userID,
			}
			if err := txRepo.Assignment().Create(ctx, nil, assignment); err != nil {
				return fmt.Errorf("failed to assign volunteer %s: %w", volunteerID, err)
			}
			if err := writeSelectedOutbox(ctx, txRepo, volunteerID, true); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.publishAssignedEvent(ctx, taskID)
	return nil
}

// ===== HELPERS =====

func (s *assignmentService) checkApproved(ctx context.Context, txRepo repositories.Repository, ids []string) error {
	volunteers, err := txRepo.Volunteer().GetByIDs(ctx, nil, ids)
	if err != nil {
		return err
	}

	found := make(map[string]*models.Volunteer, len(volunteers))
	for _, v := range volunteers {
		found[v.ID] = v
	}
	for _, id := range ids {
		volunteer, ok := found[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrVolunteerNotFound, id)
		}
		if volunteer.State != models.StateAprobado {
			return NewBusinessRuleError("volunteer_not_approved",
				fmt.Sprintf("volunteer %s is not approved", id)).
				WithContext("volunteer_id", id)
		}
	}
	return nil
}

func (s *assignmentService) taskResponse(ctx context.Context, taskID uint) (*TaskResponse, error) {
	task, err := s.repo.Task().GetByID(ctx, s.db, taskID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	assignments, err := s.repo.Assignment().GetByTask(ctx, s.db, taskID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		ids = append(ids, assignment.VolunteerID)
	}
	task.AssignedCount = len(ids)
	task.VolunteerIDs = ids

	var volunteers []*models.Volunteer
	if len(ids) > 0 {
		volunteers, err = s.repo.Volunteer().GetByIDs(ctx, s.db, ids)
		if err != nil {
			return nil, err
		}
	}

	spotsLeft := task.NeededAssistants - task.AssignedCount
	if spotsLeft < 0 {
		spotsLeft = 0
	}
	return &TaskResponse{Task: task, Volunteers: volunteers, SpotsLeft: spotsLeft}, nil
}

func (s *assignmentService) publishAssignedEvent(ctx context.Context, taskID uint) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(events.EventVolunteersAssigned, events.TaskChangedData{TaskID: taskID})
	if err := s.publisher.Publish(ctx, events.TopicTasks, event); err != nil {
		s.logger.Warn("Failed to publish assignment event", "task_id", taskID, "error", err)
	}
}
