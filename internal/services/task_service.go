package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/ayudamx/volunteer-service/internal/utils"
	"github.com/ayudamx/volunteer-service/internal/validator"
	"gorm.io/gorm"
)

type taskService struct {
	repo        repositories.Repository
	assignments AssignmentService
	db          *gorm.DB
	logger      *slog.Logger
	validator   *validator.Validator
	publisher   events.EventPublisher
}

func NewTaskService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) TaskService {
	return &taskService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		publisher:   publisher,
		assignments: NewAssignmentService(repo, db, logger, validator, publisher),
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *taskService) Create(ctx context.Context, req *CreateTaskRequest, creatorID string) (*TaskResponse, error) {
	s.logger.Info("Creating task", "creator_id", creatorID, "name", req.Name)

	// Free text is sanitized before validation so the length rules see what
	// will actually be stored.
	req.Name = utils.SanitizeText(req.Name, 50)
	req.Description = utils.SanitizeText(req.Description, 150)

	if errs := s.validator.GetBusinessValidator().ValidateTaskCreate(req); len(errs) > 0 {
		return nil, errs
	}

	volunteerIDs := uniqueStrings(req.VolunteerIDs)
	if err := s.checkVolunteersAssignable(ctx, volunteerIDs); err != nil {
		return nil, err
	}

	var task *models.Task
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		task = &models.Task{
			Name:             req.Name,
			Description:      req.Description,
			NeededAssistants: req.NeededAssistants,
			Deadline:         req.Deadline,
			Status:           models.TaskStatusOpen,
			CreatedBy:        creatorID,
		}
		if err := txRepo.Task().Create(ctx, nil, task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		for _, volunteerID := range volunteerIDs {
			assignment := &models.TaskAssignment{
				TaskID:      task.ID,
				VolunteerID: volunteerID,
				AssignedBy:  creatorID,
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
		return nil, err
	}

	s.logger.Info("Task created", "task_id", task.ID, "volunteers", len(volunteerIDs))
	s.publishTaskEvent(ctx, events.EventTaskCreated, task)

	return s.GetByID(ctx, task.ID, creatorID)
}

func (s *taskService) GetByID(ctx context.Context, id uint, userID string) (*TaskResponse, error) {
	task, err := s.repo.Task().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	return s.buildTaskResponse(ctx, task, userID)
}

func (s *taskService) Update(ctx context.Context, id uint, req *UpdateTaskRequest, userID string) (*TaskResponse, error) {
	s.logger.Info("Updating task", "task_id", id, "user_id", userID)

	if req.Name != nil {
		sanitized := utils.SanitizeText(*req.Name, 50)
		req.Name = &sanitized
	}
	if req.Description != nil {
		sanitized := utils.SanitizeText(*req.Description, 150)
		req.Description = &sanitized
	}

	existing, err := s.repo.Task().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	if errs := s.validator.GetBusinessValidator().ValidateTaskUpdate(req, existing); len(errs) > 0 {
		return nil, errs
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Deadline != nil {
		fields["deadline"] = *req.Deadline
	}
	if len(fields) > 0 {
		if err := s.repo.Task().UpdateFields(ctx, nil, id, fields); err != nil {
			return nil, fmt.Errorf("failed to update task: %w", err)
		}
	}

	// A present volunteer list is the desired assignment set; reconcile it
	// against what is stored.
	if req.VolunteerIDs != nil {
		if err := s.assignments.ReconcileOnSave(ctx, id, req.VolunteerIDs, userID); err != nil {
			return nil, err
		}
	}

	s.publishTaskEvent(ctx, events.EventTaskUpdated, existing)

	return s.GetByID(ctx, id, userID)
}

func (s *taskService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting task", "task_id", id, "user_id", userID)

	var task *models.Task
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		var err error
		task, err = txRepo.Task().GetByIDForUpdate(ctx, nil, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrTaskNotFound
			}
			return err
		}

		assignments, err := txRepo.Assignment().GetByTask(ctx, nil, id)
		if err != nil {
			return err
		}

		if err := txRepo.Assignment().DeleteByTask(ctx, nil, id); err != nil {
			return fmt.Errorf("failed to remove assignments: %w", err)
		}

		// Volunteers whose only assignment was this task go back to the
		// available pool.
		for _, assignment := range assignments {
			remaining, err := txRepo.Assignment().CountByVolunteer(ctx, nil, assignment.VolunteerID)
			if err != nil {
				return err
			}
			if remaining == 0 {
				if err := writeSelectedOutbox(ctx, txRepo, assignment.VolunteerID, false); err != nil {
					return err
				}
			}
		}

		return txRepo.Task().Delete(ctx, nil, id)
	})
	if err != nil {
		return err
	}

	s.publishTaskEvent(ctx, events.EventTaskDeleted, task)
	return nil
}

// ===== LIST OPERATIONS =====

func (s *taskService) List(ctx context.Context, filters repositories.TaskFilters, userID string) (*TaskListResponse, error) {
	tasks, total, err := s.repo.Task().List(ctx, s.db, filters)
	if err != nil {
		return nil, err
	}

	responses := make([]*TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp, err := s.buildTaskResponse(ctx, task, userID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}

	page, size := pageFromOffset(filters.Offset, filters.Limit)
	return &TaskListResponse{
		Tasks: responses,
		Total: total,
		Page:  page,
		Size:  size,
	}, nil
}

func (s *taskService) ListOpen(ctx context.Context) ([]*TaskResponse, error) {
	tasks, err := s.repo.Task().ListOpen(ctx, s.db)
	if err != nil {
		return nil, err
	}

	responses := make([]*TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp, err := s.buildTaskResponse(ctx, task, "")
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// ===== LIFECYCLE =====

func (s *taskService) ToggleCompleted(ctx context.Context, id uint, userID string) (*TaskResponse, error) {
	var task *models.Task
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		var err error
		task, err = txRepo.Task().GetByIDForUpdate(ctx, nil, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrTaskNotFound
			}
			return err
		}

		task.Completed = !task.Completed
		if task.Completed {
			task.Status = models.TaskStatusCompleted
		} else {
			task.Status = models.TaskStatusOpen
		}

		if err := txRepo.Task().UpdateFields(ctx, nil, id, map[string]interface{}{
			"completed": task.Completed,
			"status":    task.Status,
		}); err != nil {
			return err
		}

		// Selected derives from open-task assignments only, so completing a
		// task releases volunteers with no other open task and reopening it
		// reclaims them. Assignment rows are untouched.
		assignments, err := txRepo.Assignment().GetByTask(ctx, nil, id)
		if err != nil {
			return err
		}
		for _, assignment := range assignments {
			open, err := txRepo.Assignment().CountByVolunteer(ctx, nil, assignment.VolunteerID)
			if err != nil {
				return err
			}
			if err := writeSelectedOutbox(ctx, txRepo, assignment.VolunteerID, open > 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task completion toggled", "task_id", id, "completed", task.Completed)
	s.publishTaskEvent(ctx, events.EventTaskCompleted, task)

	return s.GetByID(ctx, id, userID)
}

// ===== STATISTICS =====

func (s *taskService) GetStats(ctx context.Context) (*repositories.TaskStats, error) {
	return s.repo.Task().GetStats(ctx, s.db)
}

// ===== HELPERS =====

func (s *taskService) buildTaskResponse(ctx context.Context, task *models.Task, userID string) (*TaskResponse, error) {
	assignments, err := s.repo.Assignment().GetByTask(ctx, s.db, task.ID)
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

	isOwner := userID != "" && task.CreatedBy == userID
	return &TaskResponse{
		Task:       task,
		Volunteers: volunteers,
		SpotsLeft:  spotsLeft,
		CanEdit:    isOwner && !task.Completed,
		CanDelete:  isOwner,
	}, nil
}

// checkVolunteersAssignable verifies every ID exists and is approved.
func (s *taskService) checkVolunteersAssignable(ctx context.Context, ids []string) error {
	volunteers, err := s.repo.Volunteer().GetByIDs(ctx, s.db, ids)
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
				WithContext("volunteer_id", id).
				WithContext("state", string(volunteer.State))
		}
	}
	return nil
}

func (s *taskService) publishTaskEvent(ctx context.Context, eventType string, task *models.Task) {
	if s.publisher == nil || task == nil {
		return
	}
	event := events.NewEvent(eventType, events.TaskChangedData{
		TaskID:    task.ID,
		Completed: task.Completed,
	})
	if err := s.publisher.Publish(ctx, events.TopicTasks, event); err != nil {
		s.logger.Warn("Failed to publish task event", "event_type", eventType, "task_id", task.ID, "error", err)
	}
}

// writeSelectedOutbox records a selected flag change in the same transaction
// as the assignment change that caused it.
func writeSelectedOutbox(ctx context.Context, txRepo repositories.Repository, volunteerID string, selected bool) error {
	payload, err := json.Marshal(events.SelectedChangedData{
		VolunteerID: volunteerID,
		Selected:    selected,
	})
	if err != nil {
		return err
	}

	entry := &models.OutboxEntry{
		EventType:   events.EventSelectedChanged,
		AggregateID: volunteerID,
		Payload:     payload,
		Status:      models.OutboxPending,
	}
	if err := txRepo.Outbox().Create(ctx, nil, entry); err != nil {
		return fmt.Errorf("failed to write outbox entry: %w", err)
	}
	return nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func pageFromOffset(offset, limit int) (int, int) {
	if limit <= 0 {
		return 1, 0
	}
	return offset/limit + 1, limit
}
