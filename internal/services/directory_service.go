package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/ayudamx/volunteer-service/internal/utils"
	"github.com/ayudamx/volunteer-service/internal/validator"
	"gorm.io/gorm"
)

// selectedSubscriber is the slice of the event bus the directory consumes.
type selectedSubscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

type directoryService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher

	// Subscription hub. Subscribers get every directory change until their
	// cancel func runs.
	mu          sync.Mutex
	subscribers map[int]chan DirectoryUpdate
	nextSubID   int
}

func NewDirectoryService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) DirectoryService {
	return &directoryService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		publisher:   publisher,
		subscribers: make(map[int]chan DirectoryUpdate),
	}
}

// ===== QUERY OPERATIONS =====

func (s *directoryService) ListAvailable(ctx context.Context) ([]*VolunteerResponse, error) {
	volunteers, err := s.repo.Volunteer().ListAvailable(ctx, s.db)
	if err != nil {
		return nil, err
	}

	responses := make([]*VolunteerResponse, 0, len(volunteers))
	for _, volunteer := range volunteers {
		responses = append(responses, &VolunteerResponse{
			Volunteer:   volunteer,
			DisplayName: volunteer.DisplayName(),
		})
	}
	return responses, nil
}

func (s *directoryService) ListAll(ctx context.Context, filters repositories.VolunteerFilters) (*DirectoryListResponse, error) {
	volunteers, total, err := s.repo.Volunteer().List(ctx, s.db, filters)
	if err != nil {
		return nil, err
	}

	responses := make([]*VolunteerResponse, 0, len(volunteers))
	for _, volunteer := range volunteers {
		responses = append(responses, &VolunteerResponse{
			Volunteer:   volunteer,
			DisplayName: volunteer.DisplayName(),
		})
	}

	page, size := pageFromOffset(filters.Offset, filters.Limit)
	return &DirectoryListResponse{
		Volunteers: responses,
		Total:      total,
		Page:       page,
		Size:       size,
	}, nil
}

func (s *directoryService) GetByID(ctx context.Context, id string) (*VolunteerResponse, error) {
	volunteer, err := s.repo.Volunteer().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrVolunteerNotFound
		}
		return nil, err
	}

	active, err := s.repo.Assignment().CountByVolunteer(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	return &VolunteerResponse{
		Volunteer:         volunteer,
		DisplayName:       volunteer.DisplayName(),
		ActiveAssignments: int(active),
	}, nil
}

// ===== PROFILE MANAGEMENT =====

func (s *directoryService) UpdateProfile(ctx context.Context, id string, req *UpdateVolunteerRequest, userID string) (*VolunteerResponse, error) {
	s.logger.Info("Updating volunteer profile", "volunteer_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	volunteer, err := s.repo.Volunteer().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrVolunteerNotFound
		}
		return nil, err
	}

	if req.FullName != nil {
		volunteer.FullName = utils.SanitizeText(*req.FullName, 100)
	}
	if req.Email != nil {
		volunteer.Email = *req.Email
	}
	if req.PhoneNumber != nil {
		volunteer.PhoneNumber = *req.PhoneNumber
	}
	if req.EmergencyPhone != nil {
		volunteer.EmergencyPhone = *req.EmergencyPhone
	}
	if req.BloodType != nil {
		volunteer.BloodType = *req.BloodType
	}
	if req.Area != nil {
		volunteer.Area = utils.SanitizeText(*req.Area, 100)
	}
	if req.CURP != nil {
		volunteer.CURP = *req.CURP
	}

	if err := s.repo.Volunteer().Update(ctx, nil, volunteer); err != nil {
		return nil, fmt.Errorf("failed to update volunteer: %w", err)
	}

	s.publishDirectoryEvent(ctx, events.EventVolunteerUpserted, id)
	s.broadcast(DirectoryUpdate{Type: events.EventVolunteerUpserted, VolunteerID: id})

	return s.GetByID(ctx, id)
}

func (s *directoryService) SetState(ctx context.Context, id string, state models.VolunteerState, adminID string) error {
	s.logger.Info("Changing volunteer state", "volunteer_id", id, "state", state, "admin_id", adminID)

	if err := s.repo.Volunteer().SetState(ctx, nil, id, state); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrVolunteerNotFound
		}
		return err
	}

	s.publishDirectoryEvent(ctx, events.EventVolunteerState, id)
	s.broadcast(DirectoryUpdate{Type: events.EventVolunteerState, VolunteerID: id})
	return nil
}

func (s *directoryService) UploadDocument(ctx context.Context, id string, req *DocumentUploadRequest, userID string) error {
	if errs := s.validator.GetBusinessValidator().ValidateDocumentUpload(req); len(errs) > 0 {
		return errs
	}

	volunteer, err := s.repo.Volunteer().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrVolunteerNotFound
		}
		return err
	}

	var documents []models.DocumentRef
	if len(volunteer.Documents) > 0 {
		if err := json.Unmarshal(volunteer.Documents, &documents); err != nil {
			return fmt.Errorf("failed to decode documents: %w", err)
		}
	}

	// One document per kind; re-uploading replaces the previous one.
	kept := documents[:0]
	for _, doc := range documents {
		if doc.Kind != req.Kind {
			kept = append(kept, doc)
		}
	}
	kept = append(kept, models.DocumentRef{
		Kind:       req.Kind,
		FileName:   req.FileName,
		SizeBytes:  int64(len(req.Content)),
		StorageKey: fmt.Sprintf("volunteers/%s/%s/%s", id, req.Kind, req.FileName),
		UploadedAt: time.Now(),
	})

	if err := s.repo.Volunteer().UpdateDocuments(ctx, nil, id, kept); err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}

	s.logger.Info("Document uploaded", "volunteer_id", id, "kind", req.Kind, "size", len(req.Content))
	return nil
}

// ===== SELECTED FLAG (single writer) =====

func (s *directoryService) SetSelected(ctx context.Context, id string, selected bool) error {
	if err := s.repo.Volunteer().SetSelected(ctx, nil, id, selected); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrVolunteerNotFound
		}
		return err
	}

	s.broadcast(DirectoryUpdate{
		Type:        events.EventSelectedChanged,
		VolunteerID: id,
		Selected:    &selected,
	})
	return nil
}

// RunSelectedConsumer applies selected flag changes coming off the bus. It
// blocks until ctx is cancelled or the subscription channel closes.
func (s *directoryService) RunSelectedConsumer(ctx context.Context, sub selectedSubscriber) error {
	messages, err := sub.Subscribe(ctx, events.TopicSelected)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.TopicSelected, err)
	}

	s.logger.Info("Directory selected-flag consumer started", "topic", events.TopicSelected)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.handleSelectedMessage(ctx, msg)
		}
	}
}

func (s *directoryService) handleSelectedMessage(ctx context.Context, msg *message.Message) {
	var event events.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		s.logger.Error("Dropping malformed selected event", "message_id", msg.UUID, "error", err)
		msg.Ack()
		return
	}

	raw, err := json.Marshal(event.Data)
	if err != nil {
		msg.Ack()
		return
	}
	var data events.SelectedChangedData
	if err := json.Unmarshal(raw, &data); err != nil || data.VolunteerID == "" {
		s.logger.Error("Dropping selected event without volunteer", "message_id", msg.UUID)
		msg.Ack()
		return
	}

	// SetSelected is idempotent, so redelivery is harmless.
	if err := s.SetSelected(ctx, data.VolunteerID, data.Selected); err != nil {
		s.logger.Error("Failed to apply selected flag", "volunteer_id", data.VolunteerID, "error", err)
		msg.Nack()
		return
	}
	msg.Ack()
}

// ===== SUBSCRIPTIONS =====

func (s *directoryService) Subscribe() (<-chan DirectoryUpdate, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++

	ch := make(chan DirectoryUpdate, 16)
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (s *directoryService) broadcast(update DirectoryUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- update:
		default:
			// Slow subscribers drop updates rather than block writers.
		}
	}
}

// ===== STATISTICS =====

func (s *directoryService) GetStats(ctx context.Context) (*repositories.VolunteerStats, error) {
	return s.repo.Volunteer().GetStats(ctx, s.db)
}

func (s *directoryService) publishDirectoryEvent(ctx context.Context, eventType, volunteerID string) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(eventType, events.VolunteerChangedData{VolunteerID: volunteerID})
	if err := s.publisher.Publish(ctx, events.TopicDirectory, event); err != nil {
		s.logger.Warn("Failed to publish directory event", "event_type", eventType, "volunteer_id", volunteerID, "error", err)
	}
}
