package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/ayudamx/volunteer-service/internal/repositories/casdoor"
	"github.com/ayudamx/volunteer-service/internal/utils"
	"github.com/ayudamx/volunteer-service/internal/validator"
	"gorm.io/gorm"
)

// revocationTTL covers the remaining lifetime of any token issued before the
// sign-out.
const revocationTTL = 24 * time.Hour

type identityService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	accounts  *casdoor.AccountManager
	publisher events.EventPublisher
}

func NewIdentityService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, accounts *casdoor.AccountManager, publisher events.EventPublisher) IdentityService {
	return &identityService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		accounts:  accounts,
		publisher: publisher,
	}
}

// ===== SESSION RESOLUTION =====

// Resolve loads the account behind an authenticated user ID and enforces the
// approval gate: a volunteer whose profile is not "aprobado" has their
// sessions revoked and gets ErrVolunteerNotApproved.
func (s *identityService) Resolve(ctx context.Context, userID string) (*Identity, error) {
	if s.accounts != nil {
		revoked, err := s.accounts.IsRevoked(ctx, userID)
		if err != nil {
			s.logger.Warn("Revocation check failed, continuing", "user_id", userID, "error", err)
		} else if revoked {
			return nil, ErrUnauthorized
		}
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	identity := &Identity{User: user}

	volunteer, err := s.repo.Volunteer().GetByID(ctx, s.db, userID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, err
	}
	if volunteer != nil {
		identity.Volunteer = volunteer
		identity.Approved = volunteer.State == models.StateAprobado
	}

	// Admins pass without a profile; volunteers need an approved one.
	if user.Role == models.RoleAdmin {
		identity.Approved = true
		return identity, nil
	}

	if !identity.Approved {
		s.logger.Info("Rejecting unapproved volunteer session", "user_id", userID)
		if s.accounts != nil {
			if err := s.accounts.RevokeSessions(ctx, userID, revocationTTL); err != nil {
				s.logger.Warn("Failed to revoke sessions", "user_id", userID, "error", err)
			}
		}
		return nil, ErrVolunteerNotApproved
	}

	return identity, nil
}

// ===== REGISTRATION =====

func (s *identityService) Register(ctx context.Context, req *RegisterRequest) (*VolunteerResponse, error) {
	s.logger.Info("Registering volunteer", "email", req.Email)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if req.Email != "" {
		taken, err := s.repo.User().ExistsByEmail(ctx, req.Email)
		if err != nil {
			s.logger.Warn("Email existence check failed, continuing", "error", err)
		} else if taken {
			return nil, NewBusinessRuleError("email_taken", "Este correo ya está registrado")
		}
	}

	if s.accounts == nil {
		return nil, fmt.Errorf("identity provider not configured")
	}

	accountID, err := s.accounts.CreateAccount(ctx, req.FullName, req.Email, req.PhoneNumber, req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	volunteer := &models.Volunteer{
		ID:          accountID,
		FullName:    utils.SanitizeText(req.FullName, 100),
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		State:       models.StatePendiente,
	}
	if err := s.repo.Volunteer().Create(ctx, nil, volunteer); err != nil {
		return nil, fmt.Errorf("failed to create volunteer profile: %w", err)
	}

	s.logger.Info("Volunteer registered", "volunteer_id", accountID)

	if s.publisher != nil {
		event := events.NewEvent(events.EventVolunteerUpserted, events.VolunteerChangedData{VolunteerID: accountID})
		if err := s.publisher.Publish(ctx, events.TopicDirectory, event); err != nil {
			s.logger.Warn("Failed to publish registration event", "volunteer_id", accountID, "error", err)
		}
	}

	return &VolunteerResponse{
		Volunteer:   volunteer,
		DisplayName: volunteer.DisplayName(),
	}, nil
}

// ===== CREDENTIALS =====

func (s *identityService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if s.accounts == nil {
		return fmt.Errorf("identity provider not configured")
	}
	if len(newPassword) < 8 {
		return validator.ValidationErrors{{
			Field:   "password",
			Message: "password must be at least 8 characters",
			Rule:    "min",
		}}
	}
	return s.accounts.SetPassword(ctx, userID, oldPassword, newPassword)
}

func (s *identityService) SignOut(ctx context.Context, userID string) error {
	if s.accounts == nil {
		return nil
	}
	s.logger.Info("Signing out user", "user_id", userID)
	return s.accounts.RevokeSessions(ctx, userID, revocationTTL)
}
