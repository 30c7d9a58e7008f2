package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/validator"
)

func newIdentityFixture(t *testing.T) (*fakeRepository, IdentityService) {
	t.Helper()
	repo := newFakeRepository()
	logger := testLogger()
	service := NewIdentityService(repo, nil, logger, validator.New(), nil, events.NewMockEventPublisher(logger))
	return repo, service
}

func TestIdentityService_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("approved volunteer resolves", func(t *testing.T) {
		repo, service := newIdentityFixture(t)
		repo.users["vol-1"] = &models.User{ID: "vol-1", Email: "ana@example.com", Role: models.RoleVolunteer}
		repo.addVolunteer(&models.Volunteer{ID: "vol-1", FullName: "Ana Gómez", State: models.StateAprobado})

		identity, err := service.Resolve(ctx, "vol-1")
		require.NoError(t, err)
		assert.True(t, identity.Approved)
		require.NotNil(t, identity.Volunteer)
		assert.Equal(t, "Ana Gómez", identity.Volunteer.FullName)
	})

	t.Run("pending volunteer is rejected", func(t *testing.T) {
		repo, service := newIdentityFixture(t)
		repo.users["vol-1"] = &models.User{ID: "vol-1", Role: models.RoleVolunteer}
		repo.addVolunteer(&models.Volunteer{ID: "vol-1", State: models.StatePendiente})

		_, err := service.Resolve(ctx, "vol-1")
		assert.ErrorIs(t, err, ErrVolunteerNotApproved)
	})

	t.Run("rejected volunteer is rejected", func(t *testing.T) {
		repo, service := newIdentityFixture(t)
		repo.users["vol-1"] = &models.User{ID: "vol-1", Role: models.RoleVolunteer}
		repo.addVolunteer(&models.Volunteer{ID: "vol-1", State: models.StateRechazado})

		_, err := service.Resolve(ctx, "vol-1")
		assert.ErrorIs(t, err, ErrVolunteerNotApproved)
	})

	t.Run("admin passes without a volunteer profile", func(t *testing.T) {
		repo, service := newIdentityFixture(t)
		repo.users["admin-1"] = &models.User{ID: "admin-1", Role: models.RoleAdmin}

		identity, err := service.Resolve(ctx, "admin-1")
		require.NoError(t, err)
		assert.True(t, identity.Approved)
		assert.Nil(t, identity.Volunteer)
	})

	t.Run("unknown user is unauthorized", func(t *testing.T) {
		_, service := newIdentityFixture(t)

		_, err := service.Resolve(ctx, "ghost")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestIdentityService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("validates the request", func(t *testing.T) {
		_, service := newIdentityFixture(t)

		_, err := service.Register(ctx, &RegisterRequest{
			FullName: "A",
			Email:    "ana@example.com",
			Password: "short",
		})
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
	})

	t.Run("requires the identity provider", func(t *testing.T) {
		_, service := newIdentityFixture(t)

		_, err := service.Register(ctx, &RegisterRequest{
			FullName: "Ana Gómez",
			Email:    "ana@example.com",
			Password: "supersecret1",
		})
		require.Error(t, err)
	})

	t.Run("rejects taken email", func(t *testing.T) {
		repo, service := newIdentityFixture(t)
		repo.users["vol-1"] = &models.User{ID: "vol-1", Email: "ana@example.com"}

		_, err := service.Register(ctx, &RegisterRequest{
			FullName: "Ana Gómez",
			Email:    "ana@example.com",
			Password: "supersecret1",
		})
		var ruleErr *BusinessRuleError
		require.ErrorAs(t, err, &ruleErr)
		assert.Equal(t, "email_taken", ruleErr.Rule)
	})
}
