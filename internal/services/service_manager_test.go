package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/validator"
)

func TestServiceManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	logger := testLogger()
	manager := NewDefaultServiceManager(nil, repo, logger, validator.New(), events.NewMockEventPublisher(logger), nil)

	require.NoError(t, manager.Initialize(ctx))

	// Every default service is reachable after Initialize.
	assert.NotNil(t, manager.Task())
	assert.NotNil(t, manager.Assignment())
	assert.NotNil(t, manager.Directory())
	assert.NotNil(t, manager.Identity())
	assert.NotNil(t, manager.Attendance())

	require.NoError(t, manager.HealthCheck(ctx))

	// Initialize twice is a no-op.
	require.NoError(t, manager.Initialize(ctx))

	require.NoError(t, manager.Shutdown(ctx))
	assert.Error(t, manager.HealthCheck(ctx))

	// Shutdown twice is a no-op.
	require.NoError(t, manager.Shutdown(ctx))
}

func TestServiceManager_PanicsBeforeInitialize(t *testing.T) {
	repo := newFakeRepository()
	logger := testLogger()
	manager := NewDefaultServiceManager(nil, repo, logger, validator.New(), events.NewMockEventPublisher(logger), nil)

	assert.Panics(t, func() { manager.Task() })
	assert.Panics(t, func() { manager.Directory() })
}

func TestServiceManager_StartsSelectedConsumer(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	logger := testLogger()
	bus := events.NewInProcessBus(logger)
	defer bus.Close()

	manager := NewDefaultServiceManager(nil, repo, logger, validator.New(), bus, nil)
	require.NoError(t, manager.Initialize(ctx))
	defer manager.Shutdown(ctx)

	// With a real bus the directory consumer is running: a published
	// selected event lands in the store.
	approvedVolunteer(repo, "vol-1")

	time.Sleep(50 * time.Millisecond)
	event := events.NewEvent(events.EventSelectedChanged, events.SelectedChangedData{
		VolunteerID: "vol-1",
		Selected:    true,
	})
	require.NoError(t, bus.Publish(ctx, events.TopicSelected, event))

	require.Eventually(t, func() bool {
		volunteer, err := repo.Volunteer().GetByID(ctx, nil, "vol-1")
		return err == nil && volunteer.Selected
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServiceManagerConfig_Validate(t *testing.T) {
	valid := ServiceManagerConfig{
		DefaultTimeout: 10 * time.Second,
	}
	require.NoError(t, valid.Validate())

	invalid := ServiceManagerConfig{
		DefaultTimeout: -1,
		MaxRetries:     -1,
	}
	assert.Error(t, invalid.Validate())
}
