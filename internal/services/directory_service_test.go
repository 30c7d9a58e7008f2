package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/ayudamx/volunteer-service/internal/validator"
)

func newDirectoryFixture(t *testing.T) (*fakeRepository, DirectoryService) {
	t.Helper()
	repo := newFakeRepository()
	logger := testLogger()
	service := NewDirectoryService(repo, nil, logger, validator.New(), events.NewMockEventPublisher(logger))
	return repo, service
}

func TestDirectoryService_ListAvailable(t *testing.T) {
	ctx := context.Background()
	repo, service := newDirectoryFixture(t)

	repo.addVolunteer(&models.Volunteer{ID: "vol-free", State: models.StateAprobado})
	repo.addVolunteer(&models.Volunteer{ID: "vol-busy", State: models.StateAprobado, Selected: true})
	repo.addVolunteer(&models.Volunteer{ID: "vol-pending", State: models.StatePendiente})

	available, err := service.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "vol-free", available[0].ID)
}

func TestDirectoryService_ListAll(t *testing.T) {
	ctx := context.Background()
	repo, service := newDirectoryFixture(t)

	repo.addVolunteer(&models.Volunteer{ID: "vol-1", FullName: "Ana Gómez", State: models.StateAprobado, Selected: true})
	repo.addVolunteer(&models.Volunteer{ID: "vol-2", State: models.StatePendiente})

	resp, err := service.ListAll(ctx, repositories.VolunteerFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)

	selected := true
	resp, err = service.ListAll(ctx, repositories.VolunteerFilters{Selected: &selected})
	require.NoError(t, err)
	require.Len(t, resp.Volunteers, 1)
	assert.Equal(t, "Ana Gómez", resp.Volunteers[0].DisplayName)
}

func TestDirectoryService_SetSelected(t *testing.T) {
	ctx := context.Background()
	repo, service := newDirectoryFixture(t)
	repo.addVolunteer(&models.Volunteer{ID: "vol-1", State: models.StateAprobado})

	require.NoError(t, service.SetSelected(ctx, "vol-1", true))
	volunteer, err := repo.Volunteer().GetByID(ctx, nil, "vol-1")
	require.NoError(t, err)
	assert.True(t, volunteer.Selected)

	// Idempotent: applying the same flag again succeeds.
	require.NoError(t, service.SetSelected(ctx, "vol-1", true))

	assert.ErrorIs(t, service.SetSelected(ctx, "vol-missing", true), ErrVolunteerNotFound)
}

func TestDirectoryService_Subscribe(t *testing.T) {
	ctx := context.Background()
	repo, service := newDirectoryFixture(t)
	repo.addVolunteer(&models.Volunteer{ID: "vol-1", State: models.StateAprobado})

	updates, cancel := service.Subscribe()

	require.NoError(t, service.SetSelected(ctx, "vol-1", true))

	select {
	case update := <-updates:
		assert.Equal(t, events.EventSelectedChanged, update.Type)
		assert.Equal(t, "vol-1", update.VolunteerID)
		require.NotNil(t, update.Selected)
		assert.True(t, *update.Selected)
	case <-time.After(time.Second):
		t.Fatal("expected a directory update")
	}

	// After cancel the channel closes and no further updates arrive.
	cancel()
	_, open := <-updates
	assert.False(t, open)

	// Cancel twice is safe.
	cancel()
}

func TestDirectoryService_SlowSubscriberDropsUpdates(t *testing.T) {
	ctx := context.Background()
	repo, service := newDirectoryFixture(t)
	repo.addVolunteer(&models.Volunteer{ID: "vol-1", State: models.StateAprobado})

	updates, cancel := service.Subscribe()
	defer cancel()

	// Overflow the buffer; the writer must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			_ = service.SetSelected(ctx, "vol-1", i%2 == 0)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
	assert.NotEmpty(t, updates)
}

func TestDirectoryService_SelectedConsumer(t *testing.T) {
	repo, service := newDirectoryFixture(t)
	repo.addVolunteer(&models.Volunteer{ID: "vol-1", State: models.StateAprobado})

	bus := events.NewInProcessBus(testLogger())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- service.(*directoryService).RunSelectedConsumer(ctx, bus)
	}()

	// Give the subscription time to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	event := events.NewEvent(events.EventSelectedChanged, events.SelectedChangedData{
		VolunteerID: "vol-1",
		Selected:    true,
	})
	require.NoError(t, bus.Publish(ctx, events.TopicSelected, event))

	require.Eventually(t, func() bool {
		volunteer, err := repo.Volunteer().GetByID(context.Background(), nil, "vol-1")
		return err == nil && volunteer.Selected
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-consumerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop on context cancel")
	}
}

func TestDirectoryService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	repo, service := newDirectoryFixture(t)
	repo.addVolunteer(&models.Volunteer{ID: "vol-1", State: models.StateAprobado})

	name := "María <script> López"
	area := "Logística"
	resp, err := service.UpdateProfile(ctx, "vol-1", &UpdateVolunteerRequest{
		FullName: &name,
		Area:     &area,
	}, "vol-1")
	require.NoError(t, err)

	// Disallowed runes are stripped from free text.
	assert.Equal(t, "María script López", resp.FullName)
	assert.Equal(t, "Logística", resp.Area)

	bad := "not-an-email"
	_, err = service.UpdateProfile(ctx, "vol-1", &UpdateVolunteerRequest{Email: &bad}, "vol-1")
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
}

func TestDirectoryService_SetState(t *testing.T) {
	ctx := context.Background()
	repo, service := newDirectoryFixture(t)
	repo.addVolunteer(&models.Volunteer{ID: "vol-1", State: models.StatePendiente})

	require.NoError(t, service.SetState(ctx, "vol-1", models.StateAprobado, "admin-1"))

	volunteer, err := repo.Volunteer().GetByID(ctx, nil, "vol-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateAprobado, volunteer.State)

	assert.ErrorIs(t, service.SetState(ctx, "vol-missing", models.StateAprobado, "admin-1"), ErrVolunteerNotFound)
}

func TestDirectoryService_UploadDocument(t *testing.T) {
	ctx := context.Background()
	repo, service := newDirectoryFixture(t)
	repo.addVolunteer(&models.Volunteer{ID: "vol-1", State: models.StateAprobado})

	err := service.UploadDocument(ctx, "vol-1", &DocumentUploadRequest{
		Kind:     "ine",
		FileName: "ine.pdf",
		Content:  []byte("pdf bytes"),
	}, "vol-1")
	require.NoError(t, err)

	// Oversized uploads are rejected.
	err = service.UploadDocument(ctx, "vol-1", &DocumentUploadRequest{
		Kind:     "medical_certificate",
		FileName: "cert.pdf",
		Content:  make([]byte, models.MaxDocumentSize+1),
	}, "vol-1")
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
}
