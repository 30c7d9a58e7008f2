package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/validator"
)

func newTaskFixture(t *testing.T) (*fakeRepository, *events.MockEventPublisher, TaskService) {
	t.Helper()
	repo := newFakeRepository()
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	service := NewTaskService(repo, nil, logger, validator.New(), publisher)
	return repo, publisher, service
}

func TestTaskService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates open task with initial assignments", func(t *testing.T) {
		repo, publisher, service := newTaskFixture(t)
		approvedVolunteer(repo, "vol-1")
		approvedVolunteer(repo, "vol-2")

		resp, err := service.Create(ctx, &CreateTaskRequest{
			Name:             "Reparto de despensas",
			Description:      "Entrega de despensas en la colonia Centro durante la mañana",
			NeededAssistants: 3,
			VolunteerIDs:     []string{"vol-1", "vol-2"},
		}, "admin-1")
		require.NoError(t, err)

		assert.Equal(t, models.TaskStatusOpen, resp.Status)
		assert.False(t, resp.Completed)
		assert.Equal(t, 2, resp.AssignedCount)
		assert.Equal(t, 1, resp.SpotsLeft)
		assert.ElementsMatch(t, []string{"vol-1", "vol-2"}, resp.VolunteerIDs)

		// Both volunteers leave the available pool through the outbox.
		assert.Len(t, repo.outboxFor("vol-1"), 1)
		assert.Len(t, repo.outboxFor("vol-2"), 1)

		published := publisher.GetPublishedEvents()
		require.NotEmpty(t, published)
		assert.Equal(t, events.EventTaskCreated, published[0].Type)
	})

	t.Run("sanitizes free text before validation", func(t *testing.T) {
		repo, _, service := newTaskFixture(t)
		approvedVolunteer(repo, "vol-1")

		resp, err := service.Create(ctx, &CreateTaskRequest{
			Name:             "  Brigada de <b>limpieza</b>  ",
			Description:      "Limpieza del parque principal, traer guantes y bolsas (9 a.m.)",
			NeededAssistants: 2,
			VolunteerIDs:     []string{"vol-1"},
		}, "admin-1")
		require.NoError(t, err)

		assert.Equal(t, "Brigada de blimpiezab", resp.Name)
		assert.Contains(t, resp.Description, "(9 a.m.)")
	})

	t.Run("rejects short name", func(t *testing.T) {
		repo, _, service := newTaskFixture(t)
		approvedVolunteer(repo, "vol-1")

		_, err := service.Create(ctx, &CreateTaskRequest{
			Name:             "Ayua",
			Description:      "Descripción suficientemente larga para pasar la regla de longitud",
			NeededAssistants: 1,
			VolunteerIDs:     []string{"vol-1"},
		}, "admin-1")

		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
	})

	t.Run("rejects more volunteers than capacity", func(t *testing.T) {
		repo, _, service := newTaskFixture(t)
		approvedVolunteer(repo, "vol-1")
		approvedVolunteer(repo, "vol-2")

		_, err := service.Create(ctx, &CreateTaskRequest{
			Name:             "Acopio de víveres",
			Description:      "Recepción y clasificación de víveres en el centro de acopio",
			NeededAssistants: 1,
			VolunteerIDs:     []string{"vol-1", "vol-2"},
		}, "admin-1")

		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
	})

	t.Run("rejects unknown volunteer", func(t *testing.T) {
		_, _, service := newTaskFixture(t)

		_, err := service.Create(ctx, &CreateTaskRequest{
			Name:             "Brigada de salud",
			Description:      "Apoyo en módulo de salud comunitaria durante la jornada",
			NeededAssistants: 2,
			VolunteerIDs:     []string{"vol-missing"},
		}, "admin-1")
		assert.ErrorIs(t, err, ErrVolunteerNotFound)
	})
}

func TestTaskService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("updates fields and reconciles volunteers", func(t *testing.T) {
		repo, _, service := newTaskFixture(t)
		approvedVolunteer(repo, "vol-a")
		approvedVolunteer(repo, "vol-b")
		task := repo.addTask(&models.Task{
			Name:             "Reparto de despensas",
			Description:      "Entrega de despensas en la colonia Centro durante la mañana",
			NeededAssistants: 2,
			Status:           models.TaskStatusOpen,
			CreatedBy:        "admin-1",
		})
		repo.addAssignment(task.ID, "vol-a")

		name := "Reparto de despensas, turno tarde"
		resp, err := service.Update(ctx, task.ID, &UpdateTaskRequest{
			Name:         &name,
			VolunteerIDs: []string{"vol-b"},
		}, "admin-1")
		require.NoError(t, err)

		assert.Equal(t, name, resp.Name)
		assert.Equal(t, []string{"vol-b"}, resp.VolunteerIDs)
	})

	t.Run("nil volunteer list leaves assignments untouched", func(t *testing.T) {
		repo, _, service := newTaskFixture(t)
		approvedVolunteer(repo, "vol-a")
		task := repo.addTask(&models.Task{
			Name:             "Jornada de limpieza",
			Description:      "Limpieza general del parque y sus alrededores por la tarde",
			NeededAssistants: 2,
			Status:           models.TaskStatusOpen,
		})
		repo.addAssignment(task.ID, "vol-a")

		deadline := time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC)
		resp, err := service.Update(ctx, task.ID, &UpdateTaskRequest{Deadline: &deadline}, "admin-1")
		require.NoError(t, err)

		assert.Equal(t, []string{"vol-a"}, resp.VolunteerIDs)
		require.NotNil(t, resp.Deadline)
		assert.True(t, resp.Deadline.Equal(deadline))
	})

	t.Run("rejects desired set over capacity", func(t *testing.T) {
		repo, _, service := newTaskFixture(t)
		task := repo.addTask(&models.Task{
			Name:             "Brigada chica",
			Description:      "Una brigada pequeña con un solo lugar disponible hoy",
			NeededAssistants: 1,
			Status:           models.TaskStatusOpen,
		})

		_, err := service.Update(ctx, task.ID, &UpdateTaskRequest{
			VolunteerIDs: []string{"vol-a", "vol-b"},
		}, "admin-1")

		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
	})
}

func TestTaskService_ToggleCompleted(t *testing.T) {
	ctx := context.Background()

	lastSelected := func(t *testing.T, repo *fakeRepository, volunteerID string) bool {
		t.Helper()
		entries := repo.outboxFor(volunteerID)
		require.NotEmpty(t, entries)
		var data events.SelectedChangedData
		require.NoError(t, json.Unmarshal(entries[len(entries)-1].Payload, &data))
		return data.Selected
	}

	t.Run("toggle is reversible", func(t *testing.T) {
		repo, _, service := newTaskFixture(t)
		task := repo.addTask(&models.Task{
			Name:             "Acopio de víveres",
			Description:      "Recepción y clasificación de víveres en el centro de acopio",
			NeededAssistants: 2,
			Status:           models.TaskStatusOpen,
		})

		resp, err := service.ToggleCompleted(ctx, task.ID, "admin-1")
		require.NoError(t, err)
		assert.True(t, resp.Completed)
		assert.Equal(t, models.TaskStatusCompleted, resp.Status)

		// The toggle is reversible; completion is not terminal.
		resp, err = service.ToggleCompleted(ctx, task.ID, "admin-1")
		require.NoError(t, err)
		assert.False(t, resp.Completed)
		assert.Equal(t, models.TaskStatusOpen, resp.Status)
	})

	t.Run("completing releases volunteers with no other open task", func(t *testing.T) {
		repo, _, service := newTaskFixture(t)
		approvedVolunteer(repo, "vol-1")
		task := repo.addTask(&models.Task{
			Name:             "Jornada de limpieza",
			Description:      "Limpieza general del parque y sus alrededores por la tarde",
			NeededAssistants: 2,
			Status:           models.TaskStatusOpen,
		})
		repo.addAssignment(task.ID, "vol-1")

		_, err := service.ToggleCompleted(ctx, task.ID, "admin-1")
		require.NoError(t, err)
		assert.False(t, lastSelected(t, repo, "vol-1"))

		// Reopening reclaims the volunteer; the assignment row never moved.
		_, err = service.ToggleCompleted(ctx, task.ID, "admin-1")
		require.NoError(t, err)
		assert.True(t, lastSelected(t, repo, "vol-1"))

		count, _ := repo.Assignment().CountByTask(ctx, nil, task.ID)
		assert.EqualValues(t, 1, count)
	})

	t.Run("volunteer on another open task stays selected", func(t *testing.T) {
		repo, _, service := newTaskFixture(t)
		approvedVolunteer(repo, "vol-1")
		first := repo.addTask(&models.Task{
			Name:             "Primera brigada",
			Description:      "Primera brigada de apoyo comunitario durante la mañana",
			NeededAssistants: 2,
			Status:           models.TaskStatusOpen,
		})
		second := repo.addTask(&models.Task{
			Name:             "Segunda brigada",
			Description:      "Segunda brigada de apoyo comunitario durante la tarde",
			NeededAssistants: 2,
			Status:           models.TaskStatusOpen,
		})
		repo.addAssignment(first.ID, "vol-1")
		repo.addAssignment(second.ID, "vol-1")

		_, err := service.ToggleCompleted(ctx, first.ID, "admin-1")
		require.NoError(t, err)
		assert.True(t, lastSelected(t, repo, "vol-1"))
	})
}

func TestTaskService_ListOpen(t *testing.T) {
	ctx := context.Background()
	repo, _, service := newTaskFixture(t)

	later := time.Date(2026, 9, 20, 10, 0, 0, 0, time.UTC)
	sooner := time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)
	first := repo.addTask(&models.Task{Name: "Brigada tardía", NeededAssistants: 1, Deadline: &later, Status: models.TaskStatusOpen})
	second := repo.addTask(&models.Task{Name: "Brigada próxima", NeededAssistants: 1, Deadline: &sooner, Status: models.TaskStatusOpen})
	unscheduled := repo.addTask(&models.Task{Name: "Brigada sin fecha", NeededAssistants: 1, Status: models.TaskStatusOpen})
	repo.addTask(&models.Task{Name: "Brigada terminada", NeededAssistants: 1, Completed: true, Status: models.TaskStatusCompleted})

	open, err := service.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 3)

	// Soonest deadline first; tasks without a deadline come last.
	assert.Equal(t, second.ID, open[0].ID)
	assert.Equal(t, first.ID, open[1].ID)
	assert.Equal(t, unscheduled.ID, open[2].ID)
}

func TestTaskService_Delete(t *testing.T) {
	ctx := context.Background()
	repo, _, service := newTaskFixture(t)
	approvedVolunteer(repo, "vol-1")
	task := repo.addTask(&models.Task{
		Name:             "Brigada de salud",
		Description:      "Apoyo en módulo de salud comunitaria durante la jornada",
		NeededAssistants: 2,
		Status:           models.TaskStatusOpen,
	})
	repo.addAssignment(task.ID, "vol-1")

	require.NoError(t, service.Delete(ctx, task.ID, "admin-1"))

	_, err := service.GetByID(ctx, task.ID, "admin-1")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// The volunteer's only assignment was removed, so a selected=false
	// outbox entry returns them to the pool.
	entries := repo.outboxFor("vol-1")
	require.Len(t, entries, 1)
}
