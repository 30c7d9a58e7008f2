package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAssignmentFixture(t *testing.T) (*fakeRepository, AssignmentService) {
	t.Helper()
	repo := newFakeRepository()
	logger := testLogger()
	service := NewAssignmentService(repo, nil, logger, validator.New(), events.NewMockEventPublisher(logger))
	return repo, service
}

func approvedVolunteer(repo *fakeRepository, id string) *models.Volunteer {
	return repo.addVolunteer(&models.Volunteer{
		ID:       id,
		FullName: "Voluntario " + id,
		State:    models.StateAprobado,
	})
}

func TestAssignmentService_Assign(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns and writes selected outbox entry", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		task := repo.addTask(&models.Task{Name: "Reparto de despensas", NeededAssistants: 3, Status: models.TaskStatusOpen})
		approvedVolunteer(repo, "vol-1")

		resp, err := service.Assign(ctx, task.ID, []string{"vol-1"}, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, 1, resp.AssignedCount)
		assert.Equal(t, 2, resp.SpotsLeft)

		entries := repo.outboxFor("vol-1")
		require.Len(t, entries, 1)
		assert.Equal(t, events.EventSelectedChanged, entries[0].EventType)

		var data events.SelectedChangedData
		require.NoError(t, json.Unmarshal(entries[0].Payload, &data))
		assert.True(t, data.Selected)
	})

	t.Run("repeat assign is a no-op and consumes no capacity", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		task := repo.addTask(&models.Task{Name: "Jornada de limpieza", NeededAssistants: 1, Status: models.TaskStatusOpen})
		approvedVolunteer(repo, "vol-1")

		_, err := service.Assign(ctx, task.ID, []string{"vol-1"}, "admin-1")
		require.NoError(t, err)

		// The task is full, but re-assigning the same volunteer must not
		// trip the capacity check.
		resp, err := service.Assign(ctx, task.ID, []string{"vol-1"}, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, 1, resp.AssignedCount)
		assert.Len(t, repo.outboxFor("vol-1"), 1)
	})

	t.Run("rejects assignment beyond capacity", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		task := repo.addTask(&models.Task{Name: "Acopio de víveres", NeededAssistants: 1, Status: models.TaskStatusOpen})
		approvedVolunteer(repo, "vol-1")
		approvedVolunteer(repo, "vol-2")

		_, err := service.Assign(ctx, task.ID, []string{"vol-1", "vol-2"}, "admin-1")
		require.Error(t, err)

		var capErr *CapacityError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, 1, capErr.Capacity)
		assert.Equal(t, 2, capErr.Requested)
		assert.ErrorIs(t, err, ErrCapacityExceeded)

		// Nothing was assigned.
		count, _ := repo.Assignment().CountByTask(ctx, nil, task.ID)
		assert.Zero(t, count)
	})

	t.Run("rejects unapproved volunteers", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		task := repo.addTask(&models.Task{Name: "Brigada de salud", NeededAssistants: 2, Status: models.TaskStatusOpen})
		repo.addVolunteer(&models.Volunteer{ID: "vol-1", State: models.StatePendiente})

		_, err := service.Assign(ctx, task.ID, []string{"vol-1"}, "admin-1")
		require.Error(t, err)

		var ruleErr *BusinessRuleError
		require.ErrorAs(t, err, &ruleErr)
		assert.Equal(t, "volunteer_not_approved", ruleErr.Rule)
	})

	t.Run("rejects completed task", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		task := repo.addTask(&models.Task{Name: "Colecta terminada", NeededAssistants: 2, Completed: true, Status: models.TaskStatusCompleted})
		approvedVolunteer(repo, "vol-1")

		_, err := service.Assign(ctx, task.ID, []string{"vol-1"}, "admin-1")
		assert.ErrorIs(t, err, ErrTaskCompleted)
	})

	t.Run("rejects empty volunteer list", func(t *testing.T) {
		_, service := newAssignmentFixture(t)

		_, err := service.Assign(ctx, 1, nil, "admin-1")
		var ruleErr *BusinessRuleError
		require.ErrorAs(t, err, &ruleErr)
		assert.Equal(t, "empty_assignment", ruleErr.Rule)
	})

	t.Run("unknown task", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		approvedVolunteer(repo, "vol-1")

		_, err := service.Assign(ctx, 99, []string{"vol-1"}, "admin-1")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestAssignmentService_Unassign(t *testing.T) {
	ctx := context.Background()

	t.Run("last assignment clears the selected flag", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		task := repo.addTask(&models.Task{Name: "Reparto de despensas", NeededAssistants: 2, Status: models.TaskStatusOpen})
		approvedVolunteer(repo, "vol-1")
		repo.addAssignment(task.ID, "vol-1")

		resp, err := service.Unassign(ctx, task.ID, []string{"vol-1"}, "admin-1")
		require.NoError(t, err)
		assert.Zero(t, resp.AssignedCount)

		entries := repo.outboxFor("vol-1")
		require.Len(t, entries, 1)

		var data events.SelectedChangedData
		require.NoError(t, json.Unmarshal(entries[0].Payload, &data))
		assert.False(t, data.Selected)
	})

	t.Run("volunteer still assigned elsewhere stays selected", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		first := repo.addTask(&models.Task{Name: "Primera brigada", NeededAssistants: 2, Status: models.TaskStatusOpen})
		second := repo.addTask(&models.Task{Name: "Segunda brigada", NeededAssistants: 2, Status: models.TaskStatusOpen})
		approvedVolunteer(repo, "vol-1")
		repo.addAssignment(first.ID, "vol-1")
		repo.addAssignment(second.ID, "vol-1")

		_, err := service.Unassign(ctx, first.ID, []string{"vol-1"}, "admin-1")
		require.NoError(t, err)

		// No selected=false entry while the other assignment remains.
		assert.Empty(t, repo.outboxFor("vol-1"))
	})

	t.Run("second unassign reports not assigned", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		task := repo.addTask(&models.Task{Name: "Reparto de despensas", NeededAssistants: 2, Status: models.TaskStatusOpen})
		approvedVolunteer(repo, "vol-1")
		repo.addAssignment(task.ID, "vol-1")

		_, err := service.Unassign(ctx, task.ID, []string{"vol-1"}, "admin-1")
		require.NoError(t, err)

		_, err = service.Unassign(ctx, task.ID, []string{"vol-1"}, "admin-1")
		assert.ErrorIs(t, err, ErrNotAssigned)

		// Only the first unassign wrote a selected change.
		assert.Len(t, repo.outboxFor("vol-1"), 1)
	})

	t.Run("never assigned volunteer yields not assigned and no outbox entry", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		task := repo.addTask(&models.Task{Name: "Brigada sin gente", NeededAssistants: 2, Status: models.TaskStatusOpen})

		_, err := service.Unassign(ctx, task.ID, []string{"vol-miss"}, "admin-1")
		assert.ErrorIs(t, err, ErrNotAssigned)
		assert.Empty(t, repo.outboxFor("vol-miss"))
	})
}

func TestAssignmentService_ReconcileOnSave(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the assignment set with the desired one", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		task := repo.addTask(&models.Task{Name: "Reparto de despensas", NeededAssistants: 2, Status: models.TaskStatusOpen})
		approvedVolunteer(repo, "vol-a")
		approvedVolunteer(repo, "vol-b")
		approvedVolunteer(repo, "vol-c")
		repo.addAssignment(task.ID, "vol-a")
		repo.addAssignment(task.ID, "vol-b")

		err := service.ReconcileOnSave(ctx, task.ID, []string{"vol-b", "vol-c"}, "admin-1")
		require.NoError(t, err)

		assignments, _ := repo.Assignment().GetByTask(ctx, nil, task.ID)
		got := make([]string, 0, len(assignments))
		for _, a := range assignments {
			got = append(got, a.VolunteerID)
		}
		assert.ElementsMatch(t, []string{"vol-b", "vol-c"}, got)

		// Removed volunteer gets selected=false, added one selected=true,
		// the untouched one has no outbox traffic.
		var removed events.SelectedChangedData
		entries := repo.outboxFor("vol-a")
		require.Len(t, entries, 1)
		require.NoError(t, json.Unmarshal(entries[0].Payload, &removed))
		assert.False(t, removed.Selected)

		var added events.SelectedChangedData
		entries = repo.outboxFor("vol-c")
		require.Len(t, entries, 1)
		require.NoError(t, json.Unmarshal(entries[0].Payload, &added))
		assert.True(t, added.Selected)

		assert.Empty(t, repo.outboxFor("vol-b"))
	})

	t.Run("rejects desired set over capacity", func(t *testing.T) {
		repo, service := newAssignmentFixture(t)
		task := repo.addTask(&models.Task{Name: "Brigada chica", NeededAssistants: 1, Status: models.TaskStatusOpen})
		approvedVolunteer(repo, "vol-a")
		approvedVolunteer(repo, "vol-b")

		err := service.ReconcileOnSave(ctx, task.ID, []string{"vol-a", "vol-b"}, "admin-1")
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})

	t.Run("rejects empty desired set", func(t *testing.T) {
		_, service := newAssignmentFixture(t)

		err := service.ReconcileOnSave(ctx, 1, nil, "admin-1")
		var ruleErr *BusinessRuleError
		require.True(t, errors.As(err, &ruleErr))
	})
}
