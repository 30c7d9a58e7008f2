package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
)

// fakeRepository is an in-memory repositories.Repository used across the
// service tests. Transactions run the callback against the same store, which
// is enough because the tests assert end state, not rollback behavior.
type fakeRepository struct {
	mu sync.Mutex

	tasks        map[uint]*models.Task
	nextTaskID   uint
	assignments  []*models.TaskAssignment
	volunteers   map[string]*models.Volunteer
	outbox       []*models.OutboxEntry
	nextOutboxID uint
	users        map[string]*models.User
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		tasks:      make(map[uint]*models.Task),
		volunteers: make(map[string]*models.Volunteer),
		users:      make(map[string]*models.User),
	}
}

func (f *fakeRepository) addTask(task *models.Task) *models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.ID == 0 {
		f.nextTaskID++
		task.ID = f.nextTaskID
	}
	f.tasks[task.ID] = task
	return task
}

func (f *fakeRepository) addVolunteer(v *models.Volunteer) *models.Volunteer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volunteers[v.ID] = v
	return v
}

func (f *fakeRepository) addAssignment(taskID uint, volunteerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignments = append(f.assignments, &models.TaskAssignment{
		TaskID:      taskID,
		VolunteerID: volunteerID,
	})
}

// outboxFor returns the selected-flag outbox payloads written for a volunteer,
// in insertion order.
func (f *fakeRepository) outboxFor(volunteerID string) []*models.OutboxEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.OutboxEntry
	for _, entry := range f.outbox {
		if entry.AggregateID == volunteerID {
			out = append(out, entry)
		}
	}
	return out
}

// ===== Repository =====

func (f *fakeRepository) Volunteer() repositories.VolunteerRepository   { return (*fakeVolunteerRepo)(f) }
func (f *fakeRepository) Task() repositories.TaskRepository             { return (*fakeTaskRepo)(f) }
func (f *fakeRepository) Assignment() repositories.AssignmentRepository { return (*fakeAssignmentRepo)(f) }
func (f *fakeRepository) Outbox() repositories.OutboxRepository         { return (*fakeOutboxRepo)(f) }
func (f *fakeRepository) User() repositories.UserRepository             { return (*fakeUserRepo)(f) }

func (f *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}

func (f *fakeRepository) Ping(ctx context.Context) error { return nil }
func (f *fakeRepository) Close() error                   { return nil }

// ===== TaskRepository =====

type fakeTaskRepo fakeRepository

func (f *fakeTaskRepo) Create(ctx context.Context, tx *gorm.DB, task *models.Task) error {
	(*fakeRepository)(f).addTask(task)
	return nil
}

func (f *fakeTaskRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Task, error) {
	return f.GetByID(ctx, tx, id)
}

func (f *fakeTaskRepo) Update(ctx context.Context, tx *gorm.DB, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.ID]; !ok {
		return repositories.ErrNotFound
	}
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeTaskRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return repositories.ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "name":
			task.Name = value.(string)
		case "description":
			task.Description = value.(string)
		case "deadline":
			switch v := value.(type) {
			case time.Time:
				task.Deadline = &v
			case *time.Time:
				task.Deadline = v
			}
		case "completed":
			task.Completed = value.(bool)
		case "status":
			task.Status = value.(models.TaskStatus)
		}
	}
	return nil
}

func (f *fakeTaskRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.TaskFilters) ([]*models.Task, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Task
	for _, task := range f.tasks {
		if filters.Completed != nil && task.Completed != *filters.Completed {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeTaskRepo) ListOpen(ctx context.Context, tx *gorm.DB) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Task
	for _, task := range f.tasks {
		if !task.Completed {
			out = append(out, task)
		}
	}
	// Deadline ascending with nil deadlines last, matching the SQL ordering.
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Deadline, out[j].Deadline
		switch {
		case di == nil && dj == nil:
			return out[i].ID < out[j].ID
		case di == nil:
			return false
		case dj == nil:
			return true
		case di.Equal(*dj):
			return out[i].ID < out[j].ID
		default:
			return di.Before(*dj)
		}
	})
	return out, nil
}

func (f *fakeTaskRepo) ListByDeadlineDate(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Task
	for _, task := range f.tasks {
		if task.Deadline == nil {
			continue
		}
		if !task.Deadline.Before(from) && task.Deadline.Before(to) {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskRepo) ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[id]
	return ok, nil
}

func (f *fakeTaskRepo) GetStats(ctx context.Context, tx *gorm.DB) (*repositories.TaskStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repositories.TaskStats{}
	for _, task := range f.tasks {
		stats.Total++
		if task.Completed {
			stats.Completed++
		} else {
			stats.Open++
		}
	}
	return stats, nil
}

// ===== AssignmentRepository =====

type fakeAssignmentRepo fakeRepository

func (f *fakeAssignmentRepo) Create(ctx context.Context, tx *gorm.DB, assignment *models.TaskAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.assignments {
		if existing.TaskID == assignment.TaskID && existing.VolunteerID == assignment.VolunteerID {
			return repositories.ErrDuplicate
		}
	}
	f.assignments = append(f.assignments, assignment)
	return nil
}

func (f *fakeAssignmentRepo) Delete(ctx context.Context, tx *gorm.DB, taskID uint, volunteerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.assignments {
		if existing.TaskID == taskID && existing.VolunteerID == volunteerID {
			f.assignments = append(f.assignments[:i], f.assignments[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *fakeAssignmentRepo) DeleteByTask(ctx context.Context, tx *gorm.DB, taskID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.assignments[:0]
	for _, existing := range f.assignments {
		if existing.TaskID != taskID {
			kept = append(kept, existing)
		}
	}
	f.assignments = kept
	return nil
}

func (f *fakeAssignmentRepo) GetByTask(ctx context.Context, tx *gorm.DB, taskID uint) ([]*models.TaskAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TaskAssignment
	for _, existing := range f.assignments {
		if existing.TaskID == taskID {
			out = append(out, existing)
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) GetByVolunteer(ctx context.Context, tx *gorm.DB, volunteerID string) ([]*models.TaskAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TaskAssignment
	for _, existing := range f.assignments {
		if existing.VolunteerID == volunteerID {
			out = append(out, existing)
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) CountByTask(ctx context.Context, tx *gorm.DB, taskID uint) (int64, error) {
	assignments, _ := f.GetByTask(ctx, tx, taskID)
	return int64(len(assignments)), nil
}

// CountByVolunteer counts assignments to open tasks only, matching the SQL
// join that drives the selected flag.
func (f *fakeAssignmentRepo) CountByVolunteer(ctx context.Context, tx *gorm.DB, volunteerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, existing := range f.assignments {
		if existing.VolunteerID != volunteerID {
			continue
		}
		task, ok := f.tasks[existing.TaskID]
		if ok && !task.Completed {
			count++
		}
	}
	return count, nil
}

func (f *fakeAssignmentRepo) Exists(ctx context.Context, tx *gorm.DB, taskID uint, volunteerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.assignments {
		if existing.TaskID == taskID && existing.VolunteerID == volunteerID {
			return true, nil
		}
	}
	return false, nil
}

// ===== VolunteerRepository =====

type fakeVolunteerRepo fakeRepository

func (f *fakeVolunteerRepo) Create(ctx context.Context, tx *gorm.DB, volunteer *models.Volunteer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.volunteers[volunteer.ID]; ok {
		return repositories.ErrDuplicate
	}
	f.volunteers[volunteer.ID] = volunteer
	return nil
}

func (f *fakeVolunteerRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Volunteer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	volunteer, ok := f.volunteers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *volunteer
	return &copied, nil
}

func (f *fakeVolunteerRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.Volunteer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Volunteer
	for _, id := range ids {
		if volunteer, ok := f.volunteers[id]; ok {
			copied := *volunteer
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeVolunteerRepo) Update(ctx context.Context, tx *gorm.DB, volunteer *models.Volunteer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.volunteers[volunteer.ID]; !ok {
		return repositories.ErrNotFound
	}
	f.volunteers[volunteer.ID] = volunteer
	return nil
}

func (f *fakeVolunteerRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.volunteers[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.volunteers, id)
	return nil
}

func (f *fakeVolunteerRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.VolunteerFilters) ([]*models.Volunteer, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Volunteer
	for _, volunteer := range f.volunteers {
		if filters.Selected != nil && volunteer.Selected != *filters.Selected {
			continue
		}
		if filters.State != nil && volunteer.State != *filters.State {
			continue
		}
		if filters.Query != "" && !strings.Contains(strings.ToLower(volunteer.FullName), strings.ToLower(filters.Query)) {
			continue
		}
		out = append(out, volunteer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeVolunteerRepo) ListAvailable(ctx context.Context, tx *gorm.DB) ([]*models.Volunteer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Volunteer
	for _, volunteer := range f.volunteers {
		if volunteer.State == models.StateAprobado && !volunteer.Selected {
			out = append(out, volunteer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeVolunteerRepo) SetSelected(ctx context.Context, tx *gorm.DB, id string, selected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	volunteer, ok := f.volunteers[id]
	if !ok {
		return repositories.ErrNotFound
	}
	volunteer.Selected = selected
	return nil
}

func (f *fakeVolunteerRepo) SetState(ctx context.Context, tx *gorm.DB, id string, state models.VolunteerState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	volunteer, ok := f.volunteers[id]
	if !ok {
		return repositories.ErrNotFound
	}
	volunteer.State = state
	return nil
}

func (f *fakeVolunteerRepo) UpdateDocuments(ctx context.Context, tx *gorm.DB, id string, documents []models.DocumentRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.volunteers[id]; !ok {
		return repositories.ErrNotFound
	}
	return nil
}

func (f *fakeVolunteerRepo) ExistsByID(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.volunteers[id]
	return ok, nil
}

func (f *fakeVolunteerRepo) GetStats(ctx context.Context, tx *gorm.DB) (*repositories.VolunteerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repositories.VolunteerStats{}
	for _, volunteer := range f.volunteers {
		stats.Total++
		if volunteer.Selected {
			stats.Selected++
		}
		switch volunteer.State {
		case models.StateAprobado:
			stats.Approved++
		case models.StatePendiente:
			stats.Pending++
		}
	}
	return stats, nil
}

// ===== OutboxRepository =====

type fakeOutboxRepo fakeRepository

func (f *fakeOutboxRepo) Create(ctx context.Context, tx *gorm.DB, entry *models.OutboxEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextOutboxID++
	entry.ID = f.nextOutboxID
	if entry.Status == "" {
		entry.Status = models.OutboxPending
	}
	f.outbox = append(f.outbox, entry)
	return nil
}

func (f *fakeOutboxRepo) ListPending(ctx context.Context, tx *gorm.DB, limit int) ([]*models.OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.OutboxEntry
	for _, entry := range f.outbox {
		if entry.Status == models.OutboxPending {
			out = append(out, entry)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutboxRepo) MarkPublished(ctx context.Context, tx *gorm.DB, id uint) error {
	return f.setStatus(id, models.OutboxPublished, nil)
}

func (f *fakeOutboxRepo) RecordAttempt(ctx context.Context, tx *gorm.DB, id uint, reason string) error {
	return f.setStatus(id, models.OutboxPending, &reason)
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uint, reason string) error {
	return f.setStatus(id, models.OutboxFailed, &reason)
}

func (f *fakeOutboxRepo) setStatus(id uint, status models.OutboxStatus, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.outbox {
		if entry.ID == id {
			entry.Status = status
			if reason != nil {
				entry.Attempts++
				entry.LastError = reason
			}
			return nil
		}
	}
	return repositories.ErrNotFound
}

// ===== UserRepository =====

type fakeUserRepo fakeRepository

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.User
	for _, user := range f.users {
		out = append(out, user)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUserRepo) Search(ctx context.Context, query string, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return f.List(ctx, filters)
}

func (f *fakeUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(context.Background(), email)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	return user.Role == role, nil
}

// failingPublisher always errors, for relay retry tests.
type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(ctx context.Context, topic string, event events.Event) error {
	p.calls++
	return fmt.Errorf("publish failed")
}

func (p *failingPublisher) Close() error { return nil }
