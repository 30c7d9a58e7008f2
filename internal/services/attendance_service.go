package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayudamx/volunteer-service/internal/models"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type attendanceService struct {
	repo     repositories.Repository
	db       *gorm.DB
	logger   *slog.Logger
	location *time.Location
}

func NewAttendanceService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, location *time.Location) AttendanceService {
	if location == nil {
		location = time.UTC
	}
	return &attendanceService{
		repo:     repo,
		db:       db,
		logger:   logger,
		location: location,
	}
}

// ===== PROJECTION =====

// ParticipationFor derives the day's participation from task deadlines. A
// volunteer participates on a date iff they are assigned to a task whose
// deadline falls on that calendar day. The result is the union of the day's
// assignment sets, one record per volunteer.
func (s *attendanceService) ParticipationFor(ctx context.Context, date time.Time) (*ParticipationResponse, error) {
	records, err := s.project(ctx, date, "")
	if err != nil {
		return nil, err
	}
	return &ParticipationResponse{
		Date:    s.dayKey(date),
		Records: records,
		Total:   len(records),
	}, nil
}

func (s *attendanceService) ParticipationForVolunteer(ctx context.Context, volunteerID string, date time.Time) (*ParticipationResponse, error) {
	records, err := s.project(ctx, date, volunteerID)
	if err != nil {
		return nil, err
	}
	return &ParticipationResponse{
		Date:    s.dayKey(date),
		Records: records,
		Total:   len(records),
	}, nil
}

// ===== EXPORT =====

func (s *attendanceService) ExportRoster(ctx context.Context, date time.Time) ([]byte, error) {
	participation, err := s.ParticipationFor(ctx, date)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Asistencia"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Voluntario", "Tarea", "Fecha"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	for row, record := range participation.Records {
		values := []interface{}{record.VolunteerName, record.TaskName, record.Date.Format("2006-01-02")}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Roster exported", "date", participation.Date, "rows", participation.Total)
	return buf.Bytes(), nil
}

// ===== HELPERS =====

func (s *attendanceService) project(ctx context.Context, date time.Time, volunteerID string) ([]*models.AttendanceRecord, error) {
	from, to := s.dayBounds(date)

	tasks, err := s.repo.Task().ListByDeadlineDate(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}

	type dayTask struct {
		task        *models.Task
		assignments []*models.TaskAssignment
	}

	dayTasks := make([]dayTask, 0, len(tasks))
	seen := make(map[string]struct{})
	var ids []string
	for _, task := range tasks {
		assignments, err := s.repo.Assignment().GetByTask(ctx, s.db, task.ID)
		if err != nil {
			return nil, err
		}
		dayTasks = append(dayTasks, dayTask{task: task, assignments: assignments})
		for _, assignment := range assignments {
			if volunteerID != "" && assignment.VolunteerID != volunteerID {
				continue
			}
			if _, ok := seen[assignment.VolunteerID]; !ok {
				seen[assignment.VolunteerID] = struct{}{}
				ids = append(ids, assignment.VolunteerID)
			}
		}
	}

	names, err := s.resolveNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	// One record per volunteer even when several of the day's tasks share
	// them; the first task in deadline order claims the row.
	records := make([]*models.AttendanceRecord, 0, len(ids))
	emitted := make(map[string]struct{}, len(ids))
	for _, dt := range dayTasks {
		for _, assignment := range dt.assignments {
			if volunteerID != "" && assignment.VolunteerID != volunteerID {
				continue
			}
			if _, ok := emitted[assignment.VolunteerID]; ok {
				continue
			}
			emitted[assignment.VolunteerID] = struct{}{}
			name, ok := names[assignment.VolunteerID]
			if !ok {
				name = models.UnknownName
			}
			records = append(records, &models.AttendanceRecord{
				VolunteerID:   assignment.VolunteerID,
				VolunteerName: name,
				TaskID:        dt.task.ID,
				TaskName:      dt.task.Name,
				Date:          *dt.task.Deadline,
			})
		}
	}

	return records, nil
}

// resolveNames maps the unioned volunteer ID set to display names.
func (s *attendanceService) resolveNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	volunteers, err := s.repo.Volunteer().GetByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for _, volunteer := range volunteers {
		names[volunteer.ID] = volunteer.DisplayName()
	}
	return names, nil
}

// dayBounds returns the half-open [from, to) range covering the calendar day
// in the service timezone.
func (s *attendanceService) dayBounds(date time.Time) (time.Time, time.Time) {
	local := date.In(s.location)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	return from, from.AddDate(0, 0, 1)
}

func (s *attendanceService) dayKey(date time.Time) string {
	return date.In(s.location).Format("2006-01-02")
}
