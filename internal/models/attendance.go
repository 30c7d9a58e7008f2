package models

import "time"

// AttendanceRecord is a projection row, one per (task, volunteer) pair whose
// task deadline falls on the record's date. It is derived, never stored.
type AttendanceRecord struct {
	ID            string    `json:"id"`
	VolunteerID   string    `json:"volunteer_id"`
	VolunteerName string    `json:"name"`
	TaskID        uint      `json:"task_id"`
	TaskName      string    `json:"task_name"`
	Date          time.Time `json:"date"`
}
