package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyp0633/doseplan/schedule"
)

// Storage connects the planner with wherever patients' schedules live (e.g. a
// database). It is read-only: generated events are never written back. Implementations
// should report failures as *Error.
type Storage interface {
	// GetHabits returns the daily routine of a patient. A patient without recorded
	// habits should yield (nil, nil); defaults are applied during generation.
	GetHabits(ctx context.Context, patientID string) (*schedule.Habits, error)
	// GetSchedule finds a single medication schedule of a patient.
	GetSchedule(ctx context.Context, patientID, scheduleID string) (*Schedule, error)
	// ListSchedules returns every schedule of a patient.
	ListSchedules(ctx context.Context, patientID string) ([]*Schedule, error)
	// CountTaken returns how many doses of a schedule have been recorded so far.
	CountTaken(ctx context.Context, patientID, scheduleID string) (int, error)
}

// Schedule is a named recurrence rule belonging to one patient.
type Schedule struct {
	ID        string
	PatientID string
	// Name is a human readable label, e.g. "Lisinopril 10mg".
	Name string
	Rule schedule.RecurrenceRule
}

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsErrorType reports whether err is, or wraps, a storage Error of type t.
func IsErrorType(err error, t ErrorType) bool {
	var se *Error
	return errors.As(err, &se) && se.Type == t
}

// IsNotFound reports whether err means the patient or schedule doesn't exist.
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrNotFound)
}
