package storage

import (
	"context"

	"github.com/cyp0633/doseplan/schedule"
	"github.com/stretchr/testify/mock"
)

// MockStorage implements the Storage interface for testing
type MockStorage struct {
	mock.Mock
}

// GetHabits implements the Storage interface
func (m *MockStorage) GetHabits(ctx context.Context, patientID string) (*schedule.Habits, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedule.Habits), args.Error(1)
}

// GetSchedule implements the Storage interface
func (m *MockStorage) GetSchedule(ctx context.Context, patientID, scheduleID string) (*Schedule, error) {
	args := m.Called(ctx, patientID, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	sched := args.Get(0).(*Schedule)
	if sched == nil {
		return nil, args.Error(1)
	}
	return sched, args.Error(1)
}

// ListSchedules implements the Storage interface
func (m *MockStorage) ListSchedules(ctx context.Context, patientID string) ([]*Schedule, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Schedule), args.Error(1)
}

// CountTaken implements the Storage interface
func (m *MockStorage) CountTaken(ctx context.Context, patientID, scheduleID string) (int, error) {
	args := m.Called(ctx, patientID, scheduleID)
	return args.Int(0), args.Error(1)
}

// --- Helper methods for creating test data ---

// NewMockSchedule creates a daily test Schedule anchored at cycleStart
func NewMockSchedule(patientID, id, cycleStart string, times ...schedule.TimeSpec) *Schedule {
	return &Schedule{
		ID:        id,
		PatientID: patientID,
		Name:      id,
		Rule: schedule.RecurrenceRule{
			Regularly:  true,
			CycleStart: schedule.MustParseDate(cycleStart),
			Frequency:  schedule.Frequency{N: 1, Unit: schedule.Day},
			Times:      times,
			Until:      schedule.Forever{},
		},
	}
}
