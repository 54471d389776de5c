// memory based implementation for testing and small deployments
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/cyp0633/doseplan/schedule"
	"github.com/cyp0633/doseplan/schedule/storage"
)

// Store implements storage.Storage interface using in-memory maps
type Store struct {
	mu        sync.RWMutex
	habits    map[string]schedule.Habits   // key: patientID
	schedules map[string]*storage.Schedule // key: patientID/scheduleID
	taken     map[string]int               // key: patientID/scheduleID
}

var _ storage.Storage = (*Store)(nil)

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		habits:    make(map[string]schedule.Habits),
		schedules: make(map[string]*storage.Schedule),
		taken:     make(map[string]int),
	}
}

func (s *Store) scheduleKey(patientID, scheduleID string) string {
	return fmt.Sprintf("%s/%s", patientID, scheduleID)
}

// Habit operations

// PutHabits records or replaces the daily routine of a patient.
func (s *Store) PutHabits(_ context.Context, patientID string, habits schedule.Habits) error {
	if patientID == "" {
		return &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "patient ID is required",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.habits[patientID] = habits
	return nil
}

// GetHabits returns nil without error for patients that never recorded habits.
func (s *Store) GetHabits(_ context.Context, patientID string) (*schedule.Habits, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.habits[patientID]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

// Schedule operations

func (s *Store) CreateSchedule(_ context.Context, sched *storage.Schedule) error {
	if sched == nil || sched.ID == "" || sched.PatientID == "" {
		return &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "schedule and patient IDs are required",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.scheduleKey(sched.PatientID, sched.ID)
	if _, exists := s.schedules[key]; exists {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "schedule already exists",
		}
	}

	s.schedules[key] = cloneSchedule(sched)
	return nil
}

func (s *Store) GetSchedule(_ context.Context, patientID, scheduleID string) (*storage.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sched, ok := s.schedules[s.scheduleKey(patientID, scheduleID)]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "schedule not found",
		}
	}

	return cloneSchedule(sched), nil
}

// ListSchedules returns the patient's schedules ordered by ID.
func (s *Store) ListSchedules(_ context.Context, patientID string) ([]*storage.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.Schedule
	for _, sched := range s.schedules {
		if sched.PatientID == patientID {
			result = append(result, cloneSchedule(sched))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

// Dose bookkeeping

// RecordTaken adds n doses to the taken count of an existing schedule and returns
// the new total.
func (s *Store) RecordTaken(_ context.Context, patientID, scheduleID string, n int) (int, error) {
	if n < 0 {
		return 0, &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "taken count cannot decrease",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.scheduleKey(patientID, scheduleID)
	if _, ok := s.schedules[key]; !ok {
		return 0, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "schedule not found",
		}
	}

	s.taken[key] += n
	return s.taken[key], nil
}

func (s *Store) CountTaken(_ context.Context, patientID, scheduleID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := s.scheduleKey(patientID, scheduleID)
	if _, ok := s.schedules[key]; !ok {
		return 0, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "schedule not found",
		}
	}

	return s.taken[key], nil
}

func cloneSchedule(sched *storage.Schedule) *storage.Schedule {
	c := *sched
	if sched.Rule.Times != nil {
		c.Rule.Times = make([]schedule.TimeSpec, len(sched.Rule.Times))
		for i, spec := range sched.Rule.Times {
			c.Rule.Times[i] = cloneSpec(spec)
		}
	}
	c.Rule.Until = cloneUntil(sched.Rule.Until)
	if ex := sched.Rule.Frequency.Exclude; ex != nil {
		c.Rule.Frequency.Exclude = &schedule.Exclusion{
			Repeat:  ex.Repeat,
			Exclude: slices.Clone(ex.Exclude),
		}
	}
	return &c
}

// cloneSpec copies pointer variants so callers never share them with the store.
func cloneSpec(spec schedule.TimeSpec) schedule.TimeSpec {
	switch s := spec.(type) {
	case *schedule.Unspecified:
		if s != nil {
			return &schedule.Unspecified{}
		}
	case *schedule.Exact:
		if s != nil {
			v := *s
			return &v
		}
	case *schedule.HabitEvent:
		if s != nil {
			v := *s
			return &v
		}
	}
	return spec
}

func cloneUntil(until schedule.Until) schedule.Until {
	switch u := until.(type) {
	case *schedule.Forever:
		if u != nil {
			return &schedule.Forever{}
		}
	case *schedule.StopAfter:
		if u != nil {
			v := *u
			return &v
		}
	case *schedule.StopOn:
		if u != nil {
			v := *u
			return &v
		}
	}
	return until
}
