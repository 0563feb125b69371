package availability

import (
	"context"
	"errors"
	"time"

	"tutorflow/backend/internal/domain"
	"tutorflow/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Service owns a tutor's declared availability: the weekly recurring pattern
// plus date-specific overrides that replace it outright.
type Service struct {
	repo store.AvailabilityRepository
}

func NewService(repo store.AvailabilityRepository) *Service {
	return &Service{repo: repo}
}

type SetRecurringInput struct {
	TutorID   string
	Weekday   int
	StartTime string // "HH:MM", UTC
	EndTime   string
}

// SetRecurring replaces the tutor's rule for the given weekday.
func (s *Service) SetRecurring(ctx context.Context, in SetRecurringInput) (domain.RecurringRule, error) {
	if in.TutorID == "" {
		return domain.RecurringRule{}, validationError("tutor_id is required")
	}
	startMinute, err := domain.ParseTimeOfDay(in.StartTime)
	if err != nil {
		return domain.RecurringRule{}, err
	}
	endMinute, err := domain.ParseTimeOfDay(in.EndTime)
	if err != nil {
		return domain.RecurringRule{}, err
	}
	rule, err := domain.NewRecurringRule(in.TutorID, in.Weekday, startMinute, endMinute)
	if err != nil {
		return domain.RecurringRule{}, err
	}
	return s.repo.UpsertRecurring(ctx, rule)
}

// SetOverride replaces any existing override for the date. Windows must fall
// on the override's own UTC date and be pairwise non-overlapping.
func (s *Service) SetOverride(ctx context.Context, tutorID string, date time.Time, windows []domain.Interval) (domain.Override, error) {
	if tutorID == "" {
		return domain.Override{}, validationError("tutor_id is required")
	}
	ov, err := domain.NewOverride(tutorID, date, windows)
	if err != nil {
		return domain.Override{}, err
	}
	day := domain.DayRange(ov.Date)
	for _, w := range ov.Windows {
		if w.Start.Before(day.Start) || w.End.After(day.End) {
			return domain.Override{}, validationError("override windows must fall on the override date")
		}
	}
	return s.repo.UpsertOverride(ctx, ov)
}

// ClearOverride reverts the date to the recurring pattern.
func (s *Service) ClearOverride(ctx context.Context, tutorID string, date time.Time) error {
	if tutorID == "" {
		return validationError("tutor_id is required")
	}
	return s.repo.DeleteOverride(ctx, tutorID, date)
}

// WindowsFor answers what the tutor offers on a date: the override's windows
// when one exists, otherwise the recurring rule projected onto the date,
// otherwise nothing. Read-only.
func (s *Service) WindowsFor(ctx context.Context, tutorID string, date time.Time) ([]domain.Interval, error) {
	if tutorID == "" {
		return nil, validationError("tutor_id is required")
	}
	date = date.UTC()

	ov, err := s.repo.OverrideForDate(ctx, tutorID, date)
	if err != nil {
		return nil, err
	}
	if ov != nil {
		return append([]domain.Interval(nil), ov.Windows...), nil
	}

	rule, err := s.repo.RecurringForWeekday(ctx, tutorID, int(date.Weekday()))
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, nil
	}
	w, ok := rule.WindowOn(date)
	if !ok {
		return nil, nil
	}
	return []domain.Interval{w}, nil
}

// IsValidationError reports whether err is an input problem rather than a
// storage failure.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	var iErr *domain.InvalidIntervalError
	return errors.As(err, &vErr) || errors.As(err, &iErr)
}
