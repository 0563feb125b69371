package store

import (
	"context"
	"time"

	"tutorflow/backend/internal/domain"
)

// AvailabilityRepository persists a tutor's recurring weekly pattern and
// per-date overrides. Upserts replace: one rule per (tutor, weekday), one
// override per (tutor, date).
type AvailabilityRepository interface {
	UpsertRecurring(ctx context.Context, rule domain.RecurringRule) (domain.RecurringRule, error)
	RecurringForWeekday(ctx context.Context, tutorID string, weekday int) (*domain.RecurringRule, error)

	UpsertOverride(ctx context.Context, ov domain.Override) (domain.Override, error)
	OverrideForDate(ctx context.Context, tutorID string, date time.Time) (*domain.Override, error)
	DeleteOverride(ctx context.Context, tutorID string, date time.Time) error
}
