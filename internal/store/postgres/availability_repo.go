package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"tutorflow/backend/internal/domain"
	"tutorflow/backend/internal/store"
)

type AvailabilityRepo struct {
	db *bun.DB
}

func NewAvailabilityRepo(db *bun.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

func (r *AvailabilityRepo) UpsertRecurring(ctx context.Context, rule domain.RecurringRule) (domain.RecurringRule, error) {
	m := rule
	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (tutor_id, weekday) DO UPDATE").
		Set("start_minute = EXCLUDED.start_minute").
		Set("end_minute = EXCLUDED.end_minute").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return domain.RecurringRule{}, err
	}
	return m, nil
}

func (r *AvailabilityRepo) RecurringForWeekday(ctx context.Context, tutorID string, weekday int) (*domain.RecurringRule, error) {
	var rule domain.RecurringRule
	err := r.db.NewSelect().
		Model(&rule).
		Where("tutor_id = ?", tutorID).
		Where("weekday = ?", weekday).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *AvailabilityRepo) UpsertOverride(ctx context.Context, ov domain.Override) (domain.Override, error) {
	m := ov
	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (tutor_id, date) DO UPDATE").
		Set("windows = EXCLUDED.windows").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return domain.Override{}, err
	}
	return m, nil
}

func (r *AvailabilityRepo) OverrideForDate(ctx context.Context, tutorID string, date time.Time) (*domain.Override, error) {
	var ov domain.Override
	err := r.db.NewSelect().
		Model(&ov).
		Where("tutor_id = ?", tutorID).
		Where("date = ?", dateOnly(date)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ov, nil
}

func (r *AvailabilityRepo) DeleteOverride(ctx context.Context, tutorID string, date time.Time) error {
	res, err := r.db.NewDelete().
		Model((*domain.Override)(nil)).
		Where("tutor_id = ?", tutorID).
		Where("date = ?", dateOnly(date)).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
