package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"tutorflow/backend/internal/domain"
	"tutorflow/backend/internal/store"
)

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

func (r *BookingRepo) Booking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return selectBooking(ctx, r.db, id)
}

func (r *BookingRepo) ActiveBookingsTouching(ctx context.Context, partyID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	return activeBookingsTouching(ctx, r.db, partyID, windowStart, windowEnd)
}

// InPartyTransaction takes an advisory lock on each party's schedule before
// running fn. Locks are taken in sorted order so two transactions over the
// same pair cannot deadlock.
func (r *BookingRepo) InPartyTransaction(ctx context.Context, tutorID, studentID string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockPartySchedules(ctx, tx, tutorID, studentID); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
	return mapPgError(err)
}

func (r *BookingRepo) CompleteFinished(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*domain.Booking)(nil)).
		Set("status = ?", domain.BookingStatusCompleted).
		Set("updated_at = ?", time.Now().UTC()).
		Where("status = ?", domain.BookingStatusConfirmed).
		Where("end_time < ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func lockPartySchedules(ctx context.Context, tx bun.Tx, partyIDs ...string) error {
	seen := make(map[string]struct{}, len(partyIDs))
	ids := make([]string, 0, len(partyIDs))
	for _, id := range partyIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", id).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

type bookingTx struct {
	tx bun.Tx
}

func (t bookingTx) Insert(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Booking{}, mapPgError(err)
	}
	b.ID = m.ID
	b.CreatedAt = m.CreatedAt
	b.UpdatedAt = m.UpdatedAt
	return b, nil
}

func (t bookingTx) Booking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return selectBooking(ctx, t.tx, id)
}

func (t bookingTx) ActiveBookingsTouching(ctx context.Context, partyID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	return activeBookingsTouching(ctx, t.tx, partyID, windowStart, windowEnd)
}

func (t bookingTx) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus, meetingLink string) (domain.Booking, error) {
	q := t.tx.NewUpdate().
		Model((*domain.Booking)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)
	if meetingLink != "" {
		q = q.Set("meeting_link = ?", meetingLink)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return domain.Booking{}, mapPgError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return selectBooking(ctx, t.tx, id)
}

func selectBooking(ctx context.Context, db bun.IDB, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := db.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, store.ErrNotFound
		}
		return domain.Booking{}, err
	}
	return b, nil
}

func activeBookingsTouching(ctx context.Context, db bun.IDB, partyID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := db.NewSelect().
		Model(&rows).
		Where("(tutor_id = ? OR student_id = ?)", partyID, partyID).
		Where("status IN (?)", bun.In([]domain.BookingStatus{domain.BookingStatusPending, domain.BookingStatusConfirmed})).
		Where("start_time < ?", windowEnd.UTC()).
		Where("end_time > ?", windowStart.UTC()).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mapPgError translates driver errors into store sentinels: the overlap
// exclusion constraints become ErrConflict, serialization failures and
// deadlocks become ErrContention.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23P01":
		if strings.HasSuffix(pgErr.ConstraintName, "_no_overlap") {
			return store.ErrConflict
		}
	case "40001", "40P01":
		return store.ErrContention
	}
	return err
}
