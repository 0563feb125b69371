package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tutorflow/backend/internal/domain"
)

// BookingRepository owns booking records. Mutations happen only inside
// InPartyTransaction, which serializes against every other transaction that
// touches either party's schedule.
type BookingRepository interface {
	Booking(ctx context.Context, id uuid.UUID) (domain.Booking, error)

	// ActiveBookingsTouching returns bookings where partyID is tutor or
	// student, status is pending or confirmed, and the interval intersects
	// [windowStart, windowEnd), ordered by start time.
	ActiveBookingsTouching(ctx context.Context, partyID string, windowStart, windowEnd time.Time) ([]domain.Booking, error)

	// InPartyTransaction runs fn holding an exclusive boundary over both
	// parties' schedules. Two overlapping creates for the same tutor (or the
	// same counter-party) can never both commit.
	InPartyTransaction(ctx context.Context, tutorID, studentID string, fn func(ctx context.Context, tx BookingTx) error) error

	// CompleteFinished persists the derived completed status for confirmed
	// bookings that ended before now. Reporting only; reads derive it anyway.
	CompleteFinished(ctx context.Context, now time.Time) (int64, error)
}

type BookingTx interface {
	Insert(ctx context.Context, b domain.Booking) (domain.Booking, error)
	Booking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	ActiveBookingsTouching(ctx context.Context, partyID string, windowStart, windowEnd time.Time) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus, meetingLink string) (domain.Booking, error)
}
