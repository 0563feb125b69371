package scheduling

import (
	"context"
	"sort"
	"time"

	"tutorflow/backend/internal/domain"
)

const DefaultGranularity = time.Hour

// Slot is a discretized, fixed-duration piece of an availability window. A
// slot is disabled iff its conflict type is not none.
type Slot struct {
	Interval domain.Interval
	Disabled bool
	Conflict domain.ConflictType
}

type availabilityReader interface {
	WindowsFor(ctx context.Context, tutorID string, date time.Time) ([]domain.Interval, error)
}

type bookingReader interface {
	ActiveBookingsTouching(ctx context.Context, partyID string, windowStart, windowEnd time.Time) ([]domain.Booking, error)
}

// Engine projects availability windows and active bookings into the public
// slot list. It holds no state and never caches: a create or cancel
// invalidates any previous result instantly, so every call recomputes.
type Engine struct {
	availability availabilityReader
	bookings     bookingReader
	now          func() time.Time
}

func NewEngine(availability availabilityReader, bookings bookingReader) *Engine {
	return &Engine{
		availability: availability,
		bookings:     bookings,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ComputeSlots returns the offerable slots for a tutor on a date, labeled with
// the requesting user's view of conflicts. requestingUserID may be empty for
// anonymous callers; tutor conflicts are still reported.
func (e *Engine) ComputeSlots(ctx context.Context, tutorID, requestingUserID string, date time.Time, granularity time.Duration) ([]Slot, error) {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}

	windows, err := e.availability.WindowsFor(ctx, tutorID, date)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []Slot{}, nil
	}

	day := domain.DayRange(date)
	tutorBookings, err := e.bookings.ActiveBookingsTouching(ctx, tutorID, day.Start, day.End)
	if err != nil {
		return nil, err
	}
	var userBookings []domain.Booking
	if requestingUserID != "" {
		userBookings, err = e.bookings.ActiveBookingsTouching(ctx, requestingUserID, day.Start, day.End)
		if err != nil {
			return nil, err
		}
	}

	now := e.now()
	slots := make([]Slot, 0, 16)
	for _, w := range Discretize(windows, granularity) {
		conflict := domain.DetectConflict(w, userBookings, tutorBookings, now)
		slots = append(slots, Slot{
			Interval: w,
			Disabled: conflict != domain.ConflictNone,
			Conflict: conflict,
		})
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Interval.Start.Before(slots[j].Interval.Start)
	})
	return slots, nil
}

// Discretize cuts each window into contiguous granularity-sized intervals
// aligned to the window's own start. A trailing remainder shorter than the
// granularity is dropped; partial slots are never offered.
func Discretize(windows []domain.Interval, granularity time.Duration) []domain.Interval {
	out := make([]domain.Interval, 0, len(windows))
	for _, w := range windows {
		for t := w.Start; !t.Add(granularity).After(w.End); t = t.Add(granularity) {
			out = append(out, domain.Interval{Start: t, End: t.Add(granularity)})
		}
	}
	return out
}
