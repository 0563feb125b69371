package domain

import (
	"fmt"
	"time"
)

// ConflictType says why a candidate interval cannot be booked.
type ConflictType string

const (
	ConflictNone ConflictType = "none"
	// ConflictSelf: the requesting user already holds an overlapping active
	// booking, in either role. Always reported over tutor conflicts.
	ConflictSelf         ConflictType = "self_conflict"
	ConflictTutorBooked  ConflictType = "tutor_booked"
	ConflictTutorPending ConflictType = "tutor_pending"
)

type SlotUnavailableError struct {
	Conflict ConflictType
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("slot unavailable: %s", e.Conflict)
}

// DetectConflict classifies a candidate interval against the requesting
// user's active bookings and the target tutor's active bookings. Priority:
// self_conflict, then tutor_booked, then tutor_pending. Bookings whose
// effective status at now is not active are ignored.
func DetectConflict(candidate Interval, userBookings, tutorBookings []Booking, now time.Time) ConflictType {
	for _, b := range userBookings {
		if !b.EffectiveStatus(now).Active() {
			continue
		}
		if candidate.Overlaps(b.Interval()) {
			return ConflictSelf
		}
	}

	pending := false
	for _, b := range tutorBookings {
		status := b.EffectiveStatus(now)
		if !status.Active() || !candidate.Overlaps(b.Interval()) {
			continue
		}
		if status == BookingStatusConfirmed {
			return ConflictTutorBooked
		}
		pending = true
	}
	if pending {
		return ConflictTutorPending
	}
	return ConflictNone
}
