package domain

import (
	"testing"
	"time"
)

func conflictFixture() (Interval, time.Time) {
	start := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return Interval{Start: start, End: start.Add(time.Hour)}, now
}

func TestDetectConflict_None(t *testing.T) {
	candidate, now := conflictFixture()

	other := Booking{
		Status:    BookingStatusConfirmed,
		StartTime: candidate.End,
		EndTime:   candidate.End.Add(time.Hour),
	}
	if got := DetectConflict(candidate, nil, []Booking{other}, now); got != ConflictNone {
		t.Fatalf("conflict = %s, want none", got)
	}
}

func TestDetectConflict_SelfWinsOverTutor(t *testing.T) {
	candidate, now := conflictFixture()

	userBooking := Booking{
		Status:    BookingStatusConfirmed,
		StartTime: candidate.Start,
		EndTime:   candidate.End,
	}
	tutorBooking := Booking{
		Status:    BookingStatusConfirmed,
		StartTime: candidate.Start,
		EndTime:   candidate.End,
	}
	got := DetectConflict(candidate, []Booking{userBooking}, []Booking{tutorBooking}, now)
	if got != ConflictSelf {
		t.Fatalf("conflict = %s, want self_conflict", got)
	}
}

func TestDetectConflict_BookedWinsOverPending(t *testing.T) {
	candidate, now := conflictFixture()

	pending := Booking{
		Status:    BookingStatusPending,
		StartTime: candidate.Start,
		EndTime:   candidate.End,
	}
	confirmed := Booking{
		Status:    BookingStatusConfirmed,
		StartTime: candidate.Start.Add(30 * time.Minute),
		EndTime:   candidate.End.Add(30 * time.Minute),
	}
	got := DetectConflict(candidate, nil, []Booking{pending, confirmed}, now)
	if got != ConflictTutorBooked {
		t.Fatalf("conflict = %s, want tutor_booked", got)
	}

	got = DetectConflict(candidate, nil, []Booking{pending}, now)
	if got != ConflictTutorPending {
		t.Fatalf("conflict = %s, want tutor_pending", got)
	}
}

func TestDetectConflict_IgnoresInactiveBookings(t *testing.T) {
	candidate, now := conflictFixture()

	cancelled := Booking{
		Status:    BookingStatusCancelled,
		StartTime: candidate.Start,
		EndTime:   candidate.End,
	}
	if got := DetectConflict(candidate, []Booking{cancelled}, []Booking{cancelled}, now); got != ConflictNone {
		t.Fatalf("conflict = %s, want none", got)
	}
}

func TestDetectConflict_ElapsedConfirmedDoesNotBlock(t *testing.T) {
	candidate, _ := conflictFixture()

	// Confirmed but fully elapsed: effectively completed, so it no longer
	// occupies the schedule.
	booking := Booking{
		Status:    BookingStatusConfirmed,
		StartTime: candidate.Start,
		EndTime:   candidate.End,
	}
	later := candidate.End.Add(time.Hour)
	if got := DetectConflict(candidate, nil, []Booking{booking}, later); got != ConflictNone {
		t.Fatalf("conflict = %s, want none", got)
	}
}
