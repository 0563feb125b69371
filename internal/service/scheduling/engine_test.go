package scheduling

import (
	"context"
	"testing"
	"time"

	"tutorflow/backend/internal/domain"
)

type fakeAvailability struct {
	windowsForFn func(ctx context.Context, tutorID string, date time.Time) ([]domain.Interval, error)
}

func (f *fakeAvailability) WindowsFor(ctx context.Context, tutorID string, date time.Time) ([]domain.Interval, error) {
	if f.windowsForFn == nil {
		return nil, nil
	}
	return f.windowsForFn(ctx, tutorID, date)
}

type fakeBookings struct {
	byParty map[string][]domain.Booking
}

func (f *fakeBookings) ActiveBookingsTouching(ctx context.Context, partyID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	return f.byParty[partyID], nil
}

func testEngine(avail *fakeAvailability, books *fakeBookings, now time.Time) *Engine {
	e := NewEngine(avail, books)
	e.now = func() time.Time { return now }
	return e
}

func mondayWindow(t *testing.T) (time.Time, *fakeAvailability) {
	t.Helper()
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	avail := &fakeAvailability{
		windowsForFn: func(ctx context.Context, tutorID string, date time.Time) ([]domain.Interval, error) {
			return []domain.Interval{{Start: monday.Add(9 * time.Hour), End: monday.Add(11 * time.Hour)}}, nil
		},
	}
	return monday, avail
}

func TestComputeSlots_DiscretizesWindow(t *testing.T) {
	monday, avail := mondayWindow(t)
	e := testEngine(avail, &fakeBookings{}, monday)

	slots, err := e.ComputeSlots(context.Background(), "t1", "u1", monday, time.Hour)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("len(slots) = %d, want 2", len(slots))
	}
	if !slots[0].Interval.Start.Equal(monday.Add(9*time.Hour)) || !slots[1].Interval.Start.Equal(monday.Add(10*time.Hour)) {
		t.Fatalf("slots = %+v", slots)
	}
	for _, s := range slots {
		if s.Disabled || s.Conflict != domain.ConflictNone {
			t.Fatalf("slot should be free: %+v", s)
		}
	}
}

func TestComputeSlots_DropsPartialRemainder(t *testing.T) {
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	avail := &fakeAvailability{
		windowsForFn: func(ctx context.Context, tutorID string, date time.Time) ([]domain.Interval, error) {
			return []domain.Interval{{Start: monday.Add(9 * time.Hour), End: monday.Add(10*time.Hour + 30*time.Minute)}}, nil
		},
	}
	e := testEngine(avail, &fakeBookings{}, monday)

	slots, err := e.ComputeSlots(context.Background(), "t1", "", monday, time.Hour)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("len(slots) = %d, want 1 (30m remainder dropped)", len(slots))
	}
	if !slots[0].Interval.End.Equal(monday.Add(10 * time.Hour)) {
		t.Fatalf("slot = %+v", slots[0])
	}
}

func TestComputeSlots_EmptyWindowsIsEmptyNotError(t *testing.T) {
	e := testEngine(&fakeAvailability{}, &fakeBookings{}, time.Now().UTC())

	slots, err := e.ComputeSlots(context.Background(), "t1", "", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 0)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("slots = %v, want empty", slots)
	}
}

func TestComputeSlots_TutorBookingDisablesSlot(t *testing.T) {
	monday, avail := mondayWindow(t)
	books := &fakeBookings{byParty: map[string][]domain.Booking{
		"t1": {{
			TutorID:   "t1",
			StudentID: "someone-else",
			Status:    domain.BookingStatusPending,
			StartTime: monday.Add(9 * time.Hour),
			EndTime:   monday.Add(10 * time.Hour),
		}},
	}}
	e := testEngine(avail, books, monday)

	slots, err := e.ComputeSlots(context.Background(), "t1", "u1", monday, time.Hour)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("len(slots) = %d, want 2", len(slots))
	}
	if !slots[0].Disabled || slots[0].Conflict != domain.ConflictTutorPending {
		t.Fatalf("first slot = %+v, want disabled tutor_pending", slots[0])
	}
	if slots[1].Disabled {
		t.Fatalf("second slot should be unaffected: %+v", slots[1])
	}
}

func TestComputeSlots_SelfConflictWithOtherTutor(t *testing.T) {
	// The requesting user holds a confirmed booking elsewhere covering
	// 14:00-15:00; the target tutor is free then.
	tuesday := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	avail := &fakeAvailability{
		windowsForFn: func(ctx context.Context, tutorID string, date time.Time) ([]domain.Interval, error) {
			return []domain.Interval{{Start: tuesday.Add(14 * time.Hour), End: tuesday.Add(16 * time.Hour)}}, nil
		},
	}
	books := &fakeBookings{byParty: map[string][]domain.Booking{
		"u1": {{
			TutorID:   "other-tutor",
			StudentID: "u1",
			Status:    domain.BookingStatusConfirmed,
			StartTime: tuesday.Add(14 * time.Hour),
			EndTime:   tuesday.Add(15 * time.Hour),
		}},
	}}
	e := testEngine(avail, books, tuesday)

	slots, err := e.ComputeSlots(context.Background(), "t1", "u1", tuesday, time.Hour)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("len(slots) = %d, want 2", len(slots))
	}
	if !slots[0].Disabled || slots[0].Conflict != domain.ConflictSelf {
		t.Fatalf("first slot = %+v, want disabled self_conflict", slots[0])
	}
	if slots[1].Disabled {
		t.Fatalf("second slot should be free: %+v", slots[1])
	}
}

func TestComputeSlots_AnonymousCallerStillSeesTutorConflicts(t *testing.T) {
	monday, avail := mondayWindow(t)
	books := &fakeBookings{byParty: map[string][]domain.Booking{
		"t1": {{
			TutorID:   "t1",
			StudentID: "s9",
			Status:    domain.BookingStatusConfirmed,
			StartTime: monday.Add(10 * time.Hour),
			EndTime:   monday.Add(11 * time.Hour),
		}},
	}}
	e := testEngine(avail, books, monday)

	slots, err := e.ComputeSlots(context.Background(), "t1", "", monday, time.Hour)
	if err != nil {
		t.Fatalf("ComputeSlots error: %v", err)
	}
	if slots[0].Disabled {
		t.Fatalf("first slot should be free: %+v", slots[0])
	}
	if !slots[1].Disabled || slots[1].Conflict != domain.ConflictTutorBooked {
		t.Fatalf("second slot = %+v, want disabled tutor_booked", slots[1])
	}
}

func TestDiscretize_AlignsToWindowStart(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	out := Discretize([]domain.Interval{{Start: start, End: start.Add(2 * time.Hour)}}, time.Hour)

	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if !out[0].Start.Equal(start) {
		t.Fatalf("slots must align to the window start, got %v", out[0].Start)
	}
	if !out[1].Start.Equal(start.Add(time.Hour)) {
		t.Fatalf("second slot = %v", out[1])
	}
}
