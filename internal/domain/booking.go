package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Active reports whether the booking occupies the tutor's schedule.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// CanTransition reports whether the status state machine permits from -> to.
// pending -> confirmed|cancelled; confirmed -> cancelled|completed.
func CanTransition(from, to BookingStatus) bool {
	switch from {
	case BookingStatusPending:
		return to == BookingStatusConfirmed || to == BookingStatusCancelled
	case BookingStatusConfirmed:
		return to == BookingStatusCancelled || to == BookingStatusCompleted
	default:
		return false
	}
}

type InvalidTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition booking from %s to %s", e.From, e.To)
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID          uuid.UUID     `bun:"id,pk,type:uuid"`
	TutorID     string        `bun:"tutor_id,notnull"`
	StudentID   string        `bun:"student_id,notnull"`
	CourseID    string        `bun:"course_id,notnull"`
	StartTime   time.Time     `bun:"start_time,notnull"`
	EndTime     time.Time     `bun:"end_time,notnull"`
	Status      BookingStatus `bun:"status,notnull"`
	MeetingLink string        `bun:"meeting_link"`
	Notes       string        `bun:"notes"`
	CreatedAt   time.Time     `bun:"created_at,notnull"`
	UpdatedAt   time.Time     `bun:"updated_at,notnull"`
}

func (b Booking) Interval() Interval {
	return Interval{Start: b.StartTime.UTC(), End: b.EndTime.UTC()}
}

func (b Booking) IsParty(partyID string) bool {
	return partyID != "" && (b.TutorID == partyID || b.StudentID == partyID)
}

// EffectiveStatus derives completed at read time: a confirmed booking whose
// interval has fully elapsed is completed whether or not a sweep persisted it.
func (b Booking) EffectiveStatus(now time.Time) BookingStatus {
	if b.Status == BookingStatusConfirmed && b.EndTime.Before(now.UTC()) {
		return BookingStatusCompleted
	}
	return b.Status
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}
