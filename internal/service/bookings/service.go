package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"tutorflow/backend/internal/domain"
	"tutorflow/backend/internal/store"
)

// createMaxAttempts bounds retries of the create transaction on transient
// contention. Genuine slot conflicts are never retried.
const createMaxAttempts = 3

const maxBookingDuration = 24 * time.Hour

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// PermissionError marks a transition attempted by a party who may not perform
// it (e.g. a student accepting a booking).
type PermissionError struct {
	msg string
}

func (e *PermissionError) Error() string {
	return e.msg
}

func permissionError(msg string) error {
	return &PermissionError{msg: msg}
}

// Service is the only mutator of booking records. Create re-validates
// conflicts against current store state inside the per-party transaction
// boundary, so two overlapping creates for the same tutor (or the same
// counter-party) can never both succeed.
type Service struct {
	repo store.BookingRepository
	now  func() time.Time
}

func NewService(repo store.BookingRepository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	TutorID   string
	StudentID string
	CourseID  string
	StartTime time.Time
	EndTime   time.Time
	Notes     string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Booking, error) {
	if in.TutorID == "" {
		return domain.Booking{}, validationError("tutor_id is required")
	}
	if in.StudentID == "" {
		return domain.Booking{}, validationError("student_id is required")
	}
	if in.TutorID == in.StudentID {
		return domain.Booking{}, validationError("tutor and student must differ")
	}
	if strings.TrimSpace(in.CourseID) == "" {
		return domain.Booking{}, validationError("course_id is required")
	}

	interval, err := domain.NewInterval(in.StartTime, in.EndTime)
	if err != nil {
		return domain.Booking{}, err
	}
	if interval.Duration() > maxBookingDuration {
		return domain.Booking{}, validationError("duration too long")
	}

	booking := domain.Booking{
		TutorID:   in.TutorID,
		StudentID: in.StudentID,
		CourseID:  strings.TrimSpace(in.CourseID),
		StartTime: interval.Start,
		EndTime:   interval.End,
		Status:    domain.BookingStatusPending,
		Notes:     in.Notes,
	}

	var out domain.Booking
	for attempt := 1; ; attempt++ {
		err = s.repo.InPartyTransaction(ctx, in.TutorID, in.StudentID, func(ctx context.Context, tx store.BookingTx) error {
			tutorBookings, err := tx.ActiveBookingsTouching(ctx, in.TutorID, interval.Start, interval.End)
			if err != nil {
				return err
			}
			studentBookings, err := tx.ActiveBookingsTouching(ctx, in.StudentID, interval.Start, interval.End)
			if err != nil {
				return err
			}
			if conflict := domain.DetectConflict(interval, studentBookings, tutorBookings, s.now()); conflict != domain.ConflictNone {
				return &domain.SlotUnavailableError{Conflict: conflict}
			}
			b, err := tx.Insert(ctx, booking)
			if err != nil {
				return err
			}
			out = b
			return nil
		})
		if err == nil {
			return out, nil
		}
		if errors.Is(err, store.ErrContention) && attempt < createMaxAttempts {
			continue
		}
		// The exclusion constraint is the backstop behind the advisory lock;
		// if it fires, the slot was taken out from under us.
		if errors.Is(err, store.ErrConflict) {
			return domain.Booking{}, &domain.SlotUnavailableError{Conflict: domain.ConflictTutorBooked}
		}
		return domain.Booking{}, err
	}
}

// Accept confirms a pending booking. Tutor only. A meeting link is minted on
// the transition.
func (s *Service) Accept(ctx context.Context, bookingID uuid.UUID, actorID string) (domain.Booking, error) {
	return s.transition(ctx, bookingID, actorID, domain.BookingStatusConfirmed, func(b domain.Booking) error {
		if b.TutorID != actorID {
			return permissionError("only the tutor can accept a booking")
		}
		return nil
	})
}

// Decline rejects a pending booking. Tutor only.
func (s *Service) Decline(ctx context.Context, bookingID uuid.UUID, actorID string) (domain.Booking, error) {
	return s.transition(ctx, bookingID, actorID, domain.BookingStatusCancelled, func(b domain.Booking) error {
		if b.TutorID != actorID {
			return permissionError("only the tutor can decline a booking")
		}
		if b.Status != domain.BookingStatusPending {
			return &domain.InvalidTransitionError{From: b.Status, To: domain.BookingStatusCancelled}
		}
		return nil
	})
}

// Cancel moves any non-terminal booking to cancelled and frees the slot
// immediately. Either party may cancel.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID, actorID string) (domain.Booking, error) {
	return s.transition(ctx, bookingID, actorID, domain.BookingStatusCancelled, func(b domain.Booking) error {
		if !b.IsParty(actorID) {
			return permissionError("only a booking party can cancel it")
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, bookingID uuid.UUID, actorID string, target domain.BookingStatus, guard func(domain.Booking) error) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	if actorID == "" {
		return domain.Booking{}, validationError("actor_id is required")
	}

	current, err := s.repo.Booking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}

	var out domain.Booking
	err = s.repo.InPartyTransaction(ctx, current.TutorID, current.StudentID, func(ctx context.Context, tx store.BookingTx) error {
		b, err := tx.Booking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := guard(b); err != nil {
			return err
		}
		from := b.EffectiveStatus(s.now())
		if !domain.CanTransition(from, target) {
			return &domain.InvalidTransitionError{From: from, To: target}
		}

		meetingLink := ""
		if target == domain.BookingStatusConfirmed && b.MeetingLink == "" {
			meetingLink = newMeetingLink()
		}
		updated, err := tx.UpdateStatus(ctx, bookingID, target, meetingLink)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

func newMeetingLink() string {
	return "https://meet.tutorflow.app/" + uuid.NewString()
}

// Get returns a booking with the completed status derived at read time.
func (s *Service) Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	b, err := s.repo.Booking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Status = b.EffectiveStatus(s.now())
	return b, nil
}

// ListForParty returns the party's active bookings intersecting the UTC day.
func (s *Service) ListForParty(ctx context.Context, partyID string, date time.Time) ([]domain.Booking, error) {
	if partyID == "" {
		return nil, validationError("party_id is required")
	}
	day := domain.DayRange(date)
	rows, err := s.repo.ActiveBookingsTouching(ctx, partyID, day.Start, day.End)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range rows {
		rows[i].Status = rows[i].EffectiveStatus(now)
	}
	return rows, nil
}

// CompleteFinished persists the derived completed status. Used by the sweep;
// reads do not depend on it.
func (s *Service) CompleteFinished(ctx context.Context) (int64, error) {
	return s.repo.CompleteFinished(ctx, s.now())
}
