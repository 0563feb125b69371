// Package memory is a mutex-guarded in-process implementation of the store
// interfaces. It backs unit and concurrency tests and small single-node
// deployments; the linearization contract matches the postgres repos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tutorflow/backend/internal/domain"
	"tutorflow/backend/internal/store"
)

type Store struct {
	mu        sync.Mutex
	recurring map[string]map[int]domain.RecurringRule
	overrides map[string]map[string]domain.Override
	bookings  map[uuid.UUID]domain.Booking

	lockMu     sync.Mutex
	partyLocks map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		recurring:  make(map[string]map[int]domain.RecurringRule),
		overrides:  make(map[string]map[string]domain.Override),
		bookings:   make(map[uuid.UUID]domain.Booking),
		partyLocks: make(map[string]*sync.Mutex),
	}
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (s *Store) UpsertRecurring(ctx context.Context, rule domain.RecurringRule) (domain.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	byDay, ok := s.recurring[rule.TutorID]
	if !ok {
		byDay = make(map[int]domain.RecurringRule)
		s.recurring[rule.TutorID] = byDay
	}
	if existing, ok := byDay[rule.Weekday]; ok {
		rule.ID = existing.ID
		rule.CreatedAt = existing.CreatedAt
	} else {
		rule.ID = uuid.New()
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	byDay[rule.Weekday] = rule
	return rule, nil
}

func (s *Store) RecurringForWeekday(ctx context.Context, tutorID string, weekday int) (*domain.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.recurring[tutorID][weekday]
	if !ok {
		return nil, nil
	}
	out := rule
	return &out, nil
}

func (s *Store) UpsertOverride(ctx context.Context, ov domain.Override) (domain.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	byDate, ok := s.overrides[ov.TutorID]
	if !ok {
		byDate = make(map[string]domain.Override)
		s.overrides[ov.TutorID] = byDate
	}
	key := dateKey(ov.Date)
	if existing, ok := byDate[key]; ok {
		ov.ID = existing.ID
		ov.CreatedAt = existing.CreatedAt
	} else {
		ov.ID = uuid.New()
		ov.CreatedAt = now
	}
	ov.UpdatedAt = now
	byDate[key] = ov
	return ov, nil
}

func (s *Store) OverrideForDate(ctx context.Context, tutorID string, date time.Time) (*domain.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ov, ok := s.overrides[tutorID][dateKey(date)]
	if !ok {
		return nil, nil
	}
	out := ov
	out.Windows = append([]domain.Interval(nil), ov.Windows...)
	return &out, nil
}

func (s *Store) DeleteOverride(ctx context.Context, tutorID string, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dateKey(date)
	if _, ok := s.overrides[tutorID][key]; !ok {
		return store.ErrNotFound
	}
	delete(s.overrides[tutorID], key)
	return nil
}

func (s *Store) Booking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookingLocked(id)
}

func (s *Store) bookingLocked(id uuid.UUID) (domain.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) ActiveBookingsTouching(ctx context.Context, partyID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeBookingsTouchingLocked(partyID, windowStart, windowEnd), nil
}

func (s *Store) activeBookingsTouchingLocked(partyID string, windowStart, windowEnd time.Time) []domain.Booking {
	window := domain.Interval{Start: windowStart.UTC(), End: windowEnd.UTC()}
	out := make([]domain.Booking, 0, 4)
	for _, b := range s.bookings {
		if !b.IsParty(partyID) || !b.Status.Active() {
			continue
		}
		if window.Overlaps(b.Interval()) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// InPartyTransaction holds a per-party mutex for each distinct party, acquired
// in sorted order, for the duration of fn. This is the in-process equivalent
// of the postgres advisory-lock transaction.
func (s *Store) InPartyTransaction(ctx context.Context, tutorID, studentID string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	for _, mu := range s.partyMutexes(tutorID, studentID) {
		mu.Lock()
		defer mu.Unlock()
	}
	return fn(ctx, &memoryTx{s: s})
}

func (s *Store) partyMutexes(partyIDs ...string) []*sync.Mutex {
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

	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	out := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		mu, ok := s.partyLocks[id]
		if !ok {
			mu = &sync.Mutex{}
			s.partyLocks[id] = mu
		}
		out = append(out, mu)
	}
	return out
}

func (s *Store) CompleteFinished(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	cutoff := now.UTC()
	for id, b := range s.bookings {
		if b.Status == domain.BookingStatusConfirmed && b.EndTime.Before(cutoff) {
			b.Status = domain.BookingStatusCompleted
			b.UpdatedAt = cutoff
			s.bookings[id] = b
			n++
		}
	}
	return n, nil
}

type memoryTx struct {
	s *Store
}

func (t *memoryTx) Insert(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	now := time.Now().UTC()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	t.s.bookings[b.ID] = b
	return b, nil
}

func (t *memoryTx) Booking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.bookingLocked(id)
}

func (t *memoryTx) ActiveBookingsTouching(ctx context.Context, partyID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.activeBookingsTouchingLocked(partyID, windowStart, windowEnd), nil
}

func (t *memoryTx) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus, meetingLink string) (domain.Booking, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	b, err := t.s.bookingLocked(id)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Status = status
	if meetingLink != "" {
		b.MeetingLink = meetingLink
	}
	b.UpdatedAt = time.Now().UTC()
	t.s.bookings[id] = b
	return b, nil
}
