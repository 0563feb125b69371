package domain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Time-of-day values are minutes since midnight UTC. 24:00 is allowed as an
// end bound so a rule can run to the end of the day.
const MinutesPerDay = 24 * 60

// ParseTimeOfDay parses "HH:MM" into minutes since midnight.
func ParseTimeOfDay(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, invalidInterval("invalid time of day %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h*60+m > MinutesPerDay {
		return 0, invalidInterval("invalid time of day %q", s)
	}
	return h*60 + m, nil
}

func FormatTimeOfDay(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// RecurringRule is a tutor's weekly-repeating availability window. At most one
// rule exists per (tutor, weekday); setting a new one replaces the old.
// Weekday numbering follows time.Weekday (0 = Sunday).
type RecurringRule struct {
	bun.BaseModel `bun:"table:availability_rules"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	TutorID     string    `bun:"tutor_id,notnull"`
	Weekday     int       `bun:"weekday,notnull"`
	StartMinute int       `bun:"start_minute,notnull"`
	EndMinute   int       `bun:"end_minute,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func NewRecurringRule(tutorID string, weekday, startMinute, endMinute int) (RecurringRule, error) {
	if weekday < 0 || weekday > 6 {
		return RecurringRule{}, invalidInterval("weekday must be in 0..6")
	}
	if startMinute < 0 || endMinute > MinutesPerDay {
		return RecurringRule{}, invalidInterval("time of day out of range")
	}
	if endMinute <= startMinute {
		return RecurringRule{}, invalidInterval("end must be after start")
	}
	return RecurringRule{
		TutorID:     tutorID,
		Weekday:     weekday,
		StartMinute: startMinute,
		EndMinute:   endMinute,
	}, nil
}

// WindowOn projects the rule onto a calendar date. The boolean is false when
// the date falls on a different weekday.
func (r RecurringRule) WindowOn(date time.Time) (Interval, bool) {
	date = date.UTC()
	if int(date.Weekday()) != r.Weekday {
		return Interval{}, false
	}
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return Interval{
		Start: midnight.Add(time.Duration(r.StartMinute) * time.Minute),
		End:   midnight.Add(time.Duration(r.EndMinute) * time.Minute),
	}, true
}

func (r *RecurringRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// Override replaces the recurring pattern outright for one calendar date.
// Windows are concrete UTC intervals on that date, pairwise non-overlapping.
type Override struct {
	bun.BaseModel `bun:"table:availability_overrides"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid"`
	TutorID   string     `bun:"tutor_id,notnull"`
	Date      time.Time  `bun:"date,notnull"`
	Windows   []Interval `bun:"windows,type:jsonb,notnull"`
	CreatedAt time.Time  `bun:"created_at,notnull"`
	UpdatedAt time.Time  `bun:"updated_at,notnull"`
}

func NewOverride(tutorID string, date time.Time, windows []Interval) (Override, error) {
	if err := ValidateDisjoint(windows); err != nil {
		return Override{}, err
	}
	sorted := make([]Interval, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for i := range sorted {
		sorted[i].Start = sorted[i].Start.UTC()
		sorted[i].End = sorted[i].End.UTC()
	}
	d := date.UTC()
	return Override{
		TutorID: tutorID,
		Date:    time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
		Windows: sorted,
	}, nil
}

// ValidateDisjoint reports an error if any window is inverted or any two
// windows overlap.
func ValidateDisjoint(windows []Interval) error {
	for _, w := range windows {
		if !w.End.After(w.Start) {
			return invalidInterval("window end must be after start")
		}
	}
	for i := range windows {
		for j := i + 1; j < len(windows); j++ {
			if windows[i].Overlaps(windows[j]) {
				return invalidInterval("windows overlap")
			}
		}
	}
	return nil
}

func (o *Override) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if o.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			o.ID = id
		}
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		if o.UpdatedAt.IsZero() {
			o.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		o.UpdatedAt = now
	}
	return nil
}
