package domain

import (
	"fmt"
	"time"
)

// Interval is a half-open UTC time range [Start, End). Touching endpoints do
// not overlap.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type InvalidIntervalError struct {
	msg string
}

func (e *InvalidIntervalError) Error() string {
	return e.msg
}

func invalidInterval(format string, args ...any) error {
	return &InvalidIntervalError{msg: fmt.Sprintf(format, args...)}
}

func NewInterval(start, end time.Time) (Interval, error) {
	start = start.UTC()
	end = end.UTC()
	if !end.After(start) {
		return Interval{}, invalidInterval("end must be after start")
	}
	return Interval{Start: start, End: end}, nil
}

func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// DayRange returns the UTC day [00:00, 24:00) containing t.
func DayRange(t time.Time) Interval {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}
