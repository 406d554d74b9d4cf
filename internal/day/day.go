// Package day produces canonical calendar-day identifiers in local time.
package day

import (
	"fmt"
	"time"
)

// Layout is the YYYY-MM-DD layout used for every entry key.
const Layout = "2006-01-02"

// Clock abstracts the wall clock so day rollover can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant. Tests move it by assigning T.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c *FixedClock) Now() time.Time { return c.T }

// Today returns today's date as YYYY-MM-DD in the local timezone.
func Today() string {
	return TodayAt(SystemClock{})
}

// TodayAt returns the local calendar day reported by clock.
func TodayAt(clock Clock) string {
	return Format(clock.Now())
}

// Format renders t as a local calendar day.
func Format(t time.Time) string {
	return t.Local().Format(Layout)
}

// Parse validates a YYYY-MM-DD identifier and returns local midnight of that day.
func Parse(date string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("day: invalid date %q: %w", date, err)
	}
	return t, nil
}

// Valid reports whether date is a well-formed YYYY-MM-DD identifier.
func Valid(date string) bool {
	_, err := Parse(date)
	return err == nil
}
