package day

import (
	"testing"
	"time"
)

func TestTodayAt_ZeroPadded(t *testing.T) {
	clock := &FixedClock{T: time.Date(2024, time.March, 5, 9, 30, 0, 0, time.Local)}
	if got := TodayAt(clock); got != "2024-03-05" {
		t.Errorf("TodayAt = %q, want 2024-03-05", got)
	}
}

func TestTodayAt_ChangesAtLocalMidnight(t *testing.T) {
	clock := &FixedClock{T: time.Date(2024, time.January, 1, 23, 59, 59, 0, time.Local)}
	before := TodayAt(clock)

	clock.T = clock.T.Add(time.Second)
	after := TodayAt(clock)

	if before != "2024-01-01" {
		t.Errorf("before midnight = %q", before)
	}
	if after != "2024-01-02" {
		t.Errorf("after midnight = %q", after)
	}
}

func TestTodayAt_UsesLocalNotUTC(t *testing.T) {
	loc := time.FixedZone("UTC-10", -10*60*60)
	orig := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = orig })

	// 05:00 UTC on Jan 2 is still Jan 1 at UTC-10.
	clock := &FixedClock{T: time.Date(2024, time.January, 2, 5, 0, 0, 0, time.UTC)}
	if got := TodayAt(clock); got != "2024-01-01" {
		t.Errorf("TodayAt = %q, want 2024-01-01", got)
	}
}

func TestToday_MatchesFormat(t *testing.T) {
	if !Valid(Today()) {
		t.Errorf("Today() = %q is not a valid day", Today())
	}
}

func TestParse(t *testing.T) {
	if _, err := Parse("2024-02-30"); err == nil {
		t.Error("expected error for impossible date")
	}
	if _, err := Parse("2024-1-5"); err == nil {
		t.Error("expected error for unpadded date")
	}
	got, err := Parse("2024-02-29")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Day() != 29 || got.Month() != time.February {
		t.Errorf("Parse = %v", got)
	}
}
