// Package timewindow holds the interval arithmetic shared by the availability
// grid, the conflict detector and the streak engine.
package timewindow

import (
	"errors"
	"time"

	"meetupStreakAPI/internal/types/streak"
)

var ErrInvalidInterval = errors.New("invalid interval: end must be after start")

// Validate rejects empty and inverted intervals.
func Validate(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidInterval
	}
	return nil
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// CadenceWindow returns the fixed-length window opened by t.
func CadenceWindow(c streak.Cadence, t time.Time) (time.Time, time.Time) {
	return t, t.Add(c.Duration())
}

// InWindow reports whether t lies within the cadence window opened by anchor,
// both ends inclusive.
func InWindow(c streak.Cadence, anchor, t time.Time) bool {
	start, end := CadenceWindow(c, anchor)
	return !t.Before(start) && !t.After(end)
}

// IsSameCalendarDay compares the wall-clock dates of a and b in their own
// locations. Convert both to one location first when that matters.
func IsSameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func HourOf(t time.Time) int {
	return t.Hour()
}

// StartOfDay returns local midnight of t's date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// HourSpan returns the hour cells [from, to) occupied by an interval on its
// start day. A partial trailing hour counts as occupied, so 09:00-09:45 spans
// [9, 10). An interval running past midnight spans to 24.
func HourSpan(start, end time.Time) (int, int) {
	from := HourOf(start)
	if !IsSameCalendarDay(start, end.In(start.Location())) {
		return from, 24
	}
	end = end.In(start.Location())
	to := HourOf(end)
	if end.Minute() > 0 || end.Second() > 0 || end.Nanosecond() > 0 {
		to++
	}
	if to <= from {
		to = from + 1
	}
	return from, to
}

// WeekStart returns midnight of the first day of the week containing ref.
func WeekStart(ref time.Time, firstDay time.Weekday) time.Time {
	day := StartOfDay(ref)
	offset := (int(day.Weekday()) - int(firstDay) + 7) % 7
	return day.AddDate(0, 0, -offset)
}
