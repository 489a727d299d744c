package timewindow

import (
	"errors"
	"testing"
	"time"

	"meetupStreakAPI/internal/types/streak"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		expected                   bool
	}{
		{"disjoint", at(1, 9, 0), at(1, 10, 0), at(1, 11, 0), at(1, 12, 0), false},
		{"touching", at(1, 9, 0), at(1, 10, 0), at(1, 10, 0), at(1, 11, 0), false},
		{"partial", at(1, 10, 0), at(1, 11, 0), at(1, 10, 30), at(1, 11, 30), true},
		{"contained", at(1, 8, 0), at(1, 12, 0), at(1, 9, 0), at(1, 10, 0), true},
		{"identical", at(1, 9, 0), at(1, 10, 0), at(1, 9, 0), at(1, 10, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.expected {
				t.Errorf("Overlaps(a, b) = %v, expected %v", got, tt.expected)
			}
			if got := Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd); got != tt.expected {
				t.Errorf("Overlaps(b, a) = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(at(1, 9, 0), at(1, 10, 0)); err != nil {
		t.Fatalf("Expected valid interval, got %v", err)
	}
	if err := Validate(at(1, 9, 0), at(1, 9, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("Expected ErrInvalidInterval for empty interval, got %v", err)
	}
	if err := Validate(at(1, 10, 0), at(1, 9, 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("Expected ErrInvalidInterval for inverted interval, got %v", err)
	}
}

func TestCadenceWindow(t *testing.T) {
	anchor := at(1, 12, 0)
	tests := []struct {
		cadence streak.Cadence
		days    int
	}{
		{streak.CadenceWeekly, 7},
		{streak.CadenceMonthly, 30},
		{streak.CadenceYearly, 365},
	}

	for _, tt := range tests {
		t.Run(string(tt.cadence), func(t *testing.T) {
			start, end := CadenceWindow(tt.cadence, anchor)
			if !start.Equal(anchor) {
				t.Errorf("Expected window to start at anchor, got %v", start)
			}
			if got := end.Sub(start); got != time.Duration(tt.days)*24*time.Hour {
				t.Errorf("Expected %d day window, got %v", tt.days, got)
			}
			if !InWindow(tt.cadence, anchor, end) {
				t.Error("Expected window end to be inclusive")
			}
			if InWindow(tt.cadence, anchor, end.Add(time.Second)) {
				t.Error("Expected instant after window end to be outside")
			}
			if InWindow(tt.cadence, anchor, anchor.Add(-time.Second)) {
				t.Error("Expected instant before anchor to be outside")
			}
		})
	}
}

func TestHourSpan(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		from, to   int
	}{
		{"whole hours", at(1, 9, 0), at(1, 11, 0), 9, 11},
		{"partial hour", at(1, 9, 0), at(1, 9, 45), 9, 10},
		{"half past", at(1, 10, 30), at(1, 11, 30), 10, 12},
		{"past midnight", at(1, 22, 0), at(2, 1, 0), 22, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := HourSpan(tt.start, tt.end)
			if from != tt.from || to != tt.to {
				t.Errorf("Expected [%d, %d), got [%d, %d)", tt.from, tt.to, from, to)
			}
		})
	}
}

func TestIsSameCalendarDay(t *testing.T) {
	if !IsSameCalendarDay(at(4, 0, 0), at(4, 23, 59)) {
		t.Error("Expected same day")
	}
	if IsSameCalendarDay(at(4, 23, 59), at(5, 0, 0)) {
		t.Error("Expected different days")
	}
}

func TestWeekStart(t *testing.T) {
	// 2025-03-05 is a Wednesday.
	ref := at(5, 15, 30)

	sunday := WeekStart(ref, time.Sunday)
	if !sunday.Equal(at(2, 0, 0)) {
		t.Errorf("Expected Sunday 2 March, got %v", sunday)
	}

	monday := WeekStart(ref, time.Monday)
	if !monday.Equal(at(3, 0, 0)) {
		t.Errorf("Expected Monday 3 March, got %v", monday)
	}

	if got := WeekStart(at(2, 8, 0), time.Sunday); !got.Equal(at(2, 0, 0)) {
		t.Errorf("Expected a Sunday to start its own week, got %v", got)
	}
}
