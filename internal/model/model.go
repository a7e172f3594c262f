// Package model holds the value types shared across the conversion
// pipeline. Everything here is immutable once built.
package model

import (
	"fmt"
	"time"
)

// Date is a civil calendar date with no timezone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ISO renders the date as 2006-01-02. Event UIDs are derived from this
// rendering, so the format must never change.
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) String() string { return d.ISO() }

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// At combines the date with a wall-clock time in the given location.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

// TimeOfDay is a 24-hour wall-clock time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the offset from midnight in minutes.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// WeekdayColumn binds a sheet column to the weekday named in the header
// row and the absolute date resolved from the date row below it.
type WeekdayColumn struct {
	Col     int
	Weekday time.Weekday
	Date    Date
}

// TimeSlotRow binds a sheet row to the time range parsed from its label.
type TimeSlotRow struct {
	Row   int
	Start TimeOfDay
	End   TimeOfDay
}

// ShiftRecord is one person's scheduled block on one date. Person keeps
// the cell text as written in the roster (trimmed, original casing).
type ShiftRecord struct {
	Person string
	Date   Date
	Start  TimeOfDay
	End    TimeOfDay
}

// CalendarEvent is the rendered form of a ShiftRecord: absolute start
// and end instants plus the stable UID that identifies the shift across
// re-exports.
type CalendarEvent struct {
	UID      string
	Summary  string
	Start    time.Time
	End      time.Time
	Timezone string
}

// SkippedRow records a non-fatal diagnostic: a row (or whole sheet,
// Row < 0) that was left out of the conversion and why.
type SkippedRow struct {
	Sheet  string
	Row    int // zero-based sheet row; negative for sheet-level skips
	Label  string
	Reason string
}

func (s SkippedRow) String() string {
	if s.Row < 0 {
		return fmt.Sprintf("sheet %q: %s", s.Sheet, s.Reason)
	}
	if s.Label == "" {
		return fmt.Sprintf("sheet %q row %d: %s", s.Sheet, s.Row+1, s.Reason)
	}
	return fmt.Sprintf("sheet %q row %d (%q): %s", s.Sheet, s.Row+1, s.Label, s.Reason)
}
