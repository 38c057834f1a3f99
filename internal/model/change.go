package model

import (
	"fmt"
	"time"
)

// ChangeKind classifies a slot transition.
type ChangeKind string

const (
	NewAvailability       ChangeKind = "new_availability"
	IncreasedAvailability ChangeKind = "increased_availability"
)

// SlotMarker prefixes every rendered change block.
const SlotMarker = "🎾"

// Change describes one slot whose availability went up between two snapshots.
type Change struct {
	Kind          ChangeKind `json:"kind"`
	Venue         string     `json:"venue"`
	District      string     `json:"district"`
	Date          string     `json:"date"`
	TimeRange     string     `json:"timeRange"`
	CurrentCount  int        `json:"currentCount"`
	PreviousCount int        `json:"previousCount"`
	Message       string     `json:"message"`
}

// NewChange builds a Change for slot s and renders its message.
func NewChange(kind ChangeKind, s Slot, previous, current int) Change {
	c := Change{
		Kind:          kind,
		Venue:         s.Venue,
		District:      s.District,
		Date:          s.Date,
		TimeRange:     s.TimeRange(),
		CurrentCount:  current,
		PreviousCount: previous,
	}
	c.Message = RenderMessage(c)
	return c
}

// RenderMessage produces the human-readable block for a change:
//
//	🎾 Victoria Park Tennis Court
//	📅 Mon 01/15 10:00-11:00
//	Courts: 0 → 2
func RenderMessage(c Change) string {
	return fmt.Sprintf("%s %s\n📅 %s %s\nCourts: %d → %d",
		SlotMarker, c.Venue, FormatDate(c.Date), c.TimeRange, c.PreviousCount, c.CurrentCount)
}

const isoDate = "2006-01-02"

// FormatDate renders an ISO date as "Mon 01/02". The date is read as a plain
// calendar date with no timezone conversion. Unparsable input is returned as is.
func FormatDate(date string) string {
	t, err := time.Parse(isoDate, date)
	if err != nil {
		return date
	}
	return t.Format("Mon 01/02")
}

// Weekday returns the abbreviated weekday of an ISO date, or "" if unparsable.
func Weekday(date string) string {
	t, err := time.Parse(isoDate, date)
	if err != nil {
		return ""
	}
	return t.Format("Mon")
}
