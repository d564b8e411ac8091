package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

type Doctor struct {
	ID         string
	Name       string
	Department string
}

type TimeSlot struct {
	Start string
	End   string
}

// Validate requires both ends to be HH:MM and Start strictly before End.
func (s TimeSlot) Validate() error {
	start, err := ParseClock(s.Start)
	if err != nil {
		return fmt.Errorf("start %q: %w", s.Start, err)
	}
	end, err := ParseClock(s.End)
	if err != nil {
		return fmt.Errorf("end %q: %w", s.End, err)
	}
	if start >= end {
		return fmt.Errorf("start %s must be before end %s", s.Start, s.End)
	}
	return nil
}

type AvailabilityWindow struct {
	ID        string
	DoctorID  string
	Date      time.Time
	TimeSlots []TimeSlot
	Seq       int64 // declaration order
	UpdatedAt time.Time
}

// ParseDate reads YYYY-MM-DD as a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseClock returns minutes after midnight for an HH:MM string.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil || len(s) != len(ClockLayout) {
		return 0, fmt.Errorf("expected HH:MM")
	}
	return t.Hour()*60 + t.Minute(), nil
}

// SameDate compares calendar dates regardless of location or clock.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
