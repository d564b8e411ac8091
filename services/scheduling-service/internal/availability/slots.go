package availability

import (
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
)

// OpenSlots flattens the windows declared for date, in declaration order,
// and drops every slot whose start equals a booked time.
//
// Matching is on the exact HH:MM string. A booking at 09:15 does not close a
// 09:00-09:30 slot, and overlapping windows are returned as declared.
func OpenSlots(windows []model.AvailabilityWindow, date time.Time, booked []string) []model.TimeSlot {
	taken := make(map[string]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}

	open := make([]model.TimeSlot, 0)
	for _, w := range windows {
		if !model.SameDate(w.Date, date) {
			continue
		}
		for _, s := range w.TimeSlots {
			if _, ok := taken[s.Start]; ok {
				continue
			}
			open = append(open, s)
		}
	}
	return open
}

// Declares reports whether any window on date has a slot starting at clock.
func Declares(windows []model.AvailabilityWindow, date time.Time, clock string) bool {
	for _, w := range windows {
		if !model.SameDate(w.Date, date) {
			continue
		}
		for _, s := range w.TimeSlots {
			if s.Start == clock {
				return true
			}
		}
	}
	return false
}

func bookedTimes(appts []model.Appointment) []string {
	out := make([]string, 0, len(appts))
	for _, a := range appts {
		if a.Status.Active() {
			out = append(out, a.Time)
		}
	}
	return out
}
