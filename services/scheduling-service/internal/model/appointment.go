package model

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var statuses = []Status{StatusPending, StatusAccepted, StatusRejected, StatusCompleted, StatusCancelled}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// ParseStatus accepts any letter case, so "Accepted" and "accepted" match.
func ParseStatus(s string) (Status, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Active reports whether an appointment in this status still holds its slot.
func (s Status) Active() bool {
	return s != StatusRejected && s != StatusCancelled
}

type Appointment struct {
	ID               string
	DoctorID         string
	PatientID        string
	FullName         string
	Email            string
	Phone            string
	DoctorName       string
	DoctorDepartment string
	Date             time.Time // calendar date at UTC midnight
	Time             string    // HH:MM, matched verbatim against slot starts
	Status           Status
	Message          string
	StatusReason     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SlotKey identifies the (doctor, date, time) cell an active appointment occupies.
func (a Appointment) SlotKey() string {
	return SlotKey(a.DoctorID, a.Date, a.Time)
}

func SlotKey(doctorID string, date time.Time, clock string) string {
	return doctorID + "|" + FormatDate(date) + "|" + clock
}

type AppointmentFilter struct {
	DoctorID  string
	PatientID string
	Status    Status
	Date      *time.Time
	Limit     int
}
