package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
)

// Store is everything the scheduling core persists. Implementations return
// ErrNotFound and ErrConflict (or driver errors they classify as such).
type Store interface {
	GetDoctor(ctx context.Context, id string) (model.Doctor, error)
	FindDoctor(ctx context.Context, id, name, department string) (model.Doctor, error)
	UpsertDoctor(ctx context.Context, d model.Doctor) error

	ListWindows(ctx context.Context, doctorID string) ([]model.AvailabilityWindow, error)
	ListWindowsForDate(ctx context.Context, doctorID string, date time.Time) ([]model.AvailabilityWindow, error)
	InsertWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error)
	UpdateWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, doctorID, windowID string) error

	CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error)
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
	ListActiveAppointments(ctx context.Context, doctorID string, date time.Time) ([]model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, from, to model.Status, reason string) (model.Appointment, error)
	DeleteInactiveAppointment(ctx context.Context, id string) error
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	default:
		return n
	}
}
