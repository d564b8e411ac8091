package availability

import (
	"context"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/storage"
)

type SlotReader interface {
	GetDoctor(ctx context.Context, id string) (model.Doctor, error)
	ListWindowsForDate(ctx context.Context, doctorID string, date time.Time) ([]model.AvailabilityWindow, error)
	ListActiveAppointments(ctx context.Context, doctorID string, date time.Time) ([]model.Appointment, error)
}

// Resolver answers which declared slots are still free. It takes no locks;
// the booking path re-checks at commit time.
type Resolver struct {
	repo SlotReader
}

func NewResolver(repo SlotReader) *Resolver {
	return &Resolver{repo: repo}
}

func (r *Resolver) OpenSlots(ctx context.Context, doctorID, date string) ([]model.TimeSlot, error) {
	if strings.TrimSpace(doctorID) == "" {
		return nil, apperr.Validation("doctor id is required", "doctorId")
	}
	day, err := model.ParseDate(date)
	if err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD", "date")
	}
	if _, err := r.repo.GetDoctor(ctx, doctorID); err != nil {
		if storage.IsNotFound(err) {
			return nil, apperr.NotFound("doctor not found")
		}
		return nil, storage.Failure("load doctor", err)
	}

	windows, err := r.repo.ListWindowsForDate(ctx, doctorID, day)
	if err != nil {
		return nil, storage.Failure("list availability", err)
	}
	booked, err := r.repo.ListActiveAppointments(ctx, doctorID, day)
	if err != nil {
		return nil, storage.Failure("list booked appointments", err)
	}
	return OpenSlots(windows, day, bookedTimes(booked)), nil
}
