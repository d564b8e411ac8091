package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/storage"
)

type Repository interface {
	GetDoctor(ctx context.Context, id string) (model.Doctor, error)
	ListWindows(ctx context.Context, doctorID string) ([]model.AvailabilityWindow, error)
	InsertWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error)
	UpdateWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, doctorID, windowID string) error
}

// Store manages doctors' declared windows. Concurrent edits are last writer wins.
type Store struct {
	repo   Repository
	logger *slog.Logger
}

func NewStore(repo Repository, logger *slog.Logger) *Store {
	return &Store{repo: repo, logger: logger}
}

// WindowInput is an unvalidated date plus slots as received from a caller.
type WindowInput struct {
	Date      string
	TimeSlots []model.TimeSlot
}

func (s *Store) List(ctx context.Context, doctorID string) ([]model.AvailabilityWindow, error) {
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	windows, err := s.repo.ListWindows(ctx, doctorID)
	if err != nil {
		return nil, storage.Failure("list availability", err)
	}
	return windows, nil
}

// Add appends a window. Windows for the same date are neither merged nor
// checked for overlap.
func (s *Store) Add(ctx context.Context, doctorID string, in WindowInput) (model.AvailabilityWindow, error) {
	date, err := validateWindow(in)
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return model.AvailabilityWindow{}, err
	}
	w, err := s.repo.InsertWindow(ctx, model.AvailabilityWindow{DoctorID: doctorID, Date: date, TimeSlots: in.TimeSlots})
	if err != nil {
		return model.AvailabilityWindow{}, storage.Failure("add availability", err)
	}
	s.logger.Info("availability window added", "doctor_id", doctorID, "window_id", w.ID, "date", model.FormatDate(date), "slots", len(w.TimeSlots))
	return w, nil
}

func (s *Store) Edit(ctx context.Context, doctorID, windowID string, in WindowInput) (model.AvailabilityWindow, error) {
	if strings.TrimSpace(windowID) == "" {
		return model.AvailabilityWindow{}, apperr.Validation("availabilityId is required", "availabilityId")
	}
	date, err := validateWindow(in)
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return model.AvailabilityWindow{}, err
	}
	w, err := s.repo.UpdateWindow(ctx, model.AvailabilityWindow{ID: windowID, DoctorID: doctorID, Date: date, TimeSlots: in.TimeSlots})
	if err != nil {
		if storage.IsNotFound(err) {
			return model.AvailabilityWindow{}, apperr.NotFound("availability window not found")
		}
		return model.AvailabilityWindow{}, storage.Failure("edit availability", err)
	}
	s.logger.Info("availability window updated", "doctor_id", doctorID, "window_id", windowID)
	return w, nil
}

func (s *Store) Remove(ctx context.Context, doctorID, windowID string) error {
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return err
	}
	if err := s.repo.DeleteWindow(ctx, doctorID, windowID); err != nil {
		if storage.IsNotFound(err) {
			return apperr.NotFound("availability window not found")
		}
		return storage.Failure("remove availability", err)
	}
	s.logger.Info("availability window removed", "doctor_id", doctorID, "window_id", windowID)
	return nil
}

func (s *Store) requireDoctor(ctx context.Context, doctorID string) error {
	if strings.TrimSpace(doctorID) == "" {
		return apperr.Validation("doctor id is required", "doctorId")
	}
	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		if storage.IsNotFound(err) {
			return apperr.NotFound("doctor not found")
		}
		return storage.Failure("load doctor", err)
	}
	return nil
}

func validateWindow(in WindowInput) (time.Time, error) {
	var missing []string
	if strings.TrimSpace(in.Date) == "" {
		missing = append(missing, "date")
	}
	if len(in.TimeSlots) == 0 {
		missing = append(missing, "timeSlots")
	}
	if len(missing) > 0 {
		return time.Time{}, apperr.Validation("missing required fields: "+strings.Join(missing, ", "), missing...)
	}
	date, err := model.ParseDate(in.Date)
	if err != nil {
		return time.Time{}, apperr.Validation("date must be YYYY-MM-DD", "date")
	}
	var problems []error
	for i, slot := range in.TimeSlots {
		if err := slot.Validate(); err != nil {
			problems = append(problems, fmt.Errorf("timeSlots[%d]: %w", i, err))
		}
	}
	if len(problems) > 0 {
		return time.Time{}, apperr.Validation(errors.Join(problems...).Error(), "timeSlots")
	}
	return date, nil
}
