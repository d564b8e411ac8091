package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/redisx"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const msgAlreadyBooked = "doctor already booked for this date/time"

type Repository interface {
	FindDoctor(ctx context.Context, id, name, department string) (model.Doctor, error)
	ListWindowsForDate(ctx context.Context, doctorID string, date time.Time) ([]model.AvailabilityWindow, error)
	CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error)
}

type Config struct {
	// Location decides where "today" starts. Defaults to UTC.
	Location *time.Location
	// RequireDeclaredSlot rejects times that no availability window declares.
	RequireDeclaredSlot bool
	Now                 func() time.Time
}

// Request mirrors the booking form.
type Request struct {
	FullName         string
	Email            string
	Phone            string
	Date             string
	Time             string
	DoctorDepartment string
	DoctorName       string
	DoctorID         string
	PatientID        string
	Message          string
}

type Coordinator struct {
	repo     Repository
	locker   redisx.Locker
	notifier notify.Dispatcher
	logger   *slog.Logger
	cfg      Config
}

// NewCoordinator wires the booking path. locker may be nil; the store's
// uniqueness rule still rejects a second active booking.
func NewCoordinator(repo Repository, locker redisx.Locker, notifier notify.Dispatcher, logger *slog.Logger, cfg Config) *Coordinator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Coordinator{repo: repo, locker: locker, notifier: notifier, logger: logger, cfg: cfg}
}

func (c *Coordinator) Create(ctx context.Context, req Request) (model.Appointment, error) {
	ctx, span := otel.Tracer("scheduling-service/booking").Start(ctx, "booking.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("doctor.id", req.DoctorID),
		attribute.String("appointment.date", req.Date),
		attribute.String("appointment.time", req.Time),
	)

	appt, err := c.create(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		span.RecordError(err)
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID))

	notify.Send(ctx, c.notifier, c.logger, notify.Notice{
		Recipient:     model.Actor{Kind: model.ActorDoctor, ID: appt.DoctorID},
		Type:          notify.TypeAppointment,
		Message:       fmt.Sprintf("New appointment request from %s on %s at %s.", appt.FullName, model.FormatDate(appt.Date), appt.Time),
		AppointmentID: appt.ID,
	})
	return appt, nil
}

func (c *Coordinator) create(ctx context.Context, req Request) (model.Appointment, error) {
	req = trimRequest(req)
	date, err := validate(req)
	if err != nil {
		return model.Appointment{}, err
	}

	doctor, err := c.repo.FindDoctor(ctx, req.DoctorID, req.DoctorName, req.DoctorDepartment)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, apperr.NotFound("doctor not found")
		}
		return model.Appointment{}, storage.Failure("find doctor", err)
	}

	today := c.cfg.Now().In(c.cfg.Location).Format(model.DateLayout)
	if model.FormatDate(date) <= today {
		return model.Appointment{}, apperr.Validation("appointmentDate must be after today", "appointmentDate")
	}

	if c.cfg.RequireDeclaredSlot {
		windows, err := c.repo.ListWindowsForDate(ctx, doctor.ID, date)
		if err != nil {
			return model.Appointment{}, storage.Failure("list availability", err)
		}
		if !availability.Declares(windows, date, req.Time) {
			return model.Appointment{}, apperr.Validation("appointmentTime is not a declared slot for this date", "appointmentTime")
		}
	}

	appt := model.Appointment{
		DoctorID:         doctor.ID,
		PatientID:        req.PatientID,
		FullName:         req.FullName,
		Email:            req.Email,
		Phone:            req.Phone,
		DoctorName:       doctor.Name,
		DoctorDepartment: doctor.Department,
		Date:             date,
		Time:             req.Time,
		Status:           model.StatusPending,
		Message:          req.Message,
	}
	created, err := c.insert(ctx, appt)
	if err != nil {
		return model.Appointment{}, err
	}
	c.logger.Info("appointment requested",
		"appointment_id", created.ID,
		"doctor_id", created.DoctorID,
		"patient_id", created.PatientID,
		"date", model.FormatDate(created.Date),
		"time", created.Time,
	)
	return created, nil
}

// insert commits under the slot lock when one is configured. The lock only
// thins out contention; the store enforces uniqueness either way.
func (c *Coordinator) insert(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	var created model.Appointment
	write := func(ctx context.Context) error {
		var err error
		created, err = c.repo.CreateAppointment(ctx, appt)
		return err
	}

	var err error
	if c.locker != nil {
		err = c.locker.WithLock(ctx, appt.SlotKey(), write)
		switch {
		case errors.Is(err, redisx.ErrLockNotAcquired):
			return model.Appointment{}, apperr.Conflict(msgAlreadyBooked)
		case isLockFailure(err):
			c.logger.Warn("slot lock unavailable, relying on store uniqueness", "err", err)
			err = write(ctx)
		}
	} else {
		err = write(ctx)
	}

	if err != nil {
		if storage.IsConflict(err) {
			return model.Appointment{}, apperr.Conflict(msgAlreadyBooked)
		}
		return model.Appointment{}, storage.Failure("create appointment", err)
	}
	return created, nil
}

func isLockFailure(err error) bool {
	var lockErr *redisx.LockError
	return errors.As(err, &lockErr)
}

func trimRequest(r Request) Request {
	return Request{
		FullName:         strings.TrimSpace(r.FullName),
		Email:            strings.TrimSpace(r.Email),
		Phone:            strings.TrimSpace(r.Phone),
		Date:             strings.TrimSpace(r.Date),
		Time:             strings.TrimSpace(r.Time),
		DoctorDepartment: strings.TrimSpace(r.DoctorDepartment),
		DoctorName:       strings.TrimSpace(r.DoctorName),
		DoctorID:         strings.TrimSpace(r.DoctorID),
		PatientID:        strings.TrimSpace(r.PatientID),
		Message:          strings.TrimSpace(r.Message),
	}
}

func validate(r Request) (time.Time, error) {
	required := []struct {
		field, value string
	}{
		{"fullName", r.FullName},
		{"email", r.Email},
		{"phone", r.Phone},
		{"appointmentDate", r.Date},
		{"appointmentTime", r.Time},
		{"doctorDepartment", r.DoctorDepartment},
		{"doctorName", r.DoctorName},
		{"patientId", r.PatientID},
		{"doctorId", r.DoctorID},
	}
	var missing []string
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.field)
		}
	}
	if len(missing) > 0 {
		return time.Time{}, apperr.Validation("missing required fields: "+strings.Join(missing, ", "), missing...)
	}

	var bad []string
	date, err := model.ParseDate(r.Date)
	if err != nil {
		bad = append(bad, "appointmentDate")
	}
	if _, err := model.ParseClock(r.Time); err != nil {
		bad = append(bad, "appointmentTime")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		bad = append(bad, "email")
	}
	if len(bad) > 0 {
		return time.Time{}, apperr.Validation("malformed fields: "+strings.Join(bad, ", "), bad...)
	}
	return date, nil
}
