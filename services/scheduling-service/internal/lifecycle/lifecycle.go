package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Repository interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, from, to model.Status, reason string) (model.Appointment, error)
	DeleteInactiveAppointment(ctx context.Context, id string) error
}

// Change is a requested status move.
type Change struct {
	Status model.Status
	Actor  model.Actor
	Reason string
}

// Service owns every status change after an appointment is created.
type Service struct {
	repo     Repository
	notifier notify.Dispatcher
	logger   *slog.Logger
}

func NewService(repo Repository, notifier notify.Dispatcher, logger *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// maxAttempts bounds retries when another writer moves the appointment
// between our read and our compare-and-set.
const maxAttempts = 3

func (s *Service) Update(ctx context.Context, id string, ch Change) (model.Appointment, error) {
	ctx, span := otel.Tracer("scheduling-service/lifecycle").Start(ctx, "appointment.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", id),
		attribute.String("appointment.to", string(ch.Status)),
		attribute.String("actor.kind", string(ch.Actor.Kind)),
	)

	updated, from, err := s.transition(ctx, id, ch)
	if err != nil {
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		span.RecordError(err)
		return model.Appointment{}, err
	}

	s.logger.Info("appointment transitioned",
		"appointment_id", updated.ID,
		"from", string(from),
		"to", string(updated.Status),
		"actor", ch.Actor.String(),
	)
	notify.Send(ctx, s.notifier, s.logger, notice(updated, ch.Actor))
	return updated, nil
}

func (s *Service) transition(ctx context.Context, id string, ch Change) (model.Appointment, model.Status, error) {
	if ch.Status == "" {
		return model.Appointment{}, "", apperr.Validation("status is required", "status")
	}
	if ch.Actor.IsZero() {
		return model.Appointment{}, "", apperr.Validation("actor is required", "actor")
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		current, err := s.Get(ctx, id)
		if err != nil {
			return model.Appointment{}, "", err
		}
		if !CanTransition(current.Status, ch.Status) {
			return model.Appointment{}, "", apperr.InvalidTransition(
				fmt.Sprintf("cannot move appointment from %s to %s", current.Status, ch.Status))
		}
		if !mayPerform(ch.Actor, current, ch.Status) {
			return model.Appointment{}, "", apperr.Forbidden(
				fmt.Sprintf("%s may not move this appointment to %s", ch.Actor.Kind, ch.Status))
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, id, current.Status, ch.Status, strings.TrimSpace(ch.Reason))
		if err == nil {
			return updated, current.Status, nil
		}
		if !storage.IsNotFound(err) {
			return model.Appointment{}, "", storage.Failure("update appointment status", err)
		}
		// Lost the race; reread and re-judge against the new status.
	}
	return model.Appointment{}, "", apperr.Conflict("appointment changed concurrently, retry")
}

func (s *Service) Get(ctx context.Context, id string) (model.Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return model.Appointment{}, apperr.Validation("appointment id is required", "id")
	}
	a, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, apperr.NotFound("appointment not found")
		}
		return model.Appointment{}, storage.Failure("get appointment", err)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	list, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, storage.Failure("list appointments", err)
	}
	return list, nil
}

// Delete removes a rejected or cancelled appointment for administrative
// cleanup. Rows that still hold their slot are never deleted.
func (s *Service) Delete(ctx context.Context, id string, actor model.Actor) error {
	if actor.Kind != model.ActorAdmin {
		return apperr.Forbidden("only admins may delete appointments")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status.Active() {
		return apperr.Conflict(fmt.Sprintf("appointment is %s; cancel or reject it first", current.Status))
	}
	if err := s.repo.DeleteInactiveAppointment(ctx, id); err != nil {
		if storage.IsNotFound(err) {
			return apperr.NotFound("appointment not found")
		}
		return storage.Failure("delete appointment", err)
	}
	s.logger.Info("appointment deleted", "appointment_id", id, "status", string(current.Status))
	return nil
}

// notice addresses the other party: the patient when staff act, the doctor
// when the patient acts.
func notice(a model.Appointment, actor model.Actor) notify.Notice {
	if actor.Kind == model.ActorPatient {
		return notify.Notice{
			Recipient:     model.Actor{Kind: model.ActorDoctor, ID: a.DoctorID},
			Type:          notify.TypeAppointment,
			Message:       message(a, actor),
			AppointmentID: a.ID,
		}
	}
	return notify.Notice{
		Recipient:     model.Actor{Kind: model.ActorPatient, ID: a.PatientID},
		Type:          notify.TypeAppointment,
		Message:       message(a, actor),
		AppointmentID: a.ID,
		Email:         a.Email,
		Phone:         a.Phone,
	}
}

func message(a model.Appointment, actor model.Actor) string {
	when := model.FormatDate(a.Date) + " at " + a.Time
	var text string
	switch a.Status {
	case model.StatusAccepted:
		text = fmt.Sprintf("Your appointment with %s on %s was accepted.", a.DoctorName, when)
	case model.StatusRejected:
		text = fmt.Sprintf("Your appointment request with %s on %s was rejected.", a.DoctorName, when)
	case model.StatusCompleted:
		text = fmt.Sprintf("Your appointment with %s on %s is marked completed.", a.DoctorName, when)
	case model.StatusCancelled:
		if actor.Kind == model.ActorPatient {
			text = fmt.Sprintf("%s cancelled the appointment on %s.", a.FullName, when)
		} else {
			text = fmt.Sprintf("Your appointment with %s on %s was cancelled.", a.DoctorName, when)
		}
	default:
		text = fmt.Sprintf("Appointment on %s is now %s.", when, a.Status)
	}
	if a.StatusReason != "" {
		text += " Reason: " + a.StatusReason
	}
	return text
}
