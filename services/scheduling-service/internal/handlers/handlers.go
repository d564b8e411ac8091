package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/storage"
)

// DoctorDirectory backs the admin doctor routes.
type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id string) (model.Doctor, error)
	UpsertDoctor(ctx context.Context, d model.Doctor) error
}

type Deps struct {
	Availability *availability.Store
	Slots        *availability.Resolver
	Booking      *booking.Coordinator
	Lifecycle    *lifecycle.Service
	Doctors      DoctorDirectory
	Logger       *slog.Logger
}

type Handler struct {
	availability *availability.Store
	slots        *availability.Resolver
	booking      *booking.Coordinator
	lifecycle    *lifecycle.Service
	doctors      DoctorDirectory
	logger       *slog.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		availability: d.Availability,
		slots:        d.Slots,
		booking:      d.Booking,
		lifecycle:    d.Lifecycle,
		doctors:      d.Doctors,
		logger:       d.Logger,
	}
}

// Routes mounts the public API under /api/v1.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.withActor)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/doctors/{doctorID}", func(r chi.Router) {
			r.Get("/", h.getDoctor)
			r.Put("/", h.putDoctor)

			r.Get("/availability", h.listAvailability)
			r.Post("/availability", h.addAvailability)
			r.Put("/availability", h.editAvailability)
			r.Delete("/availability/{availabilityID}", h.removeAvailability)

			r.Get("/slots", h.openSlots)
		})

		r.Post("/appointments", h.createAppointment)
		r.Get("/appointments", h.listAppointments)
		r.Get("/appointments/{appointmentID}", h.getAppointment)
		r.Patch("/appointments/{appointmentID}", h.updateAppointment)
		r.Delete("/appointments/{appointmentID}", h.deleteAppointment)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, h.logger, apperr.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method_not_allowed", Message: "method not allowed"})
	})
	return r
}

func (h *Handler) getDoctor(w http.ResponseWriter, r *http.Request) {
	d, err := h.doctors.GetDoctor(r.Context(), chi.URLParam(r, "doctorID"))
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, r, h.logger, apperr.NotFound("doctor not found"))
			return
		}
		writeError(w, r, h.logger, storage.Failure("get doctor", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, doctorDTO{ID: d.ID, Name: d.Name, Department: d.Department})
}

func (h *Handler) putDoctor(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if actor.Kind != model.ActorAdmin {
		writeError(w, r, h.logger, apperr.Forbidden("only admins may register doctors"))
		return
	}
	var req doctorDTO
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, r, h.logger, err)
		return
	}
	d := model.Doctor{
		ID:         chi.URLParam(r, "doctorID"),
		Name:       strings.TrimSpace(req.Name),
		Department: strings.TrimSpace(req.Department),
	}
	var missing []string
	if d.Name == "" {
		missing = append(missing, "name")
	}
	if d.Department == "" {
		missing = append(missing, "department")
	}
	if len(missing) > 0 {
		writeError(w, r, h.logger, apperr.Validation("missing required fields", missing...))
		return
	}
	if err := h.doctors.UpsertDoctor(r.Context(), d); err != nil {
		writeError(w, r, h.logger, storage.Failure("upsert doctor", err))
		return
	}
	h.logger.Info("doctor upserted", "doctor_id", d.ID, "actor", actor.String())
	httpx.WriteJSON(w, http.StatusOK, doctorDTO{ID: d.ID, Name: d.Name, Department: d.Department})
}

func (h *Handler) listAvailability(w http.ResponseWriter, r *http.Request) {
	windows, err := h.availability.List(r.Context(), chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"availability": toWindowDTOs(windows)})
}

func (h *Handler) addAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	if err := requireDoctorOrAdmin(r, doctorID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req windowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, r, h.logger, err)
		return
	}
	win, err := h.availability.Add(r.Context(), doctorID, availability.WindowInput{Date: req.Date, TimeSlots: toSlots(req.TimeSlots)})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	windows, err := h.availability.List(r.Context(), doctorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":           win.ID,
		"availability": toWindowDTOs(windows),
	})
}

func (h *Handler) editAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	if err := requireDoctorOrAdmin(r, doctorID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req windowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, r, h.logger, err)
		return
	}
	win, err := h.availability.Edit(r.Context(), doctorID, req.AvailabilityID, availability.WindowInput{Date: req.Date, TimeSlots: toSlots(req.TimeSlots)})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toWindowDTOs([]model.AvailabilityWindow{win})[0])
}

func (h *Handler) removeAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorID")
	if err := requireDoctorOrAdmin(r, doctorID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.availability.Remove(r.Context(), doctorID, chi.URLParam(r, "availabilityID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) openSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	slots, err := h.slots.OpenSlots(r.Context(), chi.URLParam(r, "doctorID"), date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"date": date, "slots": fromSlots(slots)})
}

func (h *Handler) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, r, h.logger, err)
		return
	}
	// A patient may only book for themselves.
	if actor, ok := actorFrom(r.Context()); ok && actor.Kind == model.ActorPatient && req.PatientID != "" && actor.ID != req.PatientID {
		writeError(w, r, h.logger, apperr.Forbidden("patients may only book for themselves"))
		return
	}
	appt, err := h.booking.Create(r.Context(), booking.Request{
		FullName:         req.FullName,
		Email:            req.Email,
		Phone:            req.Phone,
		Date:             req.AppointmentDate,
		Time:             req.AppointmentTime,
		DoctorDepartment: req.DoctorDepartment,
		DoctorName:       req.DoctorName,
		DoctorID:         req.DoctorID,
		PatientID:        req.PatientID,
		Message:          req.Message,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentDTO(appt))
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	f := model.AppointmentFilter{
		DoctorID:  strings.TrimSpace(q.Get("doctorId")),
		PatientID: strings.TrimSpace(q.Get("patientId")),
	}
	if err := scopeToActor(actor, &f); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if raw := q.Get("status"); raw != "" {
		st, ok := model.ParseStatus(raw)
		if !ok {
			writeError(w, r, h.logger, apperr.Validation("unknown status "+strconv.Quote(raw), "status"))
			return
		}
		f.Status = st
	}
	if raw := q.Get("date"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			writeError(w, r, h.logger, apperr.Validation("date must be YYYY-MM-DD", "date"))
			return
		}
		f.Date = &d
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, h.logger, apperr.Validation("limit must be a positive integer", "limit"))
			return
		}
		f.Limit = n
	}

	list, err := h.lifecycle.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]appointmentDTO, len(list))
	for i, a := range list {
		out[i] = toAppointmentDTO(a)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	appt, err := h.lifecycle.Get(r.Context(), chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !canView(actor, appt) {
		writeError(w, r, h.logger, apperr.Forbidden("not a party to this appointment"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentDTO(appt))
}

func (h *Handler) updateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req updateAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, r, h.logger, err)
		return
	}
	st, ok := model.ParseStatus(req.Status)
	if !ok {
		writeError(w, r, h.logger, apperr.Validation("unknown status "+strconv.Quote(req.Status), "status"))
		return
	}
	appt, err := h.lifecycle.Update(r.Context(), chi.URLParam(r, "appointmentID"), lifecycle.Change{
		Status: st,
		Actor:  actor,
		Reason: strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentDTO(appt))
}

func (h *Handler) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.lifecycle.Delete(r.Context(), chi.URLParam(r, "appointmentID"), actor); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
