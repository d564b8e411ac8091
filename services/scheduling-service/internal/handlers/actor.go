package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
)

// Identity is established upstream; the gateway forwards it in these headers.
const (
	HeaderActorKind = "X-Actor-Kind"
	HeaderActorID   = "X-Actor-Id"
)

type actorKey struct{}

func actorFrom(ctx context.Context) (model.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(model.Actor)
	return a, ok
}

// withActor parses the actor headers when present. Routes that need an
// actor check for it themselves.
func (h *Handler) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKind := r.Header.Get(HeaderActorKind)
		if rawKind == "" {
			next.ServeHTTP(w, r)
			return
		}
		kind, ok := model.ParseActorKind(rawKind)
		id := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if !ok || id == "" {
			writeError(w, r, h.logger, apperr.Validation("X-Actor-Kind must be doctor, patient or admin and X-Actor-Id must be set", "actor"))
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, model.Actor{Kind: kind, ID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireActor(r *http.Request) (model.Actor, error) {
	a, ok := actorFrom(r.Context())
	if !ok {
		return model.Actor{}, apperr.Validation("actor headers are required", "actor")
	}
	return a, nil
}

// requireDoctorOrAdmin allows the doctor named by doctorID, or any admin.
func requireDoctorOrAdmin(r *http.Request, doctorID string) error {
	a, err := requireActor(r)
	if err != nil {
		return err
	}
	if a.Kind == model.ActorAdmin || (a.Kind == model.ActorDoctor && a.ID == doctorID) {
		return nil
	}
	return apperr.Forbidden("only the doctor or an admin may change this availability")
}

// scopeToActor narrows a listing to the caller's own appointments. Admins
// see everything; asking for another party's appointments is Forbidden.
func scopeToActor(a model.Actor, f *model.AppointmentFilter) error {
	switch a.Kind {
	case model.ActorPatient:
		if f.PatientID != "" && f.PatientID != a.ID {
			return apperr.Forbidden("patients may only list their own appointments")
		}
		f.PatientID = a.ID
	case model.ActorDoctor:
		if f.DoctorID != "" && f.DoctorID != a.ID {
			return apperr.Forbidden("doctors may only list their own appointments")
		}
		f.DoctorID = a.ID
	}
	return nil
}

func canView(a model.Actor, appt model.Appointment) bool {
	switch a.Kind {
	case model.ActorAdmin:
		return true
	case model.ActorDoctor:
		return a.ID == appt.DoctorID
	case model.ActorPatient:
		return a.ID == appt.PatientID
	}
	return false
}
