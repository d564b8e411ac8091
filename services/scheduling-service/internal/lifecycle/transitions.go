package lifecycle

import "github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"

var allowed = map[model.Status][]model.Status{
	model.StatusPending:  {model.StatusAccepted, model.StatusRejected, model.StatusCancelled},
	model.StatusAccepted: {model.StatusCompleted, model.StatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to model.Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// mayPerform checks who is allowed to drive a transition into to. Doctors act
// only on their own appointments and patients only on theirs.
func mayPerform(actor model.Actor, appt model.Appointment, to model.Status) bool {
	switch actor.Kind {
	case model.ActorAdmin:
		return true
	case model.ActorDoctor:
		return actor.ID == appt.DoctorID
	case model.ActorPatient:
		return actor.ID == appt.PatientID && to == model.StatusCancelled
	default:
		return false
	}
}
