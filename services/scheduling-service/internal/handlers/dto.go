package handlers

import (
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
)

type timeSlotDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type windowDTO struct {
	ID        string        `json:"id"`
	Date      string        `json:"date"`
	TimeSlots []timeSlotDTO `json:"timeSlots"`
}

type windowRequest struct {
	AvailabilityID string        `json:"availabilityId,omitempty"`
	Date           string        `json:"date"`
	TimeSlots      []timeSlotDTO `json:"timeSlots"`
}

type doctorDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

type createAppointmentRequest struct {
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	AppointmentDate  string `json:"appointmentDate"`
	AppointmentTime  string `json:"appointmentTime"`
	DoctorDepartment string `json:"doctorDepartment"`
	DoctorName       string `json:"doctorName"`
	DoctorID         string `json:"doctorId"`
	PatientID        string `json:"patientId"`
	Message          string `json:"message"`
}

type updateAppointmentRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type appointmentDTO struct {
	ID               string `json:"id"`
	DoctorID         string `json:"doctorId"`
	PatientID        string `json:"patientId"`
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	DoctorName       string `json:"doctorName"`
	DoctorDepartment string `json:"doctorDepartment"`
	AppointmentDate  string `json:"appointmentDate"`
	AppointmentTime  string `json:"appointmentTime"`
	Status           string `json:"status"`
	Message          string `json:"message,omitempty"`
	StatusReason     string `json:"statusReason,omitempty"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

func toSlots(in []timeSlotDTO) []model.TimeSlot {
	out := make([]model.TimeSlot, len(in))
	for i, s := range in {
		out[i] = model.TimeSlot{Start: s.Start, End: s.End}
	}
	return out
}

func fromSlots(in []model.TimeSlot) []timeSlotDTO {
	out := make([]timeSlotDTO, len(in))
	for i, s := range in {
		out[i] = timeSlotDTO{Start: s.Start, End: s.End}
	}
	return out
}

func toWindowDTOs(in []model.AvailabilityWindow) []windowDTO {
	out := make([]windowDTO, len(in))
	for i, w := range in {
		out[i] = windowDTO{ID: w.ID, Date: model.FormatDate(w.Date), TimeSlots: fromSlots(w.TimeSlots)}
	}
	return out
}

func toAppointmentDTO(a model.Appointment) appointmentDTO {
	return appointmentDTO{
		ID:               a.ID,
		DoctorID:         a.DoctorID,
		PatientID:        a.PatientID,
		FullName:         a.FullName,
		Email:            a.Email,
		Phone:            a.Phone,
		DoctorName:       a.DoctorName,
		DoctorDepartment: a.DoctorDepartment,
		AppointmentDate:  model.FormatDate(a.Date),
		AppointmentTime:  a.Time,
		Status:           string(a.Status),
		Message:          a.Message,
		StatusReason:     a.StatusReason,
		CreatedAt:        a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
