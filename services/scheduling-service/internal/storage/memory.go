package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
)

// MemoryStore keeps everything in process. The active-slot index is checked
// and written under the same lock as the appointment, which gives it the
// same guarantee as the partial unique index in Postgres.
type MemoryStore struct {
	mu           sync.RWMutex
	now          func() time.Time
	seq          int64
	doctors      map[string]model.Doctor
	windows      map[string][]model.AvailabilityWindow
	appointments map[string]model.Appointment
	activeSlots  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:          func() time.Time { return time.Now().UTC() },
		doctors:      map[string]model.Doctor{},
		windows:      map[string][]model.AvailabilityWindow{},
		appointments: map[string]model.Appointment{},
		activeSlots:  map[string]string{},
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) GetDoctor(_ context.Context, id string) (model.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doctors[id]
	if !ok {
		return model.Doctor{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) FindDoctor(ctx context.Context, id, name, department string) (model.Doctor, error) {
	d, err := s.GetDoctor(ctx, id)
	if err != nil {
		return model.Doctor{}, err
	}
	if !strings.EqualFold(d.Name, strings.TrimSpace(name)) || !strings.EqualFold(d.Department, strings.TrimSpace(department)) {
		return model.Doctor{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) UpsertDoctor(_ context.Context, d model.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors[d.ID] = d
	return nil
}

func (s *MemoryStore) ListWindows(_ context.Context, doctorID string) ([]model.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneWindows(s.windows[doctorID], nil), nil
}

func (s *MemoryStore) ListWindowsForDate(_ context.Context, doctorID string, date time.Time) ([]model.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneWindows(s.windows[doctorID], func(w model.AvailabilityWindow) bool {
		return model.SameDate(w.Date, date)
	}), nil
}

func (s *MemoryStore) InsertWindow(_ context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	w.ID = uuid.NewString()
	w.Seq = s.seq
	w.UpdatedAt = s.now()
	w.TimeSlots = append([]model.TimeSlot(nil), w.TimeSlots...)
	s.windows[w.DoctorID] = append(s.windows[w.DoctorID], w)
	return w, nil
}

func (s *MemoryStore) UpdateWindow(_ context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.windows[w.DoctorID]
	for i := range list {
		if list[i].ID != w.ID {
			continue
		}
		list[i].Date = w.Date
		list[i].TimeSlots = append([]model.TimeSlot(nil), w.TimeSlots...)
		list[i].UpdatedAt = s.now()
		return cloneWindows(list[i:i+1], nil)[0], nil
	}
	return model.AvailabilityWindow{}, ErrNotFound
}

func (s *MemoryStore) DeleteWindow(_ context.Context, doctorID, windowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.windows[doctorID]
	for i := range list {
		if list[i].ID == windowID {
			s.windows[doctorID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) CreateAppointment(_ context.Context, a model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.SlotKey()
	if a.Status.Active() {
		if _, taken := s.activeSlots[key]; taken {
			return model.Appointment{}, ErrConflict
		}
	}
	a.ID = uuid.NewString()
	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	s.appointments[a.ID] = a
	if a.Status.Active() {
		s.activeSlots[key] = a.ID
	}
	return a, nil
}

func (s *MemoryStore) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) ListAppointments(_ context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	s.mu.RLock()
	out := make([]model.Appointment, 0)
	for _, a := range s.appointments {
		if f.DoctorID != "" && a.DoctorID != f.DoctorID {
			continue
		}
		if f.PatientID != "" && a.PatientID != f.PatientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Date != nil && !model.SameDate(a.Date, *f.Date) {
			continue
		}
		out = append(out, a)
	}
	s.mu.RUnlock()

	sortAppointments(out)
	if limit := clampLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListActiveAppointments(_ context.Context, doctorID string, date time.Time) ([]model.Appointment, error) {
	s.mu.RLock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.DoctorID == doctorID && a.Status.Active() && model.SameDate(a.Date, date) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()
	sortAppointments(out)
	return out, nil
}

func (s *MemoryStore) UpdateAppointmentStatus(_ context.Context, id string, from, to model.Status, reason string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok || a.Status != from {
		return model.Appointment{}, ErrNotFound
	}
	key := a.SlotKey()
	if !from.Active() && to.Active() {
		if _, taken := s.activeSlots[key]; taken {
			return model.Appointment{}, ErrConflict
		}
		s.activeSlots[key] = a.ID
	}
	if from.Active() && !to.Active() {
		delete(s.activeSlots, key)
	}
	a.Status = to
	if reason != "" {
		a.StatusReason = reason
	}
	a.UpdatedAt = s.now()
	s.appointments[id] = a
	return a, nil
}

func (s *MemoryStore) DeleteInactiveAppointment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok || a.Status.Active() {
		return ErrNotFound
	}
	delete(s.appointments, id)
	return nil
}

func cloneWindows(in []model.AvailabilityWindow, keep func(model.AvailabilityWindow) bool) []model.AvailabilityWindow {
	out := make([]model.AvailabilityWindow, 0, len(in))
	for _, w := range in {
		if keep != nil && !keep(w) {
			continue
		}
		w.TimeSlots = append([]model.TimeSlot(nil), w.TimeSlots...)
		out = append(out, w)
	}
	return out
}

func sortAppointments(list []model.Appointment) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
