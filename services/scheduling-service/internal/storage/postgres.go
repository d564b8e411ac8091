package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
)

type PgStore struct {
	pool *db.Pool
}

func NewPgStore(pool *db.Pool) *PgStore {
	return &PgStore{pool: pool}
}

var _ Store = (*PgStore)(nil)

type slotJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s *PgStore) GetDoctor(ctx context.Context, id string) (model.Doctor, error) {
	var d model.Doctor
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, department FROM doctors WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Department)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Doctor{}, ErrNotFound
	}
	return d, err
}

func (s *PgStore) FindDoctor(ctx context.Context, id, name, department string) (model.Doctor, error) {
	var d model.Doctor
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, department
		FROM doctors
		WHERE id = $1 AND lower(name) = lower($2) AND lower(department) = lower($3)
	`, id, strings.TrimSpace(name), strings.TrimSpace(department)).Scan(&d.ID, &d.Name, &d.Department)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Doctor{}, ErrNotFound
	}
	return d, err
}

func (s *PgStore) UpsertDoctor(ctx context.Context, d model.Doctor) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO doctors (id, name, department)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, department = EXCLUDED.department, updated_at = now()
	`, d.ID, d.Name, d.Department)
	return err
}

const windowColumns = `id::text, doctor_id, window_date, time_slots, seq, updated_at`

func (s *PgStore) ListWindows(ctx context.Context, doctorID string) ([]model.AvailabilityWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE doctor_id = $1
		ORDER BY seq
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectWindows(rows)
}

func (s *PgStore) ListWindowsForDate(ctx context.Context, doctorID string, date time.Time) ([]model.AvailabilityWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE doctor_id = $1 AND window_date = $2
		ORDER BY seq
	`, doctorID, model.FormatDate(date))
	if err != nil {
		return nil, err
	}
	return collectWindows(rows)
}

func (s *PgStore) InsertWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error) {
	slots, err := encodeSlots(w.TimeSlots)
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO availability_windows (doctor_id, window_date, time_slots)
		VALUES ($1, $2, $3)
		RETURNING `+windowColumns, w.DoctorID, model.FormatDate(w.Date), slots)
	return scanWindow(row)
}

func (s *PgStore) UpdateWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error) {
	if !isUUID(w.ID) {
		return model.AvailabilityWindow{}, ErrNotFound
	}
	slots, err := encodeSlots(w.TimeSlots)
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE availability_windows
		SET window_date = $3, time_slots = $4, updated_at = now()
		WHERE doctor_id = $1 AND id = $2
		RETURNING `+windowColumns, w.DoctorID, w.ID, model.FormatDate(w.Date), slots)
	out, err := scanWindow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AvailabilityWindow{}, ErrNotFound
	}
	return out, err
}

func (s *PgStore) DeleteWindow(ctx context.Context, doctorID, windowID string) error {
	if !isUUID(windowID) {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM availability_windows WHERE doctor_id = $1 AND id = $2
	`, doctorID, windowID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const appointmentColumns = `id::text, doctor_id, patient_id, full_name, email, phone, doctor_name, doctor_department,
	appointment_date, appointment_time, status, message, status_reason, created_at, updated_at`

// CreateAppointment relies on appointments_active_slot_uq to reject a second
// active booking for the same doctor/date/time.
func (s *PgStore) CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(doctor_id, patient_id, full_name, email, phone, doctor_name, doctor_department,
			 appointment_date, appointment_time, status, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+appointmentColumns,
		a.DoctorID, a.PatientID, a.FullName, a.Email, a.Phone, a.DoctorName, a.DoctorDepartment,
		model.FormatDate(a.Date), a.Time, string(a.Status), a.Message)
	out, err := scanAppointment(row)
	if IsConflict(err) {
		return model.Appointment{}, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return out, err
}

func (s *PgStore) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if !isUUID(id) {
		return model.Appointment{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments WHERE id = $1
	`, id)
	out, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	return out, err
}

func (s *PgStore) ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.DoctorID != "" {
		add("doctor_id = $%d", f.DoctorID)
	}
	if f.PatientID != "" {
		add("patient_id = $%d", f.PatientID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Date != nil {
		add("appointment_date = $%d", model.FormatDate(*f.Date))
	}

	sql := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, clampLimit(f.Limit))
	sql += fmt.Sprintf(` ORDER BY appointment_date, appointment_time, created_at LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *PgStore) ListActiveAppointments(ctx context.Context, doctorID string, date time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
			AND appointment_date = $2
			AND status NOT IN ('rejected', 'cancelled')
		ORDER BY appointment_time
	`, doctorID, model.FormatDate(date))
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// UpdateAppointmentStatus only writes when the row is still in status from.
func (s *PgStore) UpdateAppointmentStatus(ctx context.Context, id string, from, to model.Status, reason string) (model.Appointment, error) {
	if !isUUID(id) {
		return model.Appointment{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
			status_reason = CASE WHEN $4 = '' THEN status_reason ELSE $4 END,
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns, id, string(from), string(to), reason)
	out, err := scanAppointment(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return model.Appointment{}, ErrNotFound
	case IsConflict(err):
		return model.Appointment{}, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return out, err
}

func (s *PgStore) DeleteInactiveAppointment(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM appointments WHERE id = $1 AND status IN ('rejected', 'cancelled')
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ids are uuid columns; anything else cannot match a row.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func encodeSlots(slots []model.TimeSlot) ([]byte, error) {
	out := make([]slotJSON, len(slots))
	for i, s := range slots {
		out[i] = slotJSON{Start: s.Start, End: s.End}
	}
	return json.Marshal(out)
}

func scanWindow(row pgx.Row) (model.AvailabilityWindow, error) {
	var (
		w   model.AvailabilityWindow
		raw []byte
	)
	if err := row.Scan(&w.ID, &w.DoctorID, &w.Date, &raw, &w.Seq, &w.UpdatedAt); err != nil {
		return model.AvailabilityWindow{}, err
	}
	var slots []slotJSON
	if err := json.Unmarshal(raw, &slots); err != nil {
		return model.AvailabilityWindow{}, fmt.Errorf("decode time_slots: %w", err)
	}
	w.TimeSlots = make([]model.TimeSlot, len(slots))
	for i, s := range slots {
		w.TimeSlots[i] = model.TimeSlot{Start: s.Start, End: s.End}
	}
	return w, nil
}

func collectWindows(rows pgx.Rows) ([]model.AvailabilityWindow, error) {
	defer rows.Close()
	var out []model.AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a      model.Appointment
		status string
	)
	err := row.Scan(
		&a.ID, &a.DoctorID, &a.PatientID, &a.FullName, &a.Email, &a.Phone, &a.DoctorName, &a.DoctorDepartment,
		&a.Date, &a.Time, &status, &a.Message, &a.StatusReason, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	out := make([]model.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
