// Package seed fills a store with demo doctors and availability.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
)

var departments = []string{
	"Cardiology",
	"Dermatology",
	"General Practice",
	"Neurology",
	"Orthopedics",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

type Writer interface {
	UpsertDoctor(ctx context.Context, d model.Doctor) error
	InsertWindow(ctx context.Context, w model.AvailabilityWindow) (model.AvailabilityWindow, error)
}

type Options struct {
	Doctors int
	Days    int
	// Start is the first day that gets windows; defaults to tomorrow (UTC).
	Start time.Time
	// Seed makes output reproducible when non-zero.
	Seed uint64
}

// Result lists the doctors written, in creation order.
type Result struct {
	Doctors []model.Doctor
	Windows int
}

// Run creates doctors with ids doc-001.. and one morning and one afternoon
// window per day. Doctors are upserted, so reruns refresh names in place.
func Run(ctx context.Context, w Writer, opts Options) (Result, error) {
	if opts.Doctors <= 0 {
		opts.Doctors = 10
	}
	if opts.Days <= 0 {
		opts.Days = 7
	}
	if opts.Start.IsZero() {
		now := time.Now().UTC()
		opts.Start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	}
	faker := gofakeit.New(opts.Seed)

	var res Result
	for i := 1; i <= opts.Doctors; i++ {
		d := model.Doctor{
			ID:         fmt.Sprintf("doc-%03d", i),
			Name:       "Dr. " + faker.FirstName() + " " + faker.LastName(),
			Department: departments[faker.Number(0, len(departments)-1)],
		}
		if err := w.UpsertDoctor(ctx, d); err != nil {
			return res, fmt.Errorf("upsert doctor %s: %w", d.ID, err)
		}
		res.Doctors = append(res.Doctors, d)

		for day := 0; day < opts.Days; day++ {
			date := opts.Start.AddDate(0, 0, day)
			for _, block := range dayBlocks(faker) {
				if _, err := w.InsertWindow(ctx, model.AvailabilityWindow{DoctorID: d.ID, Date: date, TimeSlots: block}); err != nil {
					return res, fmt.Errorf("insert window for %s: %w", d.ID, err)
				}
				res.Windows++
			}
		}
	}
	return res, nil
}

// dayBlocks returns a morning and an afternoon run of 30 minute slots with
// randomized start hours.
func dayBlocks(faker *gofakeit.Faker) [][]model.TimeSlot {
	morning := faker.Number(8, 10)
	afternoon := faker.Number(13, 15)
	return [][]model.TimeSlot{
		halfHours(morning, faker.Number(2, 4)),
		halfHours(afternoon, faker.Number(2, 4)),
	}
}

func halfHours(startHour, count int) []model.TimeSlot {
	slots := make([]model.TimeSlot, 0, count)
	minutes := startHour * 60
	for i := 0; i < count; i++ {
		slots = append(slots, model.TimeSlot{
			Start: clock(minutes),
			End:   clock(minutes + 30),
		})
		minutes += 30
	}
	return slots
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
