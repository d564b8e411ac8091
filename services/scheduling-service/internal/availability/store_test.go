package availability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/storage"
)

func newFixture(t *testing.T) (*Store, *Resolver, *storage.MemoryStore) {
	t.Helper()
	mem := storage.NewMemoryStore()
	if err := mem.UpsertDoctor(context.Background(), model.Doctor{ID: "d1", Name: "Grace Hopper", Department: "Neurology"}); err != nil {
		t.Fatalf("seed doctor: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(mem, logger), NewResolver(mem), mem
}

func slots(pairs ...string) []model.TimeSlot {
	var out []model.TimeSlot
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.TimeSlot{Start: pairs[i], End: pairs[i+1]})
	}
	return out
}

func TestStoreAddValidates(t *testing.T) {
	store, _, _ := newFixture(t)
	ctx := context.Background()

	cases := map[string]WindowInput{
		"missing date":    {TimeSlots: slots("09:00", "09:30")},
		"missing slots":   {Date: "2030-07-10"},
		"bad date":        {Date: "10/07/2030", TimeSlots: slots("09:00", "09:30")},
		"start after end": {Date: "2030-07-10", TimeSlots: slots("10:00", "09:30")},
		"equal bounds":    {Date: "2030-07-10", TimeSlots: slots("09:00", "09:00")},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Add(ctx, "d1", in); apperr.KindOf(err) != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := store.Add(ctx, "nobody", WindowInput{Date: "2030-07-10", TimeSlots: slots("09:00", "09:30")}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found for unknown doctor, got %v", err)
	}
}

func TestStoreEditAndRemove(t *testing.T) {
	store, _, _ := newFixture(t)
	ctx := context.Background()

	w, err := store.Add(ctx, "d1", WindowInput{Date: "2030-07-10", TimeSlots: slots("09:00", "09:30")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	edited, err := store.Edit(ctx, "d1", w.ID, WindowInput{Date: "2030-07-11", TimeSlots: slots("13:00", "13:30", "13:30", "14:00")})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if model.FormatDate(edited.Date) != "2030-07-11" || len(edited.TimeSlots) != 2 {
		t.Fatalf("unexpected edited window: %+v", edited)
	}
	if _, err := store.Edit(ctx, "d1", "missing", WindowInput{Date: "2030-07-11", TimeSlots: slots("13:00", "13:30")}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found for unknown window, got %v", err)
	}

	if err := store.Remove(ctx, "d1", w.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Remove(ctx, "d1", w.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found on repeated remove, got %v", err)
	}
	list, err := store.List(ctx, "d1")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v %v", list, err)
	}
}

func TestResolverExcludesBookedAndReopensOnCancel(t *testing.T) {
	store, resolver, mem := newFixture(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, "d1", WindowInput{Date: "2030-06-01", TimeSlots: slots("10:00", "10:30", "10:30", "11:00")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	day := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	appt, err := mem.CreateAppointment(ctx, model.Appointment{DoctorID: "d1", PatientID: "p1", Date: day, Time: "10:00", Status: model.StatusPending})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	open, err := resolver.OpenSlots(ctx, "d1", "2030-06-01")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(open) != 1 || open[0].Start != "10:30" {
		t.Fatalf("expected only 10:30 open, got %+v", open)
	}

	for _, st := range []model.Status{model.StatusCancelled, model.StatusRejected} {
		a, err := mem.CreateAppointment(ctx, model.Appointment{DoctorID: "d1", PatientID: "p2", Date: day, Time: "10:30", Status: model.StatusPending})
		if err != nil {
			t.Fatalf("book 10:30: %v", err)
		}
		if _, err := mem.UpdateAppointmentStatus(ctx, a.ID, model.StatusPending, st, ""); err != nil {
			t.Fatalf("move to %s: %v", st, err)
		}
		open, _ = resolver.OpenSlots(ctx, "d1", "2030-06-01")
		if len(open) != 1 || open[0].Start != "10:30" {
			t.Fatalf("after %s expected 10:30 reopened, got %+v", st, open)
		}
	}

	if _, err := mem.UpdateAppointmentStatus(ctx, appt.ID, model.StatusPending, model.StatusCancelled, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	open, _ = resolver.OpenSlots(ctx, "d1", "2030-06-01")
	if len(open) != 2 {
		t.Fatalf("expected both slots open after cancel, got %+v", open)
	}
}

func TestResolverErrors(t *testing.T) {
	_, resolver, _ := newFixture(t)
	ctx := context.Background()
	if _, err := resolver.OpenSlots(ctx, "d1", "tomorrow"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := resolver.OpenSlots(ctx, "ghost", "2030-06-01"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
