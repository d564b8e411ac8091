package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/apperr"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/storage"
)

var (
	doctor  = model.Actor{Kind: model.ActorDoctor, ID: "D"}
	patient = model.Actor{Kind: model.ActorPatient, ID: "P1"}
	admin   = model.Actor{Kind: model.ActorAdmin, ID: "root"}
)

type fixture struct {
	store    *storage.MemoryStore
	notifier *notify.MemoryDispatcher
	svc      *Service
	slot     int
}

func newFixture() *fixture {
	store := storage.NewMemoryStore()
	notifier := notify.NewMemoryDispatcher(nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{store: store, notifier: notifier, svc: NewService(store, notifier, logger)}
}

// appointmentIn stores an appointment already in status s, each on its own slot.
func (f *fixture) appointmentIn(t *testing.T, s model.Status) model.Appointment {
	t.Helper()
	f.slot++
	a, err := f.store.CreateAppointment(context.Background(), model.Appointment{
		DoctorID:   "D",
		PatientID:  "P1",
		FullName:   "Mary Morstan",
		DoctorName: "John Watson",
		Date:       time.Date(2030, 7, 10, 0, 0, 0, 0, time.UTC),
		Time:       fmt.Sprintf("%02d:00", f.slot%24),
		Status:     s,
	})
	if err != nil {
		t.Fatalf("create appointment in %s: %v", s, err)
	}
	return a
}

func TestTransitionGraphClosure(t *testing.T) {
	valid := map[[2]model.Status]bool{
		{model.StatusPending, model.StatusAccepted}:   true,
		{model.StatusPending, model.StatusRejected}:   true,
		{model.StatusPending, model.StatusCancelled}:  true,
		{model.StatusAccepted, model.StatusCompleted}: true,
		{model.StatusAccepted, model.StatusCancelled}: true,
	}

	for _, from := range model.AllStatuses() {
		for _, to := range model.AllStatuses() {
			name := fmt.Sprintf("%s->%s", from, to)
			t.Run(name, func(t *testing.T) {
				f := newFixture()
				a := f.appointmentIn(t, from)

				got, err := f.svc.Update(context.Background(), a.ID, Change{Status: to, Actor: admin})
				if valid[[2]model.Status{from, to}] {
					if err != nil {
						t.Fatalf("expected success, got %v", err)
					}
					if got.Status != to {
						t.Fatalf("expected status %s, got %s", to, got.Status)
					}
					return
				}
				if apperr.KindOf(err) != apperr.KindInvalidTransition {
					t.Fatalf("expected invalid transition, got %v", err)
				}
				stored, _ := f.store.GetAppointment(context.Background(), a.ID)
				if stored.Status != from {
					t.Fatalf("status changed on a rejected transition: %s", stored.Status)
				}
			})
		}
	}
}

func TestNotificationRecipients(t *testing.T) {
	cases := []struct {
		name  string
		from  model.Status
		to    model.Status
		actor model.Actor
		want  model.Actor
	}{
		{"doctor accepts", model.StatusPending, model.StatusAccepted, doctor, patient},
		{"doctor rejects", model.StatusPending, model.StatusRejected, doctor, patient},
		{"admin completes", model.StatusAccepted, model.StatusCompleted, admin, patient},
		{"patient cancels", model.StatusAccepted, model.StatusCancelled, patient, doctor},
		{"doctor cancels", model.StatusPending, model.StatusCancelled, doctor, patient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			a := f.appointmentIn(t, tc.from)
			if _, err := f.svc.Update(context.Background(), a.ID, Change{Status: tc.to, Actor: tc.actor}); err != nil {
				t.Fatalf("update: %v", err)
			}
			notices := f.notifier.Notices()
			if len(notices) != 1 {
				t.Fatalf("expected exactly one notice, got %d", len(notices))
			}
			n := notices[0]
			if n.Recipient != tc.want || n.Type != notify.TypeAppointment || n.AppointmentID != a.ID {
				t.Fatalf("unexpected notice: %+v", n)
			}
		})
	}
}

func TestActorPermissions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a := f.appointmentIn(t, model.StatusPending)
	if _, err := f.svc.Update(ctx, a.ID, Change{Status: model.StatusAccepted, Actor: patient}); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("patient must not accept, got %v", err)
	}
	other := model.Actor{Kind: model.ActorDoctor, ID: "someone-else"}
	if _, err := f.svc.Update(ctx, a.ID, Change{Status: model.StatusAccepted, Actor: other}); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("foreign doctor must not accept, got %v", err)
	}
	if _, err := f.svc.Update(ctx, a.ID, Change{Status: model.StatusCancelled, Actor: model.Actor{Kind: model.ActorPatient, ID: "P2"}}); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("foreign patient must not cancel, got %v", err)
	}
	if len(f.notifier.Notices()) != 0 {
		t.Fatal("refused transitions must not notify")
	}
	if _, err := f.svc.Update(ctx, a.ID, Change{Status: model.StatusCancelled, Actor: patient, Reason: "feeling better"}); err != nil {
		t.Fatalf("patient cancel: %v", err)
	}
}

func TestUpdateUnknownAppointment(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Update(context.Background(), "missing", Change{Status: model.StatusAccepted, Actor: admin}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNotifyFailureKeepsTransition(t *testing.T) {
	f := newFixture()
	f.notifier.FailWith(fmt.Errorf("queue unavailable"))
	a := f.appointmentIn(t, model.StatusPending)

	got, err := f.svc.Update(context.Background(), a.ID, Change{Status: model.StatusAccepted, Actor: doctor})
	if err != nil {
		t.Fatalf("transition must succeed when notify fails: %v", err)
	}
	if got.Status != model.StatusAccepted {
		t.Fatalf("expected accepted, got %s", got.Status)
	}
}

func TestConcurrentDecisionsOnlyOneWins(t *testing.T) {
	f := newFixture()
	a := f.appointmentIn(t, model.StatusPending)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, to := range []model.Status{model.StatusAccepted, model.StatusRejected} {
		wg.Add(1)
		go func(i int, to model.Status) {
			defer wg.Done()
			_, results[i] = f.svc.Update(context.Background(), a.ID, Change{Status: to, Actor: doctor})
		}(i, to)
	}
	wg.Wait()

	var ok, invalid int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case apperr.KindOf(err) == apperr.KindInvalidTransition:
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || invalid != 1 {
		t.Fatalf("ok=%d invalid=%d", ok, invalid)
	}
	if len(f.notifier.Notices()) != 1 {
		t.Fatalf("expected one notice, got %d", len(f.notifier.Notices()))
	}
}

func TestDeleteOnlyInactiveByAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	active := f.appointmentIn(t, model.StatusCompleted)
	if err := f.svc.Delete(ctx, active.ID, admin); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for completed appointment, got %v", err)
	}

	cancelled := f.appointmentIn(t, model.StatusCancelled)
	if err := f.svc.Delete(ctx, cancelled.ID, doctor); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden for non-admin, got %v", err)
	}
	if err := f.svc.Delete(ctx, cancelled.ID, admin); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, cancelled.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected deleted appointment to be gone, got %v", err)
	}
}

func TestMessageIncludesReason(t *testing.T) {
	a := model.Appointment{
		DoctorName:   "John Watson",
		FullName:     "Mary Morstan",
		Date:         time.Date(2030, 7, 10, 0, 0, 0, 0, time.UTC),
		Time:         "09:00",
		Status:       model.StatusCancelled,
		StatusReason: "travel",
	}
	got := message(a, patient)
	want := "Mary Morstan cancelled the appointment on 2030-07-10 at 09:00. Reason: travel"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
