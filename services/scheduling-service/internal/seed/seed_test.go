package seed

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/storage"
)

func TestRunWritesValidWindows(t *testing.T) {
	store := storage.NewMemoryStore()
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	res, err := Run(context.Background(), store, Options{Doctors: 3, Days: 2, Start: start, Seed: 42})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Doctors) != 3 || res.Windows != 12 {
		t.Fatalf("unexpected result: doctors=%d windows=%d", len(res.Doctors), res.Windows)
	}

	for _, d := range res.Doctors {
		windows, _ := store.ListWindows(context.Background(), d.ID)
		if len(windows) != 4 {
			t.Fatalf("%s: expected 4 windows, got %d", d.ID, len(windows))
		}
		for _, w := range windows {
			for _, s := range w.TimeSlots {
				if err := s.Validate(); err != nil {
					t.Fatalf("%s: invalid slot %+v: %v", d.ID, s, err)
				}
			}
		}
	}
}

func TestRunIsReproducibleWithSeed(t *testing.T) {
	opts := Options{Doctors: 2, Days: 1, Start: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Seed: 7}
	a, _ := Run(context.Background(), storage.NewMemoryStore(), opts)
	b, _ := Run(context.Background(), storage.NewMemoryStore(), opts)
	for i := range a.Doctors {
		if a.Doctors[i] != b.Doctors[i] {
			t.Fatalf("expected identical doctors, got %+v and %+v", a.Doctors[i], b.Doctors[i])
		}
	}
}
