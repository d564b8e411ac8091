package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfSeesThroughWrapping(t *testing.T) {
	base := Conflict("doctor already booked for this date/time")
	wrapped := fmt.Errorf("create appointment: %w", base)
	if KindOf(wrapped) != KindConflict {
		t.Fatalf("expected conflict, got %s", KindOf(wrapped))
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatal("unclassified errors must be internal")
	}
	if Is(nil, KindInternal) {
		t.Fatal("nil is not an error of any kind")
	}
}

func TestValidationSortsFields(t *testing.T) {
	err := Validation("missing required fields", "phone", "email", "doctorId")
	want := []string{"doctorId", "email", "phone"}
	for i, f := range want {
		if err.Fields[i] != f {
			t.Fatalf("unexpected fields %v", err.Fields)
		}
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("appointment store unavailable", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
}
