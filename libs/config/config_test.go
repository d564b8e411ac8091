package config

import (
	"testing"
	"time"
)

func TestPortValidation(t *testing.T) {
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}

	t.Setenv("TEST_PORT", "")
	p, err := Port("TEST_PORT", "8090")
	if err != nil {
		t.Fatalf("Port failed: %v", err)
	}
	if p != "8090" {
		t.Fatalf("expected fallback port, got %s", p)
	}
}

func TestDurationAcceptsSecondsAndUnits(t *testing.T) {
	t.Setenv("TEST_TTL", "7")
	if got := Duration("TEST_TTL", time.Second); got != 7*time.Second {
		t.Fatalf("expected 7s, got %s", got)
	}
	t.Setenv("TEST_TTL", "250ms")
	if got := Duration("TEST_TTL", time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", got)
	}
	t.Setenv("TEST_TTL", "soon")
	if got := Duration("TEST_TTL", time.Second); got != time.Second {
		t.Fatalf("expected fallback for garbage, got %s", got)
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("TEST_FLAG", "Yes")
	if !Bool("TEST_FLAG", false) {
		t.Fatal("expected true")
	}
	t.Setenv("TEST_FLAG", "maybe")
	if Bool("TEST_FLAG", false) {
		t.Fatal("expected fallback false")
	}

	t.Setenv("TEST_LIST", " a, ,b ,c")
	got := List("TEST_LIST", "")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected list: %#v", got)
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("TEST_DSN", "  ")
	if _, err := RequiredString("TEST_DSN"); err == nil {
		t.Fatal("expected error for blank value")
	}
}
