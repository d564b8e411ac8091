package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
)

const secret = "test-secret"

func newGateway(t *testing.T) (http.Handler, *[]http.Header) {
	t.Helper()
	var seen []http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Clone())
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(upstream.Close)
	target, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	mux := http.NewServeMux()
	verifier := &auth.Verifier{Secret: secret}
	registerRoutes(mux, upstreams{scheduling: target, notification: target}, verifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return mux, &seen
}

func tokenFor(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := auth.SignHS256(auth.NewClaims(sub, role, time.Now(), time.Hour), secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestGatewayMapsClaimsToActorHeaders(t *testing.T) {
	h, seen := newGateway(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/appointments/a1", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "D", "doctor"))
	req.Header.Set(headerActorKind, "admin")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if len(*seen) != 1 {
		t.Fatalf("expected one upstream call, got %d", len(*seen))
	}
	got := (*seen)[0]
	if got.Get(headerActorKind) != "doctor" || got.Get(headerActorID) != "D" {
		t.Fatalf("expected verified actor headers, got kind=%q id=%q", got.Get(headerActorKind), got.Get(headerActorID))
	}
}

func TestGatewayAuthPolicies(t *testing.T) {
	h, seen := newGateway(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{name: "anonymous slot lookup", method: http.MethodGet, path: "/api/v1/doctors/D/slots?date=2030-07-10", want: http.StatusOK},
		{name: "anonymous availability change", method: http.MethodPost, path: "/api/v1/doctors/D/availability", want: http.StatusUnauthorized},
		{name: "anonymous booking", method: http.MethodPost, path: "/api/v1/appointments", want: http.StatusUnauthorized},
		{name: "bad token on public read", method: http.MethodGet, path: "/api/v1/doctors/D", token: "garbage", want: http.StatusUnauthorized},
		{name: "unknown role", method: http.MethodGet, path: "/api/v1/notifications", token: tokenFor(t, "X", "owner"), want: http.StatusForbidden},
		{name: "patient notifications", method: http.MethodGet, path: "/api/v1/notifications", token: tokenFor(t, "P1", "patient"), want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set(headerActorID, "spoofed")
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
	for _, hdr := range *seen {
		if hdr.Get(headerActorID) == "spoofed" {
			t.Fatal("client supplied actor header reached upstream")
		}
	}
}
