package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSenderPostsPayload(t *testing.T) {
	var got map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "secret")
	if err := s.Send(context.Background(), "+15550100", "hello", "appt-1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if got["to"] != "+15550100" || got["body"] != "hello" || got["reference"] != "appt-1" {
		t.Fatalf("unexpected payload: %#v", got)
	}
}

func TestWebhookSenderReportsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookSender(srv.URL, "").Send(context.Background(), "+1", "x", ""); err == nil {
		t.Fatal("expected error for 502")
	}
	if err := NewWebhookSender("", "").Send(context.Background(), "+1", "x", ""); err == nil {
		t.Fatal("expected error without url")
	}
}

func TestNewPicksProvider(t *testing.T) {
	if New("NOOP", "", "").ProviderID() != "sms-noop" {
		t.Fatal("expected noop sender")
	}
	if New("twilio", "http://gw", "").ProviderID() != "sms-webhook" {
		t.Fatal("expected webhook fallback")
	}
}
