package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/notification-service/internal/storage"
)

type memRepo struct {
	items []storage.Notification
}

func (m *memRepo) List(_ context.Context, f storage.ListFilter) ([]storage.Notification, error) {
	var out []storage.Notification
	for _, n := range m.items {
		if n.RecipientID != f.RecipientID || (f.RecipientKind != "" && n.RecipientKind != f.RecipientKind) || (f.UnreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memRepo) MarkRead(_ context.Context, id, recipientKind, recipientID string) (storage.Notification, error) {
	for i, n := range m.items {
		if n.ID == id && n.RecipientKind == recipientKind && n.RecipientID == recipientID {
			if n.ReadAt == nil {
				at := time.Date(2030, 7, 9, 9, 0, 0, 0, time.UTC)
				m.items[i].ReadAt = &at
			}
			return m.items[i], nil
		}
	}
	return storage.Notification{}, storage.ErrNotFound
}

func newRouter() (http.Handler, *memRepo) {
	repo := &memRepo{items: []storage.Notification{
		{ID: "n1", RecipientKind: "patient", RecipientID: "P1", Type: "appointment", Message: "accepted", DeliveryStatus: storage.DeliveryInApp},
		{ID: "n2", RecipientKind: "patient", RecipientID: "P1", Type: "appointment", Message: "completed", DeliveryStatus: storage.DeliverySent},
		{ID: "n3", RecipientKind: "doctor", RecipientID: "D", Type: "appointment", Message: "new request", DeliveryStatus: storage.DeliveryInApp},
		{ID: "n4", RecipientKind: "doctor", RecipientID: "X", Type: "appointment", Message: "new request", DeliveryStatus: storage.DeliveryInApp},
		{ID: "n5", RecipientKind: "patient", RecipientID: "X", Type: "appointment", Message: "accepted", DeliveryStatus: storage.DeliveryInApp},
	}}
	return New(repo, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes(), repo
}

func request(h http.Handler, method, path, actorKind, actorID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if actorKind != "" {
		req.Header.Set(HeaderActorKind, actorKind)
	}
	if actorID != "" {
		req.Header.Set(HeaderActorID, actorID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func listBody(t *testing.T, rec *httptest.ResponseRecorder) []notificationDTO {
	t.Helper()
	var body struct {
		Notifications []notificationDTO `json:"notifications"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Notifications
}

func TestListAndMarkRead(t *testing.T) {
	h, _ := newRouter()

	rec := request(h, http.MethodGet, "/api/v1/notifications?recipientId=P1&unread=true", "patient", "P1")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	if got := listBody(t, rec); len(got) != 2 {
		t.Fatalf("expected two unread, got %d", len(got))
	}

	rec = request(h, http.MethodPost, "/api/v1/notifications/n1/read", "patient", "P1")
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: %d %s", rec.Code, rec.Body.String())
	}

	got := listBody(t, request(h, http.MethodGet, "/api/v1/notifications?unread=true", "patient", "P1"))
	if len(got) != 1 || got[0].ID != "n2" {
		t.Fatalf("expected only n2 unread, got %+v", got)
	}
}

func TestRecipientsCannotReadOthers(t *testing.T) {
	h, _ := newRouter()
	if rec := request(h, http.MethodGet, "/api/v1/notifications?recipientId=D", "patient", "P1"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := request(h, http.MethodGet, "/api/v1/notifications?recipientId=D", "admin", "root"); rec.Code != http.StatusOK {
		t.Fatalf("expected admin to read, got %d", rec.Code)
	}
	if rec := request(h, http.MethodPost, "/api/v1/notifications/n3/read", "patient", "P1"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 marking another recipient's notification, got %d", rec.Code)
	}
}

func TestListValidation(t *testing.T) {
	h, _ := newRouter()
	if rec := request(h, http.MethodGet, "/api/v1/notifications", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without recipient, got %d", rec.Code)
	}
	if rec := request(h, http.MethodGet, "/api/v1/notifications?recipientId=P1&unread=sometimes", "patient", "P1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad unread flag, got %d", rec.Code)
	}
}

func TestSharedIDsAcrossKindsStaySeparate(t *testing.T) {
	h, _ := newRouter()

	got := listBody(t, request(h, http.MethodGet, "/api/v1/notifications", "patient", "X"))
	if len(got) != 1 || got[0].ID != "n5" {
		t.Fatalf("patient X expected only n5, got %+v", got)
	}
	if rec := request(h, http.MethodGet, "/api/v1/notifications?recipientKind=doctor", "patient", "X"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another kind, got %d", rec.Code)
	}
	if rec := request(h, http.MethodPost, "/api/v1/notifications/n4/read", "patient", "X"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 marking the doctor's notification, got %d", rec.Code)
	}
	if rec := request(h, http.MethodPost, "/api/v1/notifications/n4/read", "doctor", "X"); rec.Code != http.StatusOK {
		t.Fatalf("doctor X mark read: %d %s", rec.Code, rec.Body.String())
	}
	got = listBody(t, request(h, http.MethodGet, "/api/v1/notifications?recipientId=X&recipientKind=doctor", "admin", "root"))
	if len(got) != 1 || got[0].ID != "n4" || !got[0].Read {
		t.Fatalf("admin expected read n4, got %+v", got)
	}
}
