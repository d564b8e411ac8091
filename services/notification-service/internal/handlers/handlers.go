package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/notification-service/internal/storage"
)

const (
	HeaderActorKind = "X-Actor-Kind"
	HeaderActorID   = "X-Actor-Id"
)

type Repository interface {
	List(ctx context.Context, f storage.ListFilter) ([]storage.Notification, error)
	MarkRead(ctx context.Context, id, recipientKind, recipientID string) (storage.Notification, error)
}

type Handler struct {
	repo   Repository
	logger *slog.Logger
}

func New(repo Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/notifications", h.list)
	r.Post("/api/v1/notifications/{notificationID}/read", h.markRead)
	return r
}

type notificationDTO struct {
	ID             string  `json:"id"`
	RecipientKind  string  `json:"recipientKind"`
	RecipientID    string  `json:"recipientId"`
	Type           string  `json:"type"`
	Message        string  `json:"message"`
	AppointmentID  string  `json:"appointmentId,omitempty"`
	DeliveryStatus string  `json:"deliveryStatus"`
	Read           bool    `json:"read"`
	ReadAt         *string `json:"readAt,omitempty"`
	CreatedAt      string  `json:"createdAt"`
}

func toDTO(n storage.Notification) notificationDTO {
	out := notificationDTO{
		ID:             n.ID,
		RecipientKind:  n.RecipientKind,
		RecipientID:    n.RecipientID,
		Type:           n.Type,
		Message:        n.Message,
		AppointmentID:  n.AppointmentID,
		DeliveryStatus: n.DeliveryStatus,
		Read:           n.ReadAt != nil,
		CreatedAt:      n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.ReadAt != nil {
		s := n.ReadAt.UTC().Format(time.RFC3339)
		out.ReadAt = &s
	}
	return out
}

// list returns a recipient's notifications, newest first. Non-admin callers
// may only read their own, matched on both id and kind.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actorKind, actorID, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "validation", "actor headers are required")
		return
	}

	f := storage.ListFilter{
		RecipientID:   strings.TrimSpace(q.Get("recipientId")),
		RecipientKind: strings.ToLower(strings.TrimSpace(q.Get("recipientKind"))),
	}
	if actorKind != "admin" {
		if (f.RecipientID != "" && f.RecipientID != actorID) || (f.RecipientKind != "" && f.RecipientKind != actorKind) {
			writeError(w, http.StatusForbidden, "forbidden", "cannot read another recipient's notifications")
			return
		}
		f.RecipientID = actorID
		f.RecipientKind = actorKind
	}
	if f.RecipientID == "" {
		writeError(w, http.StatusBadRequest, "validation", "recipientId is required")
		return
	}

	if raw := q.Get("unread"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "unread must be true or false")
			return
		}
		f.UnreadOnly = unread
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "validation", "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	list, err := h.repo.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list notifications failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	out := make([]notificationDTO, len(list))
	for i, n := range list {
		out[i] = toDTO(n)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	actorKind, actorID, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "validation", "actor headers are required")
		return
	}
	n, err := h.repo.MarkRead(r.Context(), chi.URLParam(r, "notificationID"), actorKind, actorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "notification not found")
			return
		}
		h.logger.Error("mark read failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDTO(n))
}

func actorFrom(r *http.Request) (kind, id string, ok bool) {
	kind = strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorKind)))
	id = strings.TrimSpace(r.Header.Get(HeaderActorID))
	return kind, id, kind != "" && id != ""
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	httpx.WriteJSON(w, status, map[string]string{"error": kind, "message": msg})
}
