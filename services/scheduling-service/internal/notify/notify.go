// Package notify hands appointment events to the notification service.
package notify

import (
	"context"
	"log/slog"

	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/model"
)

const TypeAppointment = "appointment"

type Notice struct {
	Recipient     model.Actor
	Type          string
	Message       string
	AppointmentID string
	// Optional contact for email or SMS copies.
	Email string
	Phone string
}

// Dispatcher enqueues a notice and returns its id. Delivery happens elsewhere.
type Dispatcher interface {
	Notify(ctx context.Context, n Notice) (string, error)
}

// Send dispatches n and logs failures instead of returning them. Callers use
// it after their own write has committed.
func Send(ctx context.Context, d Dispatcher, logger *slog.Logger, n Notice) {
	if d == nil {
		return
	}
	id, err := d.Notify(ctx, n)
	if err != nil {
		logger.Error("notification dispatch failed",
			"err", err,
			"recipient", n.Recipient.String(),
			"appointment_id", n.AppointmentID,
		)
		return
	}
	logger.Debug("notification enqueued", "notification_id", id, "recipient", n.Recipient.String())
}
