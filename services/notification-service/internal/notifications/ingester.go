// Package notifications turns notification requests from the scheduling
// service into stored, optionally delivered, notifications.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/clinicbook/libs/events"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/clinicbook/services/notification-service/internal/sms"
	"github.com/md-rashed-zaman/clinicbook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type Store interface {
	Save(ctx context.Context, eventType string, n storage.Notification) (storage.Notification, bool, error)
	SetDelivery(ctx context.Context, id, status, reason string) error
}

// Ingester is a consumer.Handler. Email and SMS are optional; with neither
// configured notifications are in-app only.
type Ingester struct {
	store  Store
	email  email.Sender
	sms    sms.Sender
	logger *slog.Logger
}

func NewIngester(store Store, emailSender email.Sender, smsSender sms.Sender, logger *slog.Logger) *Ingester {
	return &Ingester{store: store, email: emailSender, sms: smsSender, logger: logger}
}

// Handle returns an error only for failures worth retrying. Malformed
// payloads are logged and dropped.
func (i *Ingester) Handle(ctx context.Context, msg kafka.Message) error {
	var req events.NotificationRequested
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		i.logger.Error("invalid notification payload", "err", err, "topic", msg.Topic)
		return nil
	}
	meta := kafkax.ExtractEventMeta(msg)
	eventID := kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID)
	if eventID == "" {
		eventID = req.EventID
	}
	if eventID == "" || req.RecipientID == "" || req.RecipientKind == "" || strings.TrimSpace(req.Message) == "" {
		i.logger.Error("missing notification fields", "topic", msg.Topic, "event_id", eventID)
		return nil
	}

	saved, duplicate, err := i.store.Save(ctx, meta.EventType, storage.Notification{
		EventID:       eventID,
		RecipientKind: req.RecipientKind,
		RecipientID:   req.RecipientID,
		Type:          req.Type,
		Message:       req.Message,
		AppointmentID: req.AppointmentID,
	})
	if err != nil {
		return err
	}
	if duplicate {
		i.logger.Info("duplicate event ignored", "event_id", eventID, "event_type", meta.EventType)
		return nil
	}

	status, reason := i.deliver(ctx, req)
	if status != storage.DeliveryInApp {
		if err := i.store.SetDelivery(ctx, saved.ID, status, reason); err != nil {
			i.logger.Error("failed to record delivery status", "err", err, "notification_id", saved.ID)
		}
	}
	i.logger.Info("notification stored",
		"notification_id", saved.ID,
		"recipient_kind", req.RecipientKind,
		"recipient_id", req.RecipientID,
		"appointment_id", req.AppointmentID,
		"delivery", status,
	)
	return nil
}

// deliver sends out-of-band copies. Any success counts as sent; failures
// are reported but never retried, the in-app record already exists.
func (i *Ingester) deliver(ctx context.Context, req events.NotificationRequested) (string, string) {
	var (
		attempted bool
		sent      bool
		errs      []error
	)
	if i.email != nil && req.RecipientEmail != "" {
		attempted = true
		if err := i.email.Send(ctx, req.RecipientEmail, "Appointment update", req.Message); err != nil {
			i.logger.Error("email send failed", "err", err, "appointment_id", req.AppointmentID)
			errs = append(errs, err)
		} else {
			sent = true
		}
	}
	if i.sms != nil && req.RecipientPhone != "" {
		attempted = true
		if err := i.sms.Send(ctx, req.RecipientPhone, req.Message, req.AppointmentID); err != nil {
			i.logger.Error("sms send failed", "err", err, "provider", i.sms.ProviderID(), "appointment_id", req.AppointmentID)
			errs = append(errs, err)
		} else {
			sent = true
		}
	}
	switch {
	case !attempted:
		return storage.DeliveryInApp, ""
	case sent:
		return storage.DeliverySent, ""
	default:
		return storage.DeliveryFailed, errors.Join(errs...).Error()
	}
}
