package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/libs/events"
	"github.com/md-rashed-zaman/clinicbook/services/scheduling-service/internal/outbox"
)

type outboxInserter interface {
	Insert(ctx context.Context, exec db.Execer, evt outbox.Event) (string, error)
}

// OutboxDispatcher records notices as outbox events for the publisher to relay.
type OutboxDispatcher struct {
	repo outboxInserter
	now  func() time.Time
}

func NewOutboxDispatcher(repo *outbox.Repository) *OutboxDispatcher {
	return &OutboxDispatcher{repo: repo, now: time.Now}
}

func (d *OutboxDispatcher) Notify(ctx context.Context, n Notice) (string, error) {
	payload := events.NotificationRequested{
		RecipientKind: string(n.Recipient.Kind),
		RecipientID:   n.Recipient.ID,
		Type:          n.Type,
		Message:       n.Message,
		AppointmentID: n.AppointmentID,
		OccurredAt:    d.now().UTC(),

		RecipientEmail: n.Email,
		RecipientPhone: n.Phone,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return d.repo.Insert(ctx, nil, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   n.AppointmentID,
		EventType:     events.TopicNotificationRequested,
		Payload:       body,
	})
}
