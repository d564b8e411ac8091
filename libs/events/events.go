// Package events holds the payloads exchanged between services over Kafka.
package events

import "time"

const TopicNotificationRequested = "scheduling.notification.requested.v1"

// NotificationRequested asks the notification service to deliver a message
// to one participant of an appointment.
type NotificationRequested struct {
	EventID       string    `json:"eventId"`
	RecipientKind string    `json:"recipientKind"`
	RecipientID   string    `json:"recipientId"`
	Type          string    `json:"type"`
	Message       string    `json:"message"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`

	// Contact details for out-of-band delivery; empty means in-app only.
	RecipientEmail string `json:"recipientEmail,omitempty"`
	RecipientPhone string `json:"recipientPhone,omitempty"`
}
