package events

import "time"

// EventTypeNotificationRequested tags NotificationRequested records on the wire.
const EventTypeNotificationRequested = "notification.requested"

// NotificationRequested asks the notification pipeline to deliver a message to a user.
// ID is assigned once when the request is queued so every delivery attempt and every
// sink refers to the same notification.
type NotificationRequested struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	Link        string    `json:"link,omitempty"`
	Source      string    `json:"source"`
	RequestedAt time.Time `json:"requestedAt"`
}
