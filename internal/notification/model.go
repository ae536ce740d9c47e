package notification

import (
	"context"
	"errors"
	"time"
)

// Type is the presentation category of a notification.
type Type string

const (
	TypeAlert   Type = "alert"
	TypeMessage Type = "message"
	TypeSuccess Type = "success"
	TypeInfo    Type = "info"
)

// Valid reports whether t is one of the known categories.
func (t Type) Valid() bool {
	switch t {
	case TypeAlert, TypeMessage, TypeSuccess, TypeInfo:
		return true
	default:
		return false
	}
}

const (
	// DefaultListLimit matches the number of items the notification center shows.
	DefaultListLimit = 20
	// MaxListLimit caps a single listing request.
	MaxListLimit = 100
)

// Notification is one entry of a user's inbox.
type Notification struct {
	ID        string    `json:"id" firestore:"-"`
	UserID    string    `json:"user_id" firestore:"user_id"`
	Title     string    `json:"title" firestore:"title"`
	Message   string    `json:"message" firestore:"message"`
	Type      Type      `json:"type" firestore:"type"`
	Read      bool      `json:"read" firestore:"read"`
	CreatedAt time.Time `json:"created_at" firestore:"timestamp"`
	Link      string    `json:"link,omitempty" firestore:"link,omitempty"`
}

// CreateInput carries the fields required to add a notification.
// ID is optional; when empty a fresh one is generated.
type CreateInput struct {
	ID      string `validate:"omitempty,max=128,excludesall=/"`
	UserID  string `validate:"required,max=128"`
	Title   string `validate:"required,max=120"`
	Message string `validate:"required,max=1000"`
	Type    Type   `validate:"omitempty,oneof=alert message success info"`
	Link    string `validate:"omitempty,max=2048"`
}

// Repository persists notifications per user.
type Repository interface {
	// Create stores n. Storing an ID the user already has is a no-op.
	Create(ctx context.Context, n Notification) error
	// List returns up to limit notifications, newest first.
	List(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id string) (Notification, error)
	// MarkAllRead flags every unread notification and returns how many changed.
	MarkAllRead(ctx context.Context, userID string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

// ErrNotFound indicates the requested notification does not exist for the user.
var ErrNotFound = errors.New("notification not found")

// ErrInvalidInput indicates the provided data failed validation.
var ErrInvalidInput = errors.New("invalid input")

// ErrPersistence wraps storage failures that are not domain errors.
var ErrPersistence = errors.New("notification storage failure")

// ErrQueueFull indicates the dispatcher dropped a notification because its queue was full.
var ErrQueueFull = errors.New("notification queue full")

// ErrDispatcherClosed indicates the dispatcher no longer accepts work.
var ErrDispatcherClosed = errors.New("notification dispatcher stopped")

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for new notifications.
type IDGenerator interface {
	NewID() string
}
