package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aurawellness/gamification-service/shared-libs/events"
)

var validate = validator.New()

// Service manages a user's notification inbox.
type Service struct {
	repo  Repository
	clock Clock
	ids   IDGenerator
}

// NewService constructs a Service instance with the provided collaborators.
func NewService(repo Repository, clock Clock, ids IDGenerator) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	return &Service{repo: repo, clock: clock, ids: ids}, nil
}

// Create stores a new unread notification.
func (s *Service) Create(ctx context.Context, input CreateInput) (Notification, error) {
	input.ID = strings.TrimSpace(input.ID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.Title = strings.TrimSpace(input.Title)
	input.Message = strings.TrimSpace(input.Message)
	input.Link = strings.TrimSpace(input.Link)
	if err := validate.Struct(input); err != nil {
		return Notification{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	if input.Type == "" {
		input.Type = TypeInfo
	}

	id := input.ID
	if id == "" {
		id = s.ids.NewID()
	}
	n := Notification{
		ID:        id,
		UserID:    input.UserID,
		Title:     input.Title,
		Message:   input.Message,
		Type:      input.Type,
		Link:      input.Link,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// CreateFromEvent stores the notification described by a requested event. Redelivering the
// same event ID does not add a second inbox entry.
func (s *Service) CreateFromEvent(ctx context.Context, req events.NotificationRequested) (Notification, error) {
	return s.Create(ctx, CreateInput{
		ID:      req.ID,
		UserID:  req.UserID,
		Title:   req.Title,
		Message: req.Message,
		Type:    Type(req.Type),
		Link:    req.Link,
	})
}

// List returns the newest notifications. A non-positive limit selects the default page size.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	items, err := s.repo.List(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Notification{}
	}
	return items, nil
}

// MarkRead flags a single notification as read. Marking an already read notification is a no-op.
func (s *Service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(id) == "" {
		return Notification{}, ErrNotFound
	}
	return s.repo.MarkRead(ctx, userID, id)
}

// MarkAllRead flags every unread notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.repo.MarkAllRead(ctx, userID)
}

// CountUnread reports how many notifications the user has not read yet.
func (s *Service) CountUnread(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, nil
	}
	return s.repo.CountUnread(ctx, userID)
}
