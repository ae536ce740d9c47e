package notification

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	byUser map[string][]Notification
}

// NewMemoryRepository returns an in-memory repository intended for local development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byUser: make(map[string][]Notification)}
}

func (r *memoryRepository) Create(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byUser[n.UserID] {
		if existing.ID == n.ID {
			return nil
		}
	}
	r.byUser[n.UserID] = append(r.byUser[n.UserID], n)
	return nil
}

func (r *memoryRepository) List(_ context.Context, userID string, limit int) ([]Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.byUser[userID]
	out := make([]Notification, len(stored))
	// Reverse insertion order so equal timestamps still list newest first.
	for i, n := range stored {
		out[len(stored)-1-i] = n
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) MarkRead(_ context.Context, userID, id string) (Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := r.byUser[userID]
	for i := range items {
		if items[i].ID == id {
			items[i].Read = true
			return items[i], nil
		}
	}
	return Notification{}, ErrNotFound
}

func (r *memoryRepository) MarkAllRead(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	items := r.byUser[userID]
	for i := range items {
		if !items[i].Read {
			items[i].Read = true
			changed++
		}
	}
	return changed, nil
}

func (r *memoryRepository) CountUnread(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	unread := 0
	for _, n := range r.byUser[userID] {
		if !n.Read {
			unread++
		}
	}
	return unread, nil
}
