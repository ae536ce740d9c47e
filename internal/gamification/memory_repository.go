package gamification

import (
	"context"
	"fmt"
	"sync"
)

// memoryRepository keeps profiles in process; each user has its own write lock.
type memoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	locks    map[string]*sync.Mutex
}

// NewMemoryRepository returns an in-memory repository intended for local development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		profiles: make(map[string]Profile),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (r *memoryRepository) Get(_ context.Context, userID string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[userID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return profile.Clone(), nil
}

func (r *memoryRepository) Create(_ context.Context, profile Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[profile.UserID]; exists {
		return ErrConflict
	}
	r.profiles[profile.UserID] = profile.Clone()
	return nil
}

func (r *memoryRepository) Apply(ctx context.Context, userID string, fn MutateFunc) (Profile, error) {
	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	current, err := r.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	next, err := fn(current)
	if err != nil {
		return Profile{}, err
	}
	next.UserID = userID

	r.mu.Lock()
	r.profiles[userID] = next.Clone()
	r.mu.Unlock()

	return next, nil
}

func (r *memoryRepository) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[userID] = lock
	}
	return lock
}
