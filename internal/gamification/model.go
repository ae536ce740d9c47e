package gamification

import (
	"context"
	"fmt"
	"time"
)

// DateLayout is the calendar-day format stored in Profile.LastActiveDate.
const DateLayout = "2006-01-02"

// ActivityType identifies the user action that triggers gamification.
type ActivityType string

const (
	// ActivityFocus is recorded when a focus timer session completes.
	ActivityFocus ActivityType = "focus"
	// ActivityJournal is recorded when a journal entry is saved.
	ActivityJournal ActivityType = "journal"
)

// Valid reports whether the activity type belongs to the closed set.
func (a ActivityType) Valid() bool {
	switch a {
	case ActivityFocus, ActivityJournal:
		return true
	default:
		return false
	}
}

// ParseActivityType converts raw input into an ActivityType.
func ParseActivityType(raw string) (ActivityType, error) {
	a := ActivityType(raw)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidActivity, raw)
	}
	return a, nil
}

// Badge is an earned achievement. It is never mutated once stored.
type Badge struct {
	ID          BadgeID   `json:"id" firestore:"id"`
	Name        string    `json:"name" firestore:"name"`
	Description string    `json:"description" firestore:"description"`
	Icon        string    `json:"icon" firestore:"icon"`
	EarnedAt    time.Time `json:"earned_at" firestore:"earned_at"`
}

// Profile is the gamification slice of a user profile.
type Profile struct {
	UserID         string    `json:"user_id" firestore:"user_id"`
	StreakDays     int       `json:"streak_days" firestore:"streak_days"`
	LongestStreak  int       `json:"longest_streak" firestore:"longest_streak"`
	LastActiveDate string    `json:"last_active_date,omitempty" firestore:"last_active_date"`
	Badges         []Badge   `json:"badges" firestore:"badges"`
	Timezone       string    `json:"timezone,omitempty" firestore:"timezone"`
	Version        int64     `json:"version" firestore:"version"`
	CreatedAt      time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" firestore:"updated_at"`
}

// HasBadge reports whether the profile already holds the badge.
func (p Profile) HasBadge(id BadgeID) bool {
	for _, b := range p.Badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (p Profile) Clone() Profile {
	out := p
	if p.Badges != nil {
		out.Badges = make([]Badge, len(p.Badges))
		copy(out.Badges, p.Badges)
	}
	return out
}

// Result is returned to the caller of RecordActivity.
type Result struct {
	NewStreak int     `json:"streak_days"`
	NewBadges []Badge `json:"new_badges"`
}

// CatalogEntry pairs a badge definition with the user's earned state.
type CatalogEntry struct {
	BadgeDefinition
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

// Summary backs the dashboard achievements card.
type Summary struct {
	Profile             Profile        `json:"profile"`
	Catalog             []CatalogEntry `json:"catalog"`
	UnreadNotifications int            `json:"unread_notifications"`
}

// MutateFunc computes the next profile from the current one inside an atomic update.
type MutateFunc func(current Profile) (Profile, error)

// Repository persists gamification profiles.
//
// Apply must run fn and the write of its result as one atomic unit keyed by user ID:
// concurrent Apply calls for the same user are serialized or fail with ErrConflict.
// fn may be invoked more than once.
type Repository interface {
	Get(ctx context.Context, userID string) (Profile, error)
	Create(ctx context.Context, profile Profile) error
	Apply(ctx context.Context, userID string, fn MutateFunc) (Profile, error)
}

// UnreadCounter reports how many unread notifications a user has.
type UnreadCounter interface {
	CountUnread(ctx context.Context, userID string) (int, error)
}

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}
