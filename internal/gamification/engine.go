package gamification

import (
	"fmt"
	"time"

	"github.com/aurawellness/gamification-service/shared-libs/events"
)

const (
	badgeNotificationTitle = "New Badge Unlocked!"
	notificationTypeOK     = "success"
	notificationSource     = "gamification"
)

// Activity is the ephemeral input to the engine; it is not persisted.
type Activity struct {
	UserID     string
	Type       ActivityType
	OccurredAt time.Time
}

// Outcome is the pure result of evaluating one activity against a profile.
type Outcome struct {
	Profile       Profile
	NewBadges     []Badge
	Notifications []events.NotificationRequested
	StreakChanged bool
	// StreakStarted is set when this activity opened a new streak at 1, including a
	// reset from a streak that was already 1.
	StreakStarted bool
}

// Evaluate computes the next profile for activity. It performs no I/O; loc is the
// reference timezone for both the calendar day and the hour-of-day badges.
func Evaluate(current Profile, activity Activity, loc *time.Location) (Outcome, error) {
	if !activity.Type.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidActivity, activity.Type)
	}
	if loc == nil {
		loc = time.UTC
	}

	local := activity.OccurredAt.In(loc)
	today := civilDay(local)

	next := current.Clone()
	streak, lastActive := nextStreak(current, today)
	next.StreakDays = streak
	next.LastActiveDate = lastActive
	if streak > next.LongestStreak {
		next.LongestStreak = streak
	}

	var earned []Badge
	for _, id := range evaluationOrder {
		if current.HasBadge(id) {
			continue
		}
		if !triggers[id](activity.Type, local.Hour(), streak) {
			continue
		}
		earned = append(earned, definitionsByID[id].earn(activity.OccurredAt))
	}

	next.Badges = append(next.Badges, earned...)
	next.UpdatedAt = activity.OccurredAt
	next.Version = current.Version + 1

	notifications := make([]events.NotificationRequested, 0, len(earned))
	for _, b := range earned {
		notifications = append(notifications, events.NotificationRequested{
			UserID:      current.UserID,
			Title:       badgeNotificationTitle,
			Message:     "You earned: " + b.Name,
			Type:        notificationTypeOK,
			Source:      notificationSource,
			RequestedAt: activity.OccurredAt,
		})
	}

	return Outcome{
		Profile:       next,
		NewBadges:     earned,
		Notifications: notifications,
		StreakChanged: streak != current.StreakDays,
		StreakStarted: streak == 1 && lastActive != current.LastActiveDate,
	}, nil
}

// nextStreak applies the once-per-day gate and returns the streak and last active date to store.
func nextStreak(current Profile, today time.Time) (int, string) {
	todayKey := today.Format(DateLayout)
	last, err := time.Parse(DateLayout, current.LastActiveDate)
	if err != nil {
		// No prior activity, or an unreadable date: start over.
		return 1, todayKey
	}

	switch {
	case last.Equal(today):
		return current.StreakDays, todayKey
	case last.After(today):
		// Stored day is ahead of ours (timezone moved west); already counted.
		return current.StreakDays, current.LastActiveDate
	case last.Equal(today.AddDate(0, 0, -1)):
		return current.StreakDays + 1, todayKey
	default:
		return 1, todayKey
	}
}

// carryActiveDay maps a lastActive that is today in from onto today in to, when that is later.
// A zone change must never turn the counted day into yesterday.
func carryActiveDay(lastActive string, now time.Time, from, to *time.Location) string {
	if lastActive == "" || lastActive != now.In(from).Format(DateLayout) {
		return lastActive
	}
	if moved := now.In(to).Format(DateLayout); moved > lastActive {
		return moved
	}
	return lastActive
}

// civilDay drops the clock and location so day arithmetic is immune to DST shifts.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
