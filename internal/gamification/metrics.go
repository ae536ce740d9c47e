package gamification

import "github.com/prometheus/client_golang/prometheus"

var (
	activityCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "engine",
		Name:      "activities_recorded_total",
		Help:      "Activities applied to a profile, by activity type.",
	}, []string{"activity_type"})

	badgeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "engine",
		Name:      "badges_awarded_total",
		Help:      "Badges granted, by badge id.",
	}, []string{"badge_id"})

	streakStartCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "engine",
		Name:      "streak_starts_total",
		Help:      "Activities that started a streak at 1, either the first one or after a gap.",
	})

	conflictCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "store",
		Name:      "update_conflicts_total",
		Help:      "Profile updates that lost an optimistic concurrency race.",
	})

	notifyFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamification_service",
		Subsystem: "engine",
		Name:      "notification_enqueue_failures_total",
		Help:      "Badge notifications the notifier refused.",
	})
)

func init() {
	prometheus.MustRegister(activityCounter, badgeCounter, streakStartCounter, conflictCounter, notifyFailureCounter)
}

func recordActivity(activity ActivityType, o Outcome) {
	activityCounter.WithLabelValues(string(activity)).Inc()
	for _, b := range o.NewBadges {
		badgeCounter.WithLabelValues(string(b.ID)).Inc()
	}
	if o.StreakStarted {
		streakStartCounter.Inc()
	}
}
