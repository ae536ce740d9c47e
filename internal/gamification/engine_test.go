package gamification

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func badgeIDs(badges []Badge) []BadgeID {
	ids := make([]BadgeID, 0, len(badges))
	for _, b := range badges {
		ids = append(ids, b.ID)
	}
	return ids
}

func ownedBadges(ids ...BadgeID) []Badge {
	out := make([]Badge, 0, len(ids))
	for _, id := range ids {
		def, _ := Definition(id)
		out = append(out, def.earn(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	}
	return out
}

func TestEvaluateScenarios(t *testing.T) {
	tests := []struct {
		name       string
		profile    Profile
		activity   ActivityType
		now        string
		wantStreak int
		wantNew    []BadgeID
	}{
		{
			name:       "fresh profile early focus",
			profile:    Profile{UserID: "u1"},
			activity:   ActivityFocus,
			now:        "2024-03-01T07:30",
			wantStreak: 1,
			wantNew:    []BadgeID{BadgeFirstStep, BadgeFocusMaster, BadgeEarlyBird},
		},
		{
			name:       "third day journal",
			profile:    Profile{UserID: "u1", StreakDays: 2, LastActiveDate: "2024-03-01", Badges: ownedBadges(BadgeFirstStep)},
			activity:   ActivityJournal,
			now:        "2024-03-02T12:00",
			wantStreak: 3,
			wantNew:    []BadgeID{BadgeJournalGuru, BadgeStreak3},
		},
		{
			name:       "seventh day late focus",
			profile:    Profile{UserID: "u1", StreakDays: 6, LastActiveDate: "2024-03-06", Badges: ownedBadges(BadgeFirstStep, BadgeStreak3)},
			activity:   ActivityFocus,
			now:        "2024-03-07T23:15",
			wantStreak: 7,
			wantNew:    []BadgeID{BadgeFocusMaster, BadgeNightOwl, BadgeStreak7},
		},
		{
			name: "same day repeat",
			profile: Profile{UserID: "u1", StreakDays: 7, LastActiveDate: "2024-03-07",
				Badges: ownedBadges(BadgeFirstStep, BadgeStreak3, BadgeStreak7, BadgeFocusMaster, BadgeNightOwl)},
			activity:   ActivityFocus,
			now:        "2024-03-07T23:40",
			wantStreak: 7,
			wantNew:    []BadgeID{},
		},
		{
			name:       "gap resets streak",
			profile:    Profile{UserID: "u1", StreakDays: 4, LastActiveDate: "2024-01-01", Badges: ownedBadges(BadgeFirstStep, BadgeStreak3)},
			activity:   ActivityJournal,
			now:        "2024-01-05T10:00",
			wantStreak: 1,
			wantNew:    []BadgeID{BadgeJournalGuru},
		},
		{
			name:       "continuation at any hour",
			profile:    Profile{UserID: "u1", StreakDays: 1, LastActiveDate: "2024-01-04", Badges: ownedBadges(BadgeFirstStep, BadgeFocusMaster)},
			activity:   ActivityFocus,
			now:        "2024-01-05T00:01",
			wantStreak: 2,
			wantNew:    []BadgeID{BadgeEarlyBird},
		},
		{
			name:       "unreadable last date starts over",
			profile:    Profile{UserID: "u1", StreakDays: 9, LastActiveDate: "yesterday", Badges: ownedBadges(BadgeFirstStep)},
			activity:   ActivityFocus,
			now:        "2024-05-05T12:00",
			wantStreak: 1,
			wantNew:    []BadgeID{BadgeFocusMaster},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := mustTime(t, tt.now)
			out, err := Evaluate(tt.profile, Activity{UserID: "u1", Type: tt.activity, OccurredAt: now}, time.UTC)
			if err != nil {
				t.Fatalf("Evaluate returned error: %v", err)
			}
			if out.Profile.StreakDays != tt.wantStreak {
				t.Fatalf("streak = %d, want %d", out.Profile.StreakDays, tt.wantStreak)
			}
			if diff := cmp.Diff(tt.wantNew, badgeIDs(out.NewBadges)); diff != "" {
				t.Fatalf("new badges mismatch (-want +got):\n%s", diff)
			}
			if out.Profile.LastActiveDate != now.Format(DateLayout) {
				t.Fatalf("last active = %q", out.Profile.LastActiveDate)
			}
			for _, b := range out.NewBadges {
				if !b.EarnedAt.Equal(now) {
					t.Fatalf("badge %s earnedAt = %v, want %v", b.ID, b.EarnedAt, now)
				}
			}
			if len(out.Notifications) != len(out.NewBadges) {
				t.Fatalf("expected one notification per badge, got %d for %d", len(out.Notifications), len(out.NewBadges))
			}
		})
	}
}

func TestEvaluateNotificationPayload(t *testing.T) {
	now := mustTime(t, "2024-03-01T12:00")
	out, err := Evaluate(Profile{UserID: "student-1"}, Activity{UserID: "student-1", Type: ActivityJournal, OccurredAt: now}, time.UTC)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(out.Notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(out.Notifications))
	}

	first := out.Notifications[0]
	if first.UserID != "student-1" || first.Title != "New Badge Unlocked!" || first.Type != "success" {
		t.Fatalf("unexpected notification: %+v", first)
	}
	if first.Message != "You earned: First Step" {
		t.Fatalf("unexpected message %q", first.Message)
	}
	if out.Notifications[1].Message != "You earned: Mindful Soul" {
		t.Fatalf("unexpected message %q", out.Notifications[1].Message)
	}
}

func TestEvaluateUsesReferenceLocation(t *testing.T) {
	eastern := time.FixedZone("EST", -5*60*60)
	// 02:00 UTC on March 2nd is 21:00 on March 1st in EST.
	now := time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC)
	profile := Profile{UserID: "u1", StreakDays: 3, LastActiveDate: "2024-02-29", Badges: ownedBadges(BadgeFirstStep, BadgeFocusMaster, BadgeStreak3)}

	out, err := Evaluate(profile, Activity{Type: ActivityFocus, OccurredAt: now}, eastern)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if out.Profile.LastActiveDate != "2024-03-01" {
		t.Fatalf("expected local date 2024-03-01, got %s", out.Profile.LastActiveDate)
	}
	if out.Profile.StreakDays != 4 {
		t.Fatalf("expected leap-day continuation to 4, got %d", out.Profile.StreakDays)
	}
	if len(out.NewBadges) != 0 {
		t.Fatalf("21:00 local must not earn hour badges, got %v", badgeIDs(out.NewBadges))
	}

	utc, err := Evaluate(profile, Activity{Type: ActivityFocus, OccurredAt: now}, time.UTC)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if diff := cmp.Diff([]BadgeID{BadgeEarlyBird}, badgeIDs(utc.NewBadges)); diff != "" {
		t.Fatalf("02:00 UTC should be early bird (-want +got):\n%s", diff)
	}
	if utc.Profile.StreakDays != 1 {
		t.Fatalf("March 2nd after Feb 29th is a gap in UTC, got streak %d", utc.Profile.StreakDays)
	}
}

func TestEvaluateStoredDateAheadOfToday(t *testing.T) {
	profile := Profile{UserID: "u1", StreakDays: 5, LastActiveDate: "2024-03-02", Badges: ownedBadges(BadgeFirstStep)}
	out, err := Evaluate(profile, Activity{Type: ActivityJournal, OccurredAt: mustTime(t, "2024-03-01T20:00")}, time.UTC)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if out.Profile.StreakDays != 5 || out.Profile.LastActiveDate != "2024-03-02" {
		t.Fatalf("expected streak and date untouched, got %d %s", out.Profile.StreakDays, out.Profile.LastActiveDate)
	}
	if out.StreakChanged {
		t.Fatal("StreakChanged should be false")
	}
}

func TestEvaluateDoesNotMutateInput(t *testing.T) {
	profile := Profile{UserID: "u1", Badges: make([]Badge, 0, 8)}
	if _, err := Evaluate(profile, Activity{Type: ActivityFocus, OccurredAt: mustTime(t, "2024-03-01T12:00")}, time.UTC); err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(profile.Badges) != 0 || profile.StreakDays != 0 || profile.LastActiveDate != "" {
		t.Fatalf("input profile mutated: %+v", profile)
	}
}

func TestEvaluateRejectsUnknownActivity(t *testing.T) {
	_, err := Evaluate(Profile{UserID: "u1"}, Activity{Type: "meditation", OccurredAt: time.Now()}, time.UTC)
	if !errors.Is(err, ErrInvalidActivity) {
		t.Fatalf("expected ErrInvalidActivity, got %v", err)
	}
}

func TestEvaluateStreakNeverDecreasesExceptReset(t *testing.T) {
	profile := Profile{UserID: "u1"}
	days := []string{
		"2024-04-01T09:00", "2024-04-01T22:00", "2024-04-02T09:00", "2024-04-03T09:00",
		"2024-04-03T23:30", "2024-04-06T09:00", "2024-04-07T09:00", "2024-04-08T09:00",
	}
	wantStreaks := []int{1, 1, 2, 3, 3, 1, 2, 3}

	seen := map[BadgeID]bool{}
	for i, day := range days {
		activity := ActivityFocus
		if i%2 == 1 {
			activity = ActivityJournal
		}
		out, err := Evaluate(profile, Activity{Type: activity, OccurredAt: mustTime(t, day)}, time.UTC)
		if err != nil {
			t.Fatalf("Evaluate returned error: %v", err)
		}
		if out.Profile.StreakDays != wantStreaks[i] {
			t.Fatalf("step %d (%s): streak %d, want %d", i, day, out.Profile.StreakDays, wantStreaks[i])
		}
		if out.Profile.StreakDays < profile.StreakDays && out.Profile.StreakDays != 1 {
			t.Fatalf("step %d: streak decreased from %d to %d", i, profile.StreakDays, out.Profile.StreakDays)
		}
		if len(out.Profile.Badges) < len(profile.Badges) {
			t.Fatalf("step %d: badge set shrank", i)
		}
		for _, b := range out.NewBadges {
			if seen[b.ID] {
				t.Fatalf("step %d: badge %s earned twice", i, b.ID)
			}
			seen[b.ID] = true
		}
		profile = out.Profile
	}
}

func TestEvaluateStreakStarted(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    bool
	}{
		{name: "first activity", profile: Profile{UserID: "u1"}, want: true},
		{name: "reset from one", profile: Profile{UserID: "u1", StreakDays: 1, LastActiveDate: "2024-02-20"}, want: true},
		{name: "reset from five", profile: Profile{UserID: "u1", StreakDays: 5, LastActiveDate: "2024-02-20"}, want: true},
		{name: "continuation", profile: Profile{UserID: "u1", StreakDays: 1, LastActiveDate: "2024-02-29"}, want: false},
		{name: "same day", profile: Profile{UserID: "u1", StreakDays: 1, LastActiveDate: "2024-03-01"}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Evaluate(tc.profile, Activity{Type: ActivityFocus, OccurredAt: mustTime(t, "2024-03-01T12:00")}, time.UTC)
			if err != nil {
				t.Fatalf("Evaluate returned error: %v", err)
			}
			if out.StreakStarted != tc.want {
				t.Fatalf("StreakStarted = %v, want %v (streak %d)", out.StreakStarted, tc.want, out.Profile.StreakDays)
			}
		})
	}
}
