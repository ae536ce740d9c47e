package gamification

import (
	"fmt"
	"time"
)

// BadgeID is the stable key of a badge definition. Clients persist these values.
type BadgeID string

const (
	BadgeFirstStep   BadgeID = "first_step"
	BadgeStreak3     BadgeID = "streak_3"
	BadgeStreak7     BadgeID = "streak_7"
	BadgeFocusMaster BadgeID = "focus_master"
	BadgeJournalGuru BadgeID = "journal_guru"
	BadgeEarlyBird   BadgeID = "early_bird"
	BadgeNightOwl    BadgeID = "night_owl"
)

// BadgeDefinition is the static template a Badge is stamped from.
type BadgeDefinition struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

func (d BadgeDefinition) earn(at time.Time) Badge {
	return Badge{ID: d.ID, Name: d.Name, Description: d.Description, Icon: d.Icon, EarnedAt: at}
}

const (
	earlyBirdBeforeHour = 8
	nightOwlFromHour    = 23
	streakShort         = 3
	streakLong          = 7
)

// catalog is the canonical list, in display order. Keep IDs stable.
var catalog = []BadgeDefinition{
	{ID: BadgeFirstStep, Name: "First Step", Icon: "🌱", Description: "Completed your first activity"},
	{ID: BadgeStreak3, Name: "Consistency Is Key", Icon: "🔥", Description: "Reached a 3-day streak"},
	{ID: BadgeStreak7, Name: "Unstoppable", Icon: "🚀", Description: "Reached a 7-day streak"},
	{ID: BadgeFocusMaster, Name: "Deep Worker", Icon: "🧠", Description: "Completed a Focus Session"},
	{ID: BadgeJournalGuru, Name: "Mindful Soul", Icon: "✍️", Description: "Shared a Journal Entry"},
	{ID: BadgeEarlyBird, Name: "Early Bird", Icon: "🌅", Description: "Activity before 8 AM"},
	{ID: BadgeNightOwl, Name: "Night Owl", Icon: "🦉", Description: "Activity after 11 PM"},
}

// evaluationOrder fixes the order new badges are granted and reported in.
var evaluationOrder = []BadgeID{
	BadgeFirstStep,
	BadgeFocusMaster,
	BadgeJournalGuru,
	BadgeEarlyBird,
	BadgeNightOwl,
	BadgeStreak3,
	BadgeStreak7,
}

// trigger inspects one activity after the streak update.
type trigger func(activity ActivityType, localHour, streak int) bool

var triggers = map[BadgeID]trigger{
	BadgeFirstStep:   func(ActivityType, int, int) bool { return true },
	BadgeFocusMaster: func(a ActivityType, _, _ int) bool { return a == ActivityFocus },
	BadgeJournalGuru: func(a ActivityType, _, _ int) bool { return a == ActivityJournal },
	BadgeEarlyBird:   func(_ ActivityType, hour, _ int) bool { return hour < earlyBirdBeforeHour },
	BadgeNightOwl:    func(_ ActivityType, hour, _ int) bool { return hour >= nightOwlFromHour },
	BadgeStreak3:     func(_ ActivityType, _, streak int) bool { return streak >= streakShort },
	BadgeStreak7:     func(_ ActivityType, _, streak int) bool { return streak >= streakLong },
}

var definitionsByID = indexCatalog()

func indexCatalog() map[BadgeID]BadgeDefinition {
	byID := make(map[BadgeID]BadgeDefinition, len(catalog))
	for _, def := range catalog {
		if _, dup := byID[def.ID]; dup {
			panic(fmt.Sprintf("gamification: duplicate badge %q", def.ID))
		}
		if _, ok := triggers[def.ID]; !ok {
			panic(fmt.Sprintf("gamification: badge %q has no trigger", def.ID))
		}
		byID[def.ID] = def
	}
	if len(evaluationOrder) != len(byID) {
		panic("gamification: evaluation order does not cover the catalog")
	}
	for _, id := range evaluationOrder {
		if _, ok := byID[id]; !ok {
			panic(fmt.Sprintf("gamification: evaluation order names unknown badge %q", id))
		}
	}
	return byID
}

// Catalog returns a copy of every badge definition in display order.
func Catalog() []BadgeDefinition {
	out := make([]BadgeDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// Definition looks up a badge definition by ID.
func Definition(id BadgeID) (BadgeDefinition, bool) {
	def, ok := definitionsByID[id]
	return def, ok
}
