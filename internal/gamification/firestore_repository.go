package gamification

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const profilesCollection = "profiles"

type firestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreRepository instantiates a Firestore-backed repository.
func NewFirestoreRepository(client *firestore.Client) Repository {
	return &firestoreRepository{client: client}
}

func (r *firestoreRepository) doc(userID string) *firestore.DocumentRef {
	return r.client.Collection(profilesCollection).Doc(userID)
}

func (r *firestoreRepository) Get(ctx context.Context, userID string) (Profile, error) {
	snap, err := r.doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, persistenceError(err)
	}
	return decodeProfile(userID, snap)
}

func (r *firestoreRepository) Create(ctx context.Context, profile Profile) error {
	badges := profile.Badges
	if badges == nil {
		badges = []Badge{}
	}
	_, err := r.doc(profile.UserID).Create(ctx, map[string]any{
		"user_id":          profile.UserID,
		"streak_days":      profile.StreakDays,
		"longest_streak":   profile.LongestStreak,
		"last_active_date": profile.LastActiveDate,
		"badges":           badgeDocuments(badges),
		"timezone":         profile.Timezone,
		"version":          profile.Version,
		"created_at":       profile.CreatedAt,
		"updated_at":       profile.UpdatedAt,
	})
	if status.Code(err) == codes.AlreadyExists {
		return ErrConflict
	}
	if err != nil {
		return persistenceError(err)
	}
	return nil
}

// Apply reads and writes inside one Firestore transaction. Badges are appended with
// ArrayUnion so the stored set is merged, never replaced.
func (r *firestoreRepository) Apply(ctx context.Context, userID string, fn MutateFunc) (Profile, error) {
	ref := r.doc(userID)
	var updated Profile

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrProfileNotFound
		}
		if err != nil {
			return err
		}

		current, err := decodeProfile(userID, snap)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		next.UserID = userID
		updated = next

		return tx.Update(ref, profileUpdates(current, next))
	})
	if err != nil {
		return Profile{}, translateTxError(err)
	}
	return updated, nil
}

func profileUpdates(current, next Profile) []firestore.Update {
	updates := []firestore.Update{
		{Path: "streak_days", Value: next.StreakDays},
		{Path: "longest_streak", Value: next.LongestStreak},
		{Path: "last_active_date", Value: next.LastActiveDate},
		{Path: "timezone", Value: next.Timezone},
		{Path: "version", Value: next.Version},
		{Path: "updated_at", Value: next.UpdatedAt},
	}

	var added []Badge
	for _, b := range next.Badges {
		if !current.HasBadge(b.ID) {
			added = append(added, b)
		}
	}
	if len(added) > 0 {
		docs := badgeDocuments(added)
		values := make([]any, len(docs))
		for i := range docs {
			values[i] = docs[i]
		}
		updates = append(updates, firestore.Update{Path: "badges", Value: firestore.ArrayUnion(values...)})
	}
	return updates
}

func badgeDocuments(badges []Badge) []map[string]any {
	out := make([]map[string]any, 0, len(badges))
	for _, b := range badges {
		out = append(out, map[string]any{
			"id":          string(b.ID),
			"name":        b.Name,
			"description": b.Description,
			"icon":        b.Icon,
			"earned_at":   b.EarnedAt,
		})
	}
	return out
}

func decodeProfile(userID string, snap *firestore.DocumentSnapshot) (Profile, error) {
	var profile Profile
	if err := snap.DataTo(&profile); err != nil {
		return Profile{}, fmt.Errorf("%w: decode profile: %v", ErrPersistence, err)
	}
	profile.UserID = userID
	return profile, nil
}

func translateTxError(err error) error {
	switch {
	case errors.Is(err, ErrProfileNotFound),
		errors.Is(err, ErrPersistence),
		errors.Is(err, ErrInvalidActivity),
		errors.Is(err, ErrInvalidInput):
		return err
	case status.Code(err) == codes.Aborted:
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return persistenceError(err)
	}
}

func persistenceError(err error) error {
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
