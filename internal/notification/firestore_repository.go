package notification

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection         = "users"
	notificationsCollection = "notifications"
	// Firestore caps a write batch at 500 operations.
	markAllBatchSize = 400
)

type firestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreRepository instantiates a repository over users/{uid}/notifications.
func NewFirestoreRepository(client *firestore.Client) Repository {
	return &firestoreRepository{client: client}
}

func (r *firestoreRepository) collection(userID string) *firestore.CollectionRef {
	return r.client.Collection(usersCollection).Doc(userID).Collection(notificationsCollection)
}

func (r *firestoreRepository) Create(ctx context.Context, n Notification) error {
	_, err := r.collection(n.UserID).Doc(n.ID).Create(ctx, n)
	if status.Code(err) == codes.AlreadyExists {
		// A retried delivery whose first write committed.
		return nil
	}
	return storageError(err)
}

func (r *firestoreRepository) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	iter := r.collection(userID).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	out := make([]Notification, 0, limit)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, storageError(err)
		}
		n, err := decodeNotification(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *firestoreRepository) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	ref := r.collection(userID).Doc(id)
	var updated Notification

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		n, err := decodeNotification(snap)
		if err != nil {
			return err
		}
		updated = n
		if n.Read {
			return nil
		}
		updated.Read = true
		return tx.Update(ref, []firestore.Update{{Path: "read", Value: true}})
	})
	if err != nil {
		return Notification{}, storageError(err)
	}
	return updated, nil
}

func (r *firestoreRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	iter := r.collection(userID).Where("read", "==", false).Documents(ctx)
	defer iter.Stop()

	batch := r.client.Batch()
	pending, total := 0, 0
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return total, storageError(err)
		}
		batch.Update(doc.Ref, []firestore.Update{{Path: "read", Value: true}})
		pending++
		if pending == markAllBatchSize {
			if _, err := batch.Commit(ctx); err != nil {
				return total, storageError(err)
			}
			total += pending
			batch = r.client.Batch()
			pending = 0
		}
	}
	if pending > 0 {
		if _, err := batch.Commit(ctx); err != nil {
			return total, storageError(err)
		}
		total += pending
	}
	return total, nil
}

func (r *firestoreRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	iter := r.collection(userID).Where("read", "==", false).Select().Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		_, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return count, nil
		}
		if err != nil {
			return 0, storageError(err)
		}
		count++
	}
}

func decodeNotification(doc *firestore.DocumentSnapshot) (Notification, error) {
	var n Notification
	if err := doc.DataTo(&n); err != nil {
		return Notification{}, fmt.Errorf("%w: unmarshal notification: %v", ErrPersistence, err)
	}
	n.ID = doc.Ref.ID
	if n.UserID == "" && doc.Ref.Parent != nil && doc.Ref.Parent.Parent != nil {
		n.UserID = doc.Ref.Parent.Parent.ID
	}
	return n, nil
}

// storageError tags unexpected storage failures with ErrPersistence and leaves domain errors alone.
func storageError(err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
