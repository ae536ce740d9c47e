package gamification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gamification:profile:"

type redisRepository struct {
	client redis.UniversalClient
}

// NewRedisRepository returns a repository that stores each profile as one JSON value and
// updates it with WATCH/MULTI optimistic concurrency.
func NewRedisRepository(client redis.UniversalClient) Repository {
	return &redisRepository{client: client}
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

func (r *redisRepository) Get(ctx context.Context, userID string) (Profile, error) {
	raw, err := r.client.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, persistenceError(err)
	}
	return unmarshalProfile(userID, raw)
}

func (r *redisRepository) Create(ctx context.Context, profile Profile) error {
	payload, err := marshalProfile(profile)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, redisKey(profile.UserID), payload, 0).Result()
	if err != nil {
		return persistenceError(err)
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (r *redisRepository) Apply(ctx context.Context, userID string, fn MutateFunc) (Profile, error) {
	key := redisKey(userID)
	var updated Profile

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrProfileNotFound
		}
		if err != nil {
			return err
		}

		current, err := unmarshalProfile(userID, raw)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		next.UserID = userID

		payload, err := marshalProfile(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = next
		return nil
	}

	err := r.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, redis.TxFailedErr):
		return Profile{}, fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, ErrProfileNotFound),
		errors.Is(err, ErrPersistence),
		errors.Is(err, ErrInvalidActivity),
		errors.Is(err, ErrInvalidInput):
		return Profile{}, err
	default:
		return Profile{}, persistenceError(err)
	}
}

func marshalProfile(p Profile) ([]byte, error) {
	if p.Badges == nil {
		p.Badges = []Badge{}
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: encode profile: %v", ErrPersistence, err)
	}
	return payload, nil
}

func unmarshalProfile(userID string, raw []byte) (Profile, error) {
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: decode profile: %v", ErrPersistence, err)
	}
	p.UserID = userID
	return p, nil
}
