package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 200

// CounterStore holds failed-attempt counters and lockout markers in Redis
type CounterStore struct {
	client redis.UniversalClient
}

// NewCounterStore creates a CounterStore from an established connection
func NewCounterStore(r *database.Redis) *CounterStore {
	return NewCounterStoreFromClient(r.Client)
}

// NewCounterStoreFromClient wraps any go-redis client (cluster, sentinel, single node)
func NewCounterStoreFromClient(client redis.UniversalClient) *CounterStore {
	return &CounterStore{client: client}
}

// IncrementWithExpiry increments key and resets its TTL in one MULTI/EXEC block
func (s *CounterStore) IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: incr %s: %v", models.ErrCounterStoreUnavailable, key, err)
	}

	return incr.Val(), nil
}

// Get returns the value stored at key; found is false when the key is absent
func (s *CounterStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", models.ErrCounterStoreUnavailable, key, err)
	}
	return val, true, nil
}

func (s *CounterStore) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", models.ErrCounterStoreUnavailable, key, err)
	}
	return nil
}

// Delete removes keys; absent keys are ignored
func (s *CounterStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: del: %v", models.ErrCounterStoreUnavailable, err)
	}
	return nil
}

// KeysMatching walks the keyspace with SCAN and returns every key under prefix
func (s *CounterStore) KeysMatching(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)

	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan %s*: %v", models.ErrCounterStoreUnavailable, prefix, err)
	}

	return keys, nil
}
