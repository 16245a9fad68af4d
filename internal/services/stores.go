package services

import (
	"context"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
)

// AttemptStore is the durable, append-only login attempt audit trail
type AttemptStore interface {
	Insert(ctx context.Context, attempt *models.LoginAttempt) (string, error)
	Query(ctx context.Context, filter models.AttemptFilter, page models.Page) ([]*models.LoginAttempt, int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, since time.Time) (*models.AttemptQueryStats, error)
}

// CounterStore is the fast ephemeral store for failure counters and lockout markers.
// IncrementWithExpiry must increment and refresh the TTL as one atomic command.
type CounterStore interface {
	IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	KeysMatching(ctx context.Context, prefix string) ([]string, error)
}

// lockoutKeys derives the counter and marker keys for an identifier
type lockoutKeys struct {
	prefix string
}

func (k lockoutKeys) counter(identifier string) string {
	return k.prefix + "attempts:" + identifier
}

func (k lockoutKeys) marker(identifier string) string {
	return k.markerPrefix() + identifier
}

func (k lockoutKeys) markerPrefix() string {
	return k.prefix + "locked:"
}
