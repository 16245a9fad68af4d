package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
)

// MockAttemptStore implements AttemptStore for testing
type MockAttemptStore struct {
	InsertFunc          func(ctx context.Context, attempt *models.LoginAttempt) (string, error)
	QueryFunc           func(ctx context.Context, filter models.AttemptFilter, page models.Page) ([]*models.LoginAttempt, int64, error)
	DeleteOlderThanFunc func(ctx context.Context, cutoff time.Time) (int64, error)
	StatsFunc           func(ctx context.Context, since time.Time) (*models.AttemptQueryStats, error)

	mu       sync.Mutex
	Inserted []*models.LoginAttempt
}

func (m *MockAttemptStore) Insert(ctx context.Context, attempt *models.LoginAttempt) (string, error) {
	m.mu.Lock()
	m.Inserted = append(m.Inserted, attempt)
	m.mu.Unlock()

	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, attempt)
	}
	return "00000000-0000-0000-0000-000000000001", nil
}

func (m *MockAttemptStore) Query(ctx context.Context, filter models.AttemptFilter, page models.Page) ([]*models.LoginAttempt, int64, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, filter, page)
	}
	return []*models.LoginAttempt{}, 0, nil
}

func (m *MockAttemptStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

func (m *MockAttemptStore) Stats(ctx context.Context, since time.Time) (*models.AttemptQueryStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, since)
	}
	return &models.AttemptQueryStats{}, nil
}

// InsertedCount returns how many attempts reached Insert
func (m *MockAttemptStore) InsertedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Inserted)
}

// MockCounterStore implements CounterStore for testing
type MockCounterStore struct {
	IncrementWithExpiryFunc func(ctx context.Context, key string, ttl time.Duration) (int64, error)
	GetFunc                 func(ctx context.Context, key string) (string, bool, error)
	SetWithExpiryFunc       func(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteFunc              func(ctx context.Context, keys ...string) error
	KeysMatchingFunc        func(ctx context.Context, prefix string) ([]string, error)
}

func (m *MockCounterStore) IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if m.IncrementWithExpiryFunc != nil {
		return m.IncrementWithExpiryFunc(ctx, key, ttl)
	}
	return 1, nil
}

func (m *MockCounterStore) Get(ctx context.Context, key string) (string, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return "", false, nil
}

func (m *MockCounterStore) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.SetWithExpiryFunc != nil {
		return m.SetWithExpiryFunc(ctx, key, value, ttl)
	}
	return nil
}

func (m *MockCounterStore) Delete(ctx context.Context, keys ...string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, keys...)
	}
	return nil
}

func (m *MockCounterStore) KeysMatching(ctx context.Context, prefix string) ([]string, error) {
	if m.KeysMatchingFunc != nil {
		return m.KeysMatchingFunc(ctx, prefix)
	}
	return []string{}, nil
}

// MockNotifier records lockout notifications for testing
type MockNotifier struct {
	mu   sync.Mutex
	Sent []string
	Err  error
}

func (m *MockNotifier) NotifyLockout(_ context.Context, email string, _ models.LockoutMarker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, email)
	return m.Err
}

// SentTo returns a copy of the recipients notified so far
func (m *MockNotifier) SentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Sent...)
}
