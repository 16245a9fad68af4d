package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockCleaner struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (m *mockCleaner) CleanupOldAttempts(ctx context.Context, daysToKeep int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, daysToKeep)
	return 3, m.err
}

func (m *mockCleaner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanupManager_RunsImmediatelyAndOnInterval(t *testing.T) {
	cleaner := &mockCleaner{}
	cm := NewCleanupManager(cleaner, discard(), 10*time.Millisecond, 90)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.callCount() >= 3 }, time.Second, 5*time.Millisecond)

	cm.Stop()
	cm.Stop()
	<-done

	cleaner.mu.Lock()
	defer cleaner.mu.Unlock()
	for _, days := range cleaner.calls {
		assert.Equal(t, 90, days)
	}
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	cleaner := &mockCleaner{err: errors.New("database is locked")}
	cm := NewCleanupManager(cleaner, discard(), time.Hour, 30)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.callCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop after context cancel")
	}
}
