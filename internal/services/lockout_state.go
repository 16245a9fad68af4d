package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// lockoutStateMachine answers lock queries. It never creates a lock; the
// Unlocked -> Locked transition belongs to the recorder.
type lockoutStateMachine struct {
	*lockoutDeps
}

func (m *lockoutStateMachine) status(ctx context.Context, identifier string) (*models.LockoutStatus, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("%w: identifier is required", models.ErrValidation)
	}

	marker, found, err := m.readMarker(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if found {
		if m.now().Before(marker.LockedUntil) {
			count, err := m.readCount(ctx, identifier)
			if err != nil {
				return nil, err
			}
			until := marker.LockedUntil
			return &models.LockoutStatus{
				IsLocked:          true,
				LockoutEndsAt:     &until,
				AttemptsRemaining: 0,
				TotalAttempts:     count,
			}, nil
		}

		// The store TTL should already have dropped an expired marker.
		if err := m.counters.Delete(ctx, m.keys.marker(identifier), m.keys.counter(identifier)); err != nil {
			m.logger.WarnContext(ctx, "failed to clear expired lockout",
				identifierAttr(identifier),
				slog.Any("error", err))
		} else {
			m.audit.LogLockoutEvent(pkglogger.LockoutEvent{
				EventType:  pkglogger.EventLockoutExpired,
				Identifier: identifier,
			})
		}
	}

	count, err := m.readCount(ctx, identifier)
	if err != nil {
		return nil, err
	}

	remaining := m.cfg.MaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}

	return &models.LockoutStatus{
		IsLocked:          false,
		AttemptsRemaining: remaining,
		TotalAttempts:     count,
	}, nil
}

// readMarker loads the lockout marker. A value that cannot be decoded is
// treated as an active lock for the full lockout duration.
func (m *lockoutStateMachine) readMarker(ctx context.Context, identifier string) (models.LockoutMarker, bool, error) {
	raw, found, err := m.counters.Get(ctx, m.keys.marker(identifier))
	if err != nil {
		return models.LockoutMarker{}, false, fmt.Errorf("failed to read lockout marker: %w", err)
	}
	if !found {
		return models.LockoutMarker{}, false, nil
	}

	var marker models.LockoutMarker
	if err := json.Unmarshal([]byte(raw), &marker); err != nil || marker.LockedUntil.IsZero() {
		m.logger.WarnContext(ctx, "unreadable lockout marker, treating as locked",
			identifierAttr(identifier),
			slog.Any("error", err))
		now := m.now()
		return models.LockoutMarker{
			LockedAt:    now,
			LockedUntil: now.Add(m.cfg.LockoutDuration),
		}, true, nil
	}

	return marker, true, nil
}

func (m *lockoutStateMachine) readCount(ctx context.Context, identifier string) (int, error) {
	raw, found, err := m.counters.Get(ctx, m.keys.counter(identifier))
	if err != nil {
		return 0, fmt.Errorf("failed to read failed attempt counter: %w", err)
	}
	if !found {
		return 0, nil
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		m.logger.WarnContext(ctx, "unreadable failed attempt counter",
			identifierAttr(identifier),
			slog.String("value", raw))
		return 0, nil
	}
	return count, nil
}

func (m *lockoutStateMachine) unlock(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("%w: identifier is required", models.ErrValidation)
	}

	if err := m.counters.Delete(ctx, m.keys.counter(identifier), m.keys.marker(identifier)); err != nil {
		return fmt.Errorf("failed to unlock identifier: %w", err)
	}

	m.audit.LogLockoutEvent(pkglogger.LockoutEvent{
		EventType:  pkglogger.EventAccountUnlocked,
		Identifier: identifier,
	})

	return nil
}
