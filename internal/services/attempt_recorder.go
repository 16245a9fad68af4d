package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/validation"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// attemptRecorder writes every attempt to the audit trail (detached) and keeps
// the failure counter current (synchronous, failures only).
type attemptRecorder struct {
	*lockoutDeps
}

func (r *attemptRecorder) record(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("%w: identifier is required", models.ErrValidation)
	}
	if err := validation.Struct(params); err != nil {
		return err
	}

	now := r.now()
	attempt := newLoginAttempt(params, now)
	r.audit.LogLoginAttempt(auditEventFor(identifier, attempt))

	r.runner.Go("persist_login_attempt", attemptAttrs(identifier, attempt), func(ctx context.Context) error {
		if _, err := r.attempts.Insert(ctx, attempt); err != nil {
			return fmt.Errorf("%w: %v", models.ErrAuditStoreUnavailable, err)
		}
		return nil
	})

	if params.Success {
		counterKey, markerKey := r.keys.counter(identifier), r.keys.marker(identifier)
		r.runner.Go("clear_failure_state", []slog.Attr{identifierAttr(identifier)}, func(ctx context.Context) error {
			return r.counters.Delete(ctx, counterKey, markerKey)
		})
		return nil
	}

	count, err := r.counters.IncrementWithExpiry(ctx, r.keys.counter(identifier), r.cfg.TrackingWindow)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to increment failed attempt counter",
			identifierAttr(identifier),
			slog.Any("error", err))
		return fmt.Errorf("failed to record failed attempt: %w", err)
	}

	if count < int64(r.cfg.MaxAttempts) {
		return nil
	}

	return r.lock(ctx, identifier, count, now, attempt)
}

// lock creates or refreshes the lockout marker once the counter reaches the threshold
func (r *attemptRecorder) lock(ctx context.Context, identifier string, count int64, now time.Time, attempt *models.LoginAttempt) error {
	marker := models.LockoutMarker{
		LockedAt:       now,
		LockedUntil:    now.Add(r.cfg.LockoutDuration),
		AttemptsAtLock: count,
	}

	payload, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("failed to encode lockout marker: %w", err)
	}

	if err := r.counters.SetWithExpiry(ctx, r.keys.marker(identifier), string(payload), r.cfg.LockoutDuration); err != nil {
		r.logger.ErrorContext(ctx, "failed to write lockout marker",
			identifierAttr(identifier),
			slog.Int64("attempts", count),
			slog.Any("error", err))
		return fmt.Errorf("failed to lock identifier: %w", err)
	}

	// Only the crossing attempt announces the lock; later failures just extend it.
	if count != int64(r.cfg.MaxAttempts) {
		return nil
	}

	r.audit.LogLockoutEvent(pkglogger.LockoutEvent{
		EventType:  pkglogger.EventAccountLocked,
		Identifier: identifier,
		IPAddress:  attempt.IPAddress,
		Attempts:   count,
		Until:      &marker.LockedUntil,
	})

	if attempt.Email != nil {
		email := *attempt.Email
		r.runner.Go("notify_lockout", []slog.Attr{identifierAttr(identifier)}, func(ctx context.Context) error {
			return r.notifier.NotifyLockout(ctx, email, marker)
		})
	}

	return nil
}

// newLoginAttempt copies params so the detached insert holds no caller-owned memory
func newLoginAttempt(params models.RecordAttemptParams, now time.Time) *models.LoginAttempt {
	attempt := &models.LoginAttempt{
		UserID:    cloneString(params.UserID),
		Email:     cloneString(params.Email),
		Username:  cloneString(params.Username),
		IPAddress: params.IPAddress,
		UserAgent: cloneString(params.UserAgent),
		Success:   params.Success,
		CreatedAt: now.UTC(),
	}
	if params.FailureReason != nil {
		reason := string(*params.FailureReason)
		attempt.FailureReason = &reason
	}
	return attempt
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func auditEventFor(identifier string, attempt *models.LoginAttempt) pkglogger.AuditEvent {
	return pkglogger.AuditEvent{
		Identifier:    identifier,
		UserID:        deref(attempt.UserID),
		Email:         deref(attempt.Email),
		IPAddress:     attempt.IPAddress,
		UserAgent:     deref(attempt.UserAgent),
		Success:       attempt.Success,
		FailureReason: deref(attempt.FailureReason),
	}
}

func attemptAttrs(identifier string, attempt *models.LoginAttempt) []slog.Attr {
	return []slog.Attr{
		identifierAttr(identifier),
		slog.String("ip_address", attempt.IPAddress),
		slog.Bool("success", attempt.Success),
		slog.String("failure_reason", deref(attempt.FailureReason)),
	}
}

func identifierAttr(identifier string) slog.Attr {
	return slog.String("identifier", pkglogger.SanitizedIdentifier(identifier))
}
