package logger

import (
	"context"
	"log/slog"
	"time"
)

// Lockout event types
const (
	EventAccountLocked       = "account_locked"
	EventAccountUnlocked     = "account_unlocked"
	EventLockoutExpired      = "lockout_expired"
	EventBlockedAttempt      = "blocked_attempt"
	EventBruteForceSuspected = "brute_force_suspected"
)

// AuditEvent represents a recorded login attempt
type AuditEvent struct {
	Identifier    string
	UserID        string
	Email         string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
}

// LockoutEvent represents a lockout state transition or detection finding
type LockoutEvent struct {
	EventType  string
	Identifier string
	IPAddress  string
	Attempts   int64
	Until      *time.Time
	Metadata   map[string]string
}

// AuditLogger writes security audit records alongside the durable audit trail
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogLoginAttempt logs authentication attempts
func (al *AuditLogger) LogLoginAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("identifier", SanitizedIdentifier(event.Identifier)),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogLockoutEvent logs lock, unlock and brute-force findings.
// Unlocks and expiries are informational; everything else is a warning.
func (al *AuditLogger) LogLockoutEvent(event LockoutEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "lockout"),
		slog.String("event_type", event.EventType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Identifier != "" {
		attrs = append(attrs, slog.String("identifier", SanitizedIdentifier(event.Identifier)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Attempts > 0 {
		attrs = append(attrs, slog.Int64("attempts", event.Attempts))
	}
	if event.Until != nil {
		attrs = append(attrs, slog.String("locked_until", event.Until.UTC().Format(time.RFC3339)))
	}

	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelWarn
	if event.EventType == EventAccountUnlocked || event.EventType == EventLockoutExpired {
		level = slog.LevelInfo
	}

	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
