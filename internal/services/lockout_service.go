package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// Attempt history page sizes
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// HistoryPage returns the limit and offset GetAttemptHistory actually serves
// for a requested page
func HistoryPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = DefaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// LockoutConfig holds the thresholds for lockout and brute-force decisions
type LockoutConfig struct {
	MaxAttempts         int
	LockoutDuration     time.Duration
	TrackingWindow      time.Duration
	BruteForceThreshold int
	BruteForceWindow    time.Duration
	KeyPrefix           string
	AsyncTimeout        time.Duration // deadline for each fire-and-forget write
	AsyncMaxInFlight    int           // fire-and-forget writes allowed to run at once
}

// DefaultLockoutConfig returns 5 attempts / 15m lockout / 15m window / 20 per 60m brute force
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts:         5,
		LockoutDuration:     15 * time.Minute,
		TrackingWindow:      15 * time.Minute,
		BruteForceThreshold: 20,
		BruteForceWindow:    60 * time.Minute,
		KeyPrefix:           "lockout:",
		AsyncTimeout:        5 * time.Second,
		AsyncMaxInFlight:    defaultMaxInFlight,
	}
}

func (c LockoutConfig) withDefaults() LockoutConfig {
	d := DefaultLockoutConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = d.LockoutDuration
	}
	if c.TrackingWindow <= 0 {
		c.TrackingWindow = d.TrackingWindow
	}
	if c.BruteForceThreshold <= 0 {
		c.BruteForceThreshold = d.BruteForceThreshold
	}
	if c.BruteForceWindow <= 0 {
		c.BruteForceWindow = d.BruteForceWindow
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = d.KeyPrefix
	}
	if c.AsyncTimeout <= 0 {
		c.AsyncTimeout = d.AsyncTimeout
	}
	if c.AsyncMaxInFlight <= 0 {
		c.AsyncMaxInFlight = d.AsyncMaxInFlight
	}
	return c
}

// lockoutDeps is shared by the recorder, state machine and detector
type lockoutDeps struct {
	attempts AttemptStore
	counters CounterStore
	cfg      LockoutConfig
	keys     lockoutKeys
	now      func() time.Time
	runner   *detachedRunner
	notifier LockoutNotifier
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

// Option customises a LockoutService
type Option func(*lockoutDeps)

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(d *lockoutDeps) { d.now = now }
}

// WithNotifier sends an email when an identifier with an email address is locked
func WithNotifier(n LockoutNotifier) Option {
	return func(d *lockoutDeps) { d.notifier = n }
}

// WithAuditLogger routes security events to a dedicated audit logger
func WithAuditLogger(a *pkglogger.AuditLogger) Option {
	return func(d *lockoutDeps) { d.audit = a }
}

// LockoutService records login attempts, tracks lockouts and reports on the
// audit trail. Construct one per process and share it between handlers.
type LockoutService struct {
	deps     *lockoutDeps
	recorder *attemptRecorder
	state    *lockoutStateMachine
	detector *bruteForceDetector
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(attempts AttemptStore, counters CounterStore, cfg LockoutConfig, logger *slog.Logger, opts ...Option) *LockoutService {
	cfg = cfg.withDefaults()

	deps := &lockoutDeps{
		attempts: attempts,
		counters: counters,
		cfg:      cfg,
		keys:     lockoutKeys{prefix: cfg.KeyPrefix},
		now:      time.Now,
		notifier: NoopNotifier{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(deps)
	}
	if deps.audit == nil {
		deps.audit = pkglogger.NewAuditLogger(logger)
	}
	deps.runner = newDetachedRunner(cfg.AsyncTimeout, cfg.AsyncMaxInFlight, logger)

	return &LockoutService{
		deps:     deps,
		recorder: &attemptRecorder{deps},
		state:    &lockoutStateMachine{deps},
		detector: &bruteForceDetector{deps},
	}
}

// Config returns the effective configuration after defaults
func (s *LockoutService) Config() LockoutConfig {
	return s.deps.cfg
}

// RecordAttempt records the outcome of a credential check. Audit-trail writes
// never fail the call; a counter store failure on a failed attempt does.
func (s *LockoutService) RecordAttempt(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
	return s.recorder.record(ctx, identifier, params)
}

// IsAccountLocked reports the lockout state and remaining attempts for identifier
func (s *LockoutService) IsAccountLocked(ctx context.Context, identifier string) (*models.LockoutStatus, error) {
	return s.state.status(ctx, identifier)
}

// EnsureNotLocked returns a *models.LockoutError when identifier is locked
func (s *LockoutService) EnsureNotLocked(ctx context.Context, identifier string) error {
	status, err := s.state.status(ctx, identifier)
	if err != nil {
		return err
	}
	if status.IsLocked {
		return &models.LockoutError{Identifier: identifier, LockedUntil: *status.LockoutEndsAt}
	}
	return nil
}

// GuardLogin is called before credential verification. A locked identifier
// gets its attempt recorded as account_locked and a *models.LockoutError back.
func (s *LockoutService) GuardLogin(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
	err := s.EnsureNotLocked(ctx, identifier)

	var lockErr *models.LockoutError
	if !errors.As(err, &lockErr) {
		return err
	}

	blocked := params
	blocked.Success = false
	reason := models.FailureAccountLocked
	blocked.FailureReason = &reason

	s.deps.audit.LogLockoutEvent(pkglogger.LockoutEvent{
		EventType:  pkglogger.EventBlockedAttempt,
		Identifier: identifier,
		IPAddress:  params.IPAddress,
		Until:      &lockErr.LockedUntil,
	})

	if recErr := s.recorder.record(ctx, identifier, blocked); recErr != nil {
		s.deps.logger.ErrorContext(ctx, "failed to record blocked attempt",
			identifierAttr(identifier),
			slog.Any("error", recErr))
	}

	return lockErr
}

// UnlockAccount clears the counter and marker for identifier; unlocking an
// unlocked identifier is a no-op
func (s *LockoutService) UnlockAccount(ctx context.Context, identifier string) error {
	return s.state.unlock(ctx, identifier)
}

// DetectBruteForce scans the audit trail for one IP. Non-positive window or
// threshold fall back to the configured defaults.
func (s *LockoutService) DetectBruteForce(ctx context.Context, ipAddress string, windowMinutes, threshold int) (*models.BruteForceResult, error) {
	return s.detector.detect(ctx, ipAddress, windowMinutes, threshold)
}

// GetAttemptHistory returns attempts for identifier, newest first, and the total match count
func (s *LockoutService) GetAttemptHistory(ctx context.Context, identifier string, opts models.HistoryOptions) ([]*models.LoginAttempt, int64, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, 0, fmt.Errorf("%w: identifier is required", models.ErrValidation)
	}
	if opts.SuccessOnly && opts.FailedOnly {
		return nil, 0, fmt.Errorf("%w: success_only and failed_only are mutually exclusive", models.ErrValidation)
	}

	switch opts.IdentifierType {
	case "":
		opts.IdentifierType = models.IdentifierAny
	case models.IdentifierAny, models.IdentifierEmail, models.IdentifierUsername, models.IdentifierIP:
	default:
		return nil, 0, fmt.Errorf("%w: unknown identifier type %q", models.ErrValidation, opts.IdentifierType)
	}

	opts.Limit, opts.Offset = HistoryPage(opts.Limit, opts.Offset)

	attempts, total, err := s.deps.attempts.Query(ctx, models.AttemptFilter{
		IdentifierType:  opts.IdentifierType,
		IdentifierValue: identifier,
		SuccessOnly:     opts.SuccessOnly,
		FailedOnly:      opts.FailedOnly,
	}, models.Page{Limit: opts.Limit, Offset: opts.Offset})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get attempt history: %w", err)
	}

	return attempts, total, nil
}

// CleanupOldAttempts deletes audit rows older than daysToKeep days
func (s *LockoutService) CleanupOldAttempts(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep < 1 {
		return 0, fmt.Errorf("%w: days to keep must be at least 1", models.ErrValidation)
	}

	cutoff := s.deps.now().Add(-time.Duration(daysToKeep) * 24 * time.Hour)
	deleted, err := s.deps.attempts.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup login attempts: %w", err)
	}

	s.deps.logger.InfoContext(ctx, "login attempt retention cleanup",
		slog.Int("days_to_keep", daysToKeep),
		slog.Int64("rows_deleted", deleted))

	return deleted, nil
}

// GetLockoutStats summarises the audit trail since the given time together
// with the number of identifiers locked right now
func (s *LockoutService) GetLockoutStats(ctx context.Context, since time.Time) (*models.LockoutStats, error) {
	stats, err := s.deps.attempts.Stats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}

	locked, err := s.deps.counters.KeysMatching(ctx, s.deps.keys.markerPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to count locked identifiers: %w", err)
	}

	return &models.LockoutStats{
		TotalAttempts:      stats.Total,
		FailedAttempts:     stats.Failed,
		SuccessfulAttempts: stats.Successful,
		UniqueIPs:          stats.UniqueIPs,
		CurrentlyLocked:    int64(len(locked)),
	}, nil
}

// Wait blocks until background audit writes and cleanups have finished
func (s *LockoutService) Wait() {
	s.deps.runner.Wait()
}
