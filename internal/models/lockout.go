package models

import "time"

// LockoutMarker is stored in the counter store while an identifier is locked
type LockoutMarker struct {
	LockedAt       time.Time `json:"locked_at"`
	LockedUntil    time.Time `json:"locked_until"`
	AttemptsAtLock int64     `json:"attempts_at_lock"`
}

// LockoutStatus answers "is this identifier locked and how many tries are left"
type LockoutStatus struct {
	IsLocked          bool       `json:"is_locked"`
	LockoutEndsAt     *time.Time `json:"lockout_ends_at,omitempty"`
	AttemptsRemaining int        `json:"attempts_remaining"`
	TotalAttempts     int        `json:"total_attempts"`
}

// BruteForceResult is the outcome of an aggregate scan over one IP's attempts
type BruteForceResult struct {
	IsSuspicious   bool     `json:"is_suspicious"`
	AttemptCount   int      `json:"attempt_count"`
	UniqueAccounts int      `json:"unique_accounts"`
	FailureRate    float64  `json:"failure_rate"`
	Reasons        []string `json:"reasons"`
}
