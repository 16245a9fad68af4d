package models

import "time"

// FailureReason classifies why a login attempt failed
type FailureReason string

const (
	FailureInvalidCredentials FailureReason = "invalid_credentials"
	FailureAccountLocked      FailureReason = "account_locked"
	FailureAccountInactive    FailureReason = "account_inactive"
	FailureRateLimitExceeded  FailureReason = "rate_limit_exceeded"
	FailureUserNotFound       FailureReason = "user_not_found"
	FailureMFAFailed          FailureReason = "mfa_failed"
)

// LoginAttempt represents a single login attempt in the audit trail.
// Records are immutable once written.
type LoginAttempt struct {
	ID            string    `db:"id" json:"id"`
	UserID        *string   `db:"user_id" json:"user_id,omitempty"`
	Email         *string   `db:"email" json:"email,omitempty"`
	Username      *string   `db:"username" json:"username,omitempty"`
	IPAddress     string    `db:"ip_address" json:"ip_address"`
	UserAgent     *string   `db:"user_agent" json:"user_agent,omitempty"`
	Success       bool      `db:"success" json:"success"`
	FailureReason *string   `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// RecordAttemptParams describes the outcome of one credential check
type RecordAttemptParams struct {
	UserID        *string        `json:"user_id" validate:"required_if=Success true,omitempty,min=1,max=255"`
	Email         *string        `json:"email" validate:"required_without=Username,omitempty,min=1,max=255"`
	Username      *string        `json:"username" validate:"required_without=Email,omitempty,min=1,max=255"`
	IPAddress     string         `json:"ip_address" validate:"required,max=45"`
	UserAgent     *string        `json:"user_agent" validate:"omitempty,max=512"`
	Success       bool           `json:"success"`
	FailureReason *FailureReason `json:"failure_reason" validate:"required_if=Success false,excluded_if=Success true,omitempty,oneof=invalid_credentials account_locked account_inactive rate_limit_exceeded user_not_found mfa_failed"`
}

// Identifier types accepted by attempt queries
const (
	IdentifierAny      = "any"
	IdentifierEmail    = "email"
	IdentifierUsername = "username"
	IdentifierIP       = "ip"
)

// AttemptFilter narrows an audit trail query. Zero values mean "no constraint".
type AttemptFilter struct {
	IdentifierType  string
	IdentifierValue string
	IPAddress       string
	Since           *time.Time
	Until           *time.Time
	SuccessOnly     bool
	FailedOnly      bool
}

// Page selects a window of query results. Limit <= 0 returns every row.
type Page struct {
	Limit  int
	Offset int
}

// HistoryOptions controls GetAttemptHistory paging and filtering
type HistoryOptions struct {
	IdentifierType string
	Limit          int
	Offset         int
	SuccessOnly    bool
	FailedOnly     bool
}

// AttemptQueryStats aggregates the audit trail since a point in time
type AttemptQueryStats struct {
	Total      int64
	Failed     int64
	Successful int64
	UniqueIPs  int64
}

// LockoutStats is the reporting view combining both stores
type LockoutStats struct {
	TotalAttempts      int64 `json:"total_attempts"`
	FailedAttempts     int64 `json:"failed_attempts"`
	SuccessfulAttempts int64 `json:"successful_attempts"`
	UniqueIPs          int64 `json:"unique_ips"`
	CurrentlyLocked    int64 `json:"currently_locked"`
}
