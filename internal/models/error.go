package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrValidation   = errors.New("validation failed")

	// Lockout errors
	ErrAccountLocked           = errors.New("account is temporarily locked")
	ErrCounterStoreUnavailable = errors.New("attempt counter store unavailable")
	ErrAuditStoreUnavailable   = errors.New("audit store unavailable")
)

// LockoutError is returned when an identifier is locked out.
// It matches ErrAccountLocked with errors.Is.
type LockoutError struct {
	Identifier  string
	LockedUntil time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account is temporarily locked until %s", e.LockedUntil.UTC().Format(time.RFC3339))
}

func (e *LockoutError) Is(target error) bool {
	return target == ErrAccountLocked
}
