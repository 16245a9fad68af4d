//go:build integration

package integration

import (
	"fmt"
	"time"
)

// TestEmail generates a unique email per test run
func TestEmail(suffix string) string {
	return fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
}

// FailedAttemptBody builds a POST /v1/login-attempts body for a bad password
func FailedAttemptBody(email, ip string) map[string]interface{} {
	return map[string]interface{}{
		"identifier":     email,
		"email":          email,
		"ip_address":     ip,
		"success":        false,
		"failure_reason": "invalid_credentials",
	}
}

// SuccessfulAttemptBody builds a POST /v1/login-attempts body for a good login
func SuccessfulAttemptBody(email, ip string) map[string]interface{} {
	return map[string]interface{}{
		"identifier": email,
		"email":      email,
		"user_id":    "user-" + email,
		"ip_address": ip,
		"success":    true,
	}
}
