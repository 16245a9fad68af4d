package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/stretchr/testify/assert"
)

func attemptFor(email, username string, success bool) *models.LoginAttempt {
	a := &models.LoginAttempt{IPAddress: "1.2.3.4", Success: success}
	if email != "" {
		a.Email = &email
	}
	if username != "" {
		a.Username = &username
	}
	return a
}

func TestAnalyzeAttempts(t *testing.T) {
	many := func(n int, success func(i int) bool, email func(i int) string) []*models.LoginAttempt {
		out := make([]*models.LoginAttempt, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, attemptFor(email(i), "", success(i)))
		}
		return out
	}
	sameEmail := func(int) string { return "a@x.com" }

	tests := []struct {
		name           string
		attempts       []*models.LoginAttempt
		threshold      int
		wantSuspicious bool
		wantRate       float64
		wantAccounts   int
		wantReasons    int
	}{
		{
			name:      "no attempts",
			attempts:  nil,
			threshold: 20,
		},
		{
			name:         "below threshold all failures",
			attempts:     many(11, func(int) bool { return false }, sameEmail),
			threshold:    20,
			wantRate:     100,
			wantAccounts: 1,
			wantReasons:  1,
		},
		{
			name:         "failure rate ignored for small samples",
			attempts:     many(10, func(int) bool { return false }, sameEmail),
			threshold:    20,
			wantRate:     100,
			wantAccounts: 1,
			wantReasons:  0,
		},
		{
			name:           "threshold met with mostly successes",
			attempts:       many(20, func(i int) bool { return i%4 != 0 }, sameEmail),
			threshold:      20,
			wantSuspicious: true,
			wantRate:       25,
			wantAccounts:   1,
			wantReasons:    1,
		},
		{
			name:         "many accounts below threshold",
			attempts:     many(11, func(int) bool { return true }, func(i int) string { return fmt.Sprintf("u%d@x.com", i) }),
			threshold:    20,
			wantAccounts: 11,
			wantReasons:  1,
		},
		{
			name: "emails and usernames counted separately",
			attempts: []*models.LoginAttempt{
				attemptFor("a@x.com", "alice", false),
				attemptFor("a@x.com", "", false),
				attemptFor("", "bob", true),
			},
			threshold:    20,
			wantRate:     66.67,
			wantAccounts: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := analyzeAttempts(tt.attempts, tt.threshold, time.Hour)

			assert.Equal(t, tt.wantSuspicious, result.IsSuspicious)
			assert.Equal(t, len(tt.attempts), result.AttemptCount)
			assert.Equal(t, tt.wantAccounts, result.UniqueAccounts)
			assert.InDelta(t, tt.wantRate, result.FailureRate, 0.001)
			assert.Len(t, result.Reasons, tt.wantReasons)
			assert.NotNil(t, result.Reasons)
		})
	}
}
