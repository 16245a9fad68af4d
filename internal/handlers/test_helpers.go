package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLockoutService implements LockoutServiceInterface for testing
type MockLockoutService struct {
	RecordAttemptFunc      func(ctx context.Context, identifier string, params models.RecordAttemptParams) error
	GuardLoginFunc         func(ctx context.Context, identifier string, params models.RecordAttemptParams) error
	IsAccountLockedFunc    func(ctx context.Context, identifier string) (*models.LockoutStatus, error)
	UnlockAccountFunc      func(ctx context.Context, identifier string) error
	DetectBruteForceFunc   func(ctx context.Context, ipAddress string, windowMinutes, threshold int) (*models.BruteForceResult, error)
	GetAttemptHistoryFunc  func(ctx context.Context, identifier string, opts models.HistoryOptions) ([]*models.LoginAttempt, int64, error)
	CleanupOldAttemptsFunc func(ctx context.Context, daysToKeep int) (int64, error)
	GetLockoutStatsFunc    func(ctx context.Context, since time.Time) (*models.LockoutStats, error)
}

func (m *MockLockoutService) RecordAttempt(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, identifier, params)
	}
	return nil
}

func (m *MockLockoutService) GuardLogin(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
	if m.GuardLoginFunc != nil {
		return m.GuardLoginFunc(ctx, identifier, params)
	}
	return nil
}

func (m *MockLockoutService) IsAccountLocked(ctx context.Context, identifier string) (*models.LockoutStatus, error) {
	if m.IsAccountLockedFunc != nil {
		return m.IsAccountLockedFunc(ctx, identifier)
	}
	return &models.LockoutStatus{AttemptsRemaining: 5}, nil
}

func (m *MockLockoutService) UnlockAccount(ctx context.Context, identifier string) error {
	if m.UnlockAccountFunc != nil {
		return m.UnlockAccountFunc(ctx, identifier)
	}
	return nil
}

func (m *MockLockoutService) DetectBruteForce(ctx context.Context, ipAddress string, windowMinutes, threshold int) (*models.BruteForceResult, error) {
	if m.DetectBruteForceFunc != nil {
		return m.DetectBruteForceFunc(ctx, ipAddress, windowMinutes, threshold)
	}
	return &models.BruteForceResult{Reasons: []string{}}, nil
}

func (m *MockLockoutService) GetAttemptHistory(ctx context.Context, identifier string, opts models.HistoryOptions) ([]*models.LoginAttempt, int64, error) {
	if m.GetAttemptHistoryFunc != nil {
		return m.GetAttemptHistoryFunc(ctx, identifier, opts)
	}
	return []*models.LoginAttempt{}, 0, nil
}

func (m *MockLockoutService) CleanupOldAttempts(ctx context.Context, daysToKeep int) (int64, error) {
	if m.CleanupOldAttemptsFunc != nil {
		return m.CleanupOldAttemptsFunc(ctx, daysToKeep)
	}
	return 0, nil
}

func (m *MockLockoutService) GetLockoutStats(ctx context.Context, since time.Time) (*models.LockoutStats, error) {
	if m.GetLockoutStatsFunc != nil {
		return m.GetLockoutStatsFunc(ctx, since)
	}
	return &models.LockoutStats{}, nil
}
