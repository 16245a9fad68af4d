package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(svc handlers.LockoutServiceInterface) http.Handler {
	h := handlers.NewLockoutHandler(svc, &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Post("/v1/login-attempts", h.RecordAttempt)
	r.Post("/v1/login-attempts/guard", h.GuardLogin)
	r.Get("/v1/login-attempts", h.GetAttemptHistory)
	r.Delete("/v1/login-attempts", h.CleanupOldAttempts)
	r.Get("/v1/lockouts/stats", h.GetLockoutStats)
	r.Get("/v1/lockouts/{identifier}", h.GetLockoutStatus)
	r.Delete("/v1/lockouts/{identifier}", h.UnlockAccount)
	r.Get("/v1/security/brute-force", h.DetectBruteForce)
	return r
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ── RecordAttempt ────────────────────────────────────────────────────────────

func TestRecordAttempt_Failure_Returns202(t *testing.T) {
	var gotIdentifier string
	var gotParams models.RecordAttemptParams
	mock := &handlers.MockLockoutService{
		RecordAttemptFunc: func(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
			gotIdentifier, gotParams = identifier, params
			return nil
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/v1/login-attempts", map[string]interface{}{
		"identifier":     "user@x.com",
		"email":          "user@x.com",
		"ip_address":     "203.0.113.7",
		"success":        false,
		"failure_reason": "invalid_credentials",
	})
	w := serve(newTestRouter(mock), req)

	handlers.AssertJSONResponse(t, w, http.StatusAccepted, nil)
	assert.Equal(t, "user@x.com", gotIdentifier)
	assert.Equal(t, "203.0.113.7", gotParams.IPAddress)
	require.NotNil(t, gotParams.FailureReason)
	assert.Equal(t, models.FailureInvalidCredentials, *gotParams.FailureReason)
}

func TestRecordAttempt_DefaultsIPFromTrustedProxy(t *testing.T) {
	var gotIP string
	mock := &handlers.MockLockoutService{
		RecordAttemptFunc: func(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
			gotIP = params.IPAddress
			return nil
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/v1/login-attempts", map[string]interface{}{
		"identifier":     "alice",
		"username":       "alice",
		"success":        false,
		"failure_reason": "user_not_found",
	})
	req.RemoteAddr = "10.1.2.3:4567"
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.1.2.3")
	w := serve(newTestRouter(mock), req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "198.51.100.4", gotIP)
}

func TestRecordAttempt_ValidationErrors_Return400(t *testing.T) {
	called := false
	mock := &handlers.MockLockoutService{
		RecordAttemptFunc: func(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
			called = true
			return nil
		},
	}

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing identifier", map[string]interface{}{"email": "a@x.com", "success": false, "failure_reason": "invalid_credentials"}},
		{"missing email and username", map[string]interface{}{"identifier": "a", "success": false, "failure_reason": "invalid_credentials"}},
		{"failure without reason", map[string]interface{}{"identifier": "a", "email": "a@x.com", "success": false}},
		{"success without user id", map[string]interface{}{"identifier": "a", "email": "a@x.com", "success": true}},
		{"unknown reason", map[string]interface{}{"identifier": "a", "email": "a@x.com", "success": false, "failure_reason": "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newTestRouter(mock), handlers.NewTestRequest(t, "POST", "/v1/login-attempts", tt.body))
			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_failed")
		})
	}
	assert.False(t, called)
}

func TestRecordAttempt_MalformedBody_Returns400(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/login-attempts", strings.NewReader(`{"identifier": `))
	w := serve(newTestRouter(&handlers.MockLockoutService{}), req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestRecordAttempt_UnknownField_Returns400(t *testing.T) {
	req := httptest.NewRequest("POST", "/v1/login-attempts", strings.NewReader(`{"identifier":"a","email":"a@x.com","password":"hunter2"}`))
	w := serve(newTestRouter(&handlers.MockLockoutService{}), req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestRecordAttempt_CounterStoreDown_Returns503(t *testing.T) {
	mock := &handlers.MockLockoutService{
		RecordAttemptFunc: func(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
			return fmt.Errorf("failed to record failed attempt: %w", models.ErrCounterStoreUnavailable)
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/v1/login-attempts", map[string]interface{}{
		"identifier":     "user@x.com",
		"email":          "user@x.com",
		"ip_address":     "203.0.113.7",
		"failure_reason": "invalid_credentials",
	})
	w := serve(newTestRouter(mock), req)

	handlers.AssertErrorResponse(t, w, http.StatusServiceUnavailable, "service_unavailable")
}

// ── GuardLogin ───────────────────────────────────────────────────────────────

func TestGuardLogin_NotLocked_Returns204(t *testing.T) {
	w := serve(newTestRouter(&handlers.MockLockoutService{}), handlers.NewTestRequest(t, "POST", "/v1/login-attempts/guard",
		map[string]interface{}{"identifier": "user@x.com", "email": "user@x.com"}))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestGuardLogin_Locked_Returns423(t *testing.T) {
	until := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
	var gotParams models.RecordAttemptParams
	mock := &handlers.MockLockoutService{
		GuardLoginFunc: func(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
			gotParams = params
			return &models.LockoutError{Identifier: identifier, LockedUntil: until}
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/v1/login-attempts/guard",
		map[string]interface{}{"identifier": "user@x.com", "email": "user@x.com", "user_agent": "curl/8"})
	req.RemoteAddr = "192.0.2.1:5555"
	w := serve(newTestRouter(mock), req)

	var resp pkghttp.ErrorResponse
	handlers.AssertJSONResponse(t, w, http.StatusLocked, &resp)
	assert.Equal(t, "account_locked", resp.Error)
	require.NotNil(t, resp.LockedUntil)
	assert.True(t, until.Equal(*resp.LockedUntil))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "192.0.2.1", gotParams.IPAddress)
}

func TestAttemptIP_ResolvedFromTrustedProxyWhenBodyOmitsIt(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		bodyIP     string
		wantIP     string
	}{
		{"forwarded for via trusted proxy", "10.0.0.5:443", map[string]string{"X-Forwarded-For": "198.51.100.9"}, "", "198.51.100.9"},
		{"real ip via trusted proxy", "10.0.0.5:443", map[string]string{"X-Real-IP": "198.51.100.10"}, "", "198.51.100.10"},
		{"spoofed header from untrusted peer", "203.0.113.50:1234", map[string]string{"X-Forwarded-For": "198.51.100.9"}, "", "203.0.113.50"},
		{"body ip wins over headers", "10.0.0.5:443", map[string]string{"X-Forwarded-For": "198.51.100.9"}, "192.0.2.77", "192.0.2.77"},
	}

	for _, tt := range tests {
		for _, path := range []string{"/v1/login-attempts", "/v1/login-attempts/guard"} {
			t.Run(tt.name+" "+path, func(t *testing.T) {
				var gotIP string
				mock := &handlers.MockLockoutService{
					RecordAttemptFunc: func(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
						gotIP = params.IPAddress
						return nil
					},
					GuardLoginFunc: func(ctx context.Context, identifier string, params models.RecordAttemptParams) error {
						gotIP = params.IPAddress
						return nil
					},
				}

				body := map[string]interface{}{"identifier": "user@x.com", "email": "user@x.com"}
				if path == "/v1/login-attempts" {
					body["success"] = false
					body["failure_reason"] = "invalid_credentials"
				}
				if tt.bodyIP != "" {
					body["ip_address"] = tt.bodyIP
				}

				req := handlers.NewTestRequest(t, "POST", path, body)
				req.RemoteAddr = tt.remoteAddr
				for k, v := range tt.headers {
					req.Header.Set(k, v)
				}
				w := serve(newTestRouter(mock), req)

				assert.Less(t, w.Code, 300)
				assert.Equal(t, tt.wantIP, gotIP)
			})
		}
	}
}

// ── Lockout status / unlock ──────────────────────────────────────────────────

func TestGetLockoutStatus_Returns200(t *testing.T) {
	ends := time.Now().Add(5 * time.Minute).UTC()
	mock := &handlers.MockLockoutService{
		IsAccountLockedFunc: func(ctx context.Context, identifier string) (*models.LockoutStatus, error) {
			assert.Equal(t, "user@x.com", identifier)
			return &models.LockoutStatus{IsLocked: true, LockoutEndsAt: &ends, TotalAttempts: 5}, nil
		},
	}

	w := serve(newTestRouter(mock), httptest.NewRequest("GET", "/v1/lockouts/user@x.com", nil))

	var status models.LockoutStatus
	handlers.AssertJSONResponse(t, w, http.StatusOK, &status)
	assert.True(t, status.IsLocked)
	assert.Equal(t, 5, status.TotalAttempts)
	assert.Equal(t, 0, status.AttemptsRemaining)
}

func TestGetLockoutStatus_StoreError_Returns500(t *testing.T) {
	mock := &handlers.MockLockoutService{
		IsAccountLockedFunc: func(ctx context.Context, identifier string) (*models.LockoutStatus, error) {
			return nil, errors.New("boom")
		},
	}

	w := serve(newTestRouter(mock), httptest.NewRequest("GET", "/v1/lockouts/user@x.com", nil))
	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}

func TestUnlockAccount_Returns204(t *testing.T) {
	var unlocked string
	mock := &handlers.MockLockoutService{
		UnlockAccountFunc: func(ctx context.Context, identifier string) error {
			unlocked = identifier
			return nil
		},
	}

	w := serve(newTestRouter(mock), httptest.NewRequest("DELETE", "/v1/lockouts/alice", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "alice", unlocked)
}

// ── History / cleanup / stats ────────────────────────────────────────────────

func TestGetAttemptHistory_PassesFilters(t *testing.T) {
	var gotOpts models.HistoryOptions
	mock := &handlers.MockLockoutService{
		GetAttemptHistoryFunc: func(ctx context.Context, identifier string, opts models.HistoryOptions) ([]*models.LoginAttempt, int64, error) {
			assert.Equal(t, "1.2.3.4", identifier)
			gotOpts = opts
			return []*models.LoginAttempt{{ID: "a1", IPAddress: "1.2.3.4"}}, 42, nil
		},
	}

	w := serve(newTestRouter(mock), httptest.NewRequest("GET",
		"/v1/login-attempts?identifier=1.2.3.4&identifier_type=ip&limit=10&offset=20&failed_only=true", nil))

	var resp handlers.AttemptHistoryResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "42", w.Header().Get("X-Total-Count"))
	assert.Equal(t, int64(42), resp.Total)
	assert.Equal(t, 10, resp.Limit)
	assert.Equal(t, 20, resp.Offset)
	assert.Len(t, resp.Attempts, 1)
	assert.Equal(t, models.HistoryOptions{IdentifierType: "ip", Limit: 10, Offset: 20, FailedOnly: true}, gotOpts)
}

func TestGetAttemptHistory_EchoesClampedPage(t *testing.T) {
	mock := &handlers.MockLockoutService{
		GetAttemptHistoryFunc: func(ctx context.Context, identifier string, opts models.HistoryOptions) ([]*models.LoginAttempt, int64, error) {
			return nil, 0, nil
		},
	}

	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"limit=100", services.MaxHistoryLimit, 0},
		{"limit=101&offset=-5", services.DefaultHistoryLimit, 0},
		{"offset=10", services.DefaultHistoryLimit, 10},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := serve(newTestRouter(mock), httptest.NewRequest("GET", "/v1/login-attempts?identifier=a&"+tt.query, nil))

			var resp handlers.AttemptHistoryResponse
			handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
			assert.Equal(t, tt.wantLimit, resp.Limit)
			assert.Equal(t, tt.wantOffset, resp.Offset)
		})
	}
}

func TestGetAttemptHistory_BadQuery_Returns400(t *testing.T) {
	for _, q := range []string{"limit=ten", "offset=x", "success_only=maybe", "failed_only=2x"} {
		w := serve(newTestRouter(&handlers.MockLockoutService{}), httptest.NewRequest("GET", "/v1/login-attempts?identifier=a&"+q, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetAttemptHistory_ServiceValidationError_Returns400(t *testing.T) {
	mock := &handlers.MockLockoutService{
		GetAttemptHistoryFunc: func(ctx context.Context, identifier string, opts models.HistoryOptions) ([]*models.LoginAttempt, int64, error) {
			return nil, 0, fmt.Errorf("%w: identifier is required", models.ErrValidation)
		},
	}

	w := serve(newTestRouter(mock), httptest.NewRequest("GET", "/v1/login-attempts", nil))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_failed")
}

func TestCleanupOldAttempts_Returns200(t *testing.T) {
	mock := &handlers.MockLockoutService{
		CleanupOldAttemptsFunc: func(ctx context.Context, daysToKeep int) (int64, error) {
			assert.Equal(t, 30, daysToKeep)
			return 7, nil
		},
	}

	w := serve(newTestRouter(mock), httptest.NewRequest("DELETE", "/v1/login-attempts?days_to_keep=30", nil))

	var resp handlers.CleanupResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, handlers.CleanupResponse{Deleted: 7, DaysToKeep: 30}, resp)
}

func TestGetLockoutStats_DefaultsToLast24Hours(t *testing.T) {
	var gotSince time.Time
	mock := &handlers.MockLockoutService{
		GetLockoutStatsFunc: func(ctx context.Context, since time.Time) (*models.LockoutStats, error) {
			gotSince = since
			return &models.LockoutStats{TotalAttempts: 3, CurrentlyLocked: 1}, nil
		},
	}

	w := serve(newTestRouter(mock), httptest.NewRequest("GET", "/v1/lockouts/stats", nil))

	var stats models.LockoutStats
	handlers.AssertJSONResponse(t, w, http.StatusOK, &stats)
	assert.Equal(t, int64(1), stats.CurrentlyLocked)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), gotSince, time.Minute)
}

func TestGetLockoutStats_ExplicitSince(t *testing.T) {
	var gotSince time.Time
	mock := &handlers.MockLockoutService{
		GetLockoutStatsFunc: func(ctx context.Context, since time.Time) (*models.LockoutStats, error) {
			gotSince = since
			return &models.LockoutStats{}, nil
		},
	}

	w := serve(newTestRouter(mock), httptest.NewRequest("GET", "/v1/lockouts/stats?since=2026-01-02T03:04:05Z", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), gotSince)
}

// ── Brute force ──────────────────────────────────────────────────────────────

func TestDetectBruteForce_Returns200(t *testing.T) {
	mock := &handlers.MockLockoutService{
		DetectBruteForceFunc: func(ctx context.Context, ip string, windowMinutes, threshold int) (*models.BruteForceResult, error) {
			assert.Equal(t, "1.2.3.4", ip)
			assert.Equal(t, 60, windowMinutes)
			assert.Equal(t, 20, threshold)
			return &models.BruteForceResult{IsSuspicious: true, AttemptCount: 25, Reasons: []string{"attempt count 25 meets threshold 20 within 60 minutes"}}, nil
		},
	}

	w := serve(newTestRouter(mock), httptest.NewRequest("GET", "/v1/security/brute-force?ip=1.2.3.4&window_minutes=60&threshold=20", nil))

	var result models.BruteForceResult
	handlers.AssertJSONResponse(t, w, http.StatusOK, &result)
	assert.True(t, result.IsSuspicious)
	assert.Equal(t, 25, result.AttemptCount)
}

func TestDetectBruteForce_MissingIP_Returns400(t *testing.T) {
	w := serve(newTestRouter(&handlers.MockLockoutService{}), httptest.NewRequest("GET", "/v1/security/brute-force", nil))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}
