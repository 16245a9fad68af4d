package routes

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/models"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.TokenManager) {
	t.Helper()

	tm := auth.NewTokenManager("routes-test-secret-with-enough-bytes")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := chi.NewRouter()
	RegisterRoutes(router,
		handlers.NewLockoutHandler(&handlers.MockLockoutService{}, &pkghttp.IPConfig{}, logger),
		handlers.NewHealthHandler(map[string]handlers.HealthChecker{}),
		tm,
	)
	return router, tm
}

func TestRegisterRoutes_RoleEnforcement(t *testing.T) {
	router, tm := newTestRouter(t)

	serviceToken, err := tm.GenerateToken("auth-frontend", models.RoleService, time.Hour)
	require.NoError(t, err)
	adminToken, err := tm.GenerateToken("ops", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"health is public", "GET", "/health", "", http.StatusOK},
		{"v1 requires a token", "GET", "/v1/lockouts/user@x.com", "", http.StatusUnauthorized},
		{"service checks lockout", "GET", "/v1/lockouts/user@x.com", serviceToken, http.StatusOK},
		{"admin checks lockout", "GET", "/v1/lockouts/user@x.com", adminToken, http.StatusOK},
		{"service cannot unlock", "DELETE", "/v1/lockouts/user@x.com", serviceToken, http.StatusForbidden},
		{"admin unlocks", "DELETE", "/v1/lockouts/user@x.com", adminToken, http.StatusNoContent},
		{"stats is not an identifier", "GET", "/v1/lockouts/stats", adminToken, http.StatusOK},
		{"service cannot read stats", "GET", "/v1/lockouts/stats", serviceToken, http.StatusForbidden},
		{"service cannot read history", "GET", "/v1/login-attempts?identifier=a", serviceToken, http.StatusForbidden},
		{"admin reads history", "GET", "/v1/login-attempts?identifier=a", adminToken, http.StatusOK},
		{"admin runs brute force scan", "GET", "/v1/security/brute-force?ip=1.2.3.4", adminToken, http.StatusOK},
		{"unknown route is a JSON 404", "GET", "/v2/anything", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
