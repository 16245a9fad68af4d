//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	middlewareCustom "github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/BradenHooton/gatekeeper/internal/routes"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
)

const testJWTSecret = "test-secret-32-characters-long-for-testing"

// TestServer wraps httptest.Server with the real stores behind it
type TestServer struct {
	Server  *httptest.Server
	Service *services.LockoutService

	serviceToken string
	adminToken   string
}

// NewTestServer wires the full HTTP stack over a Postgres audit store and the given counter store
func NewTestServer(db *TestDB, counters *repositories.CounterStore, cfg services.LockoutConfig, opts ...services.Option) (*TestServer, error) {
	logger := quietLogger()

	svc := services.NewLockoutService(repositories.NewLoginAttemptRepository(db.DB), counters, cfg, logger, opts...)

	tokenManager := auth.NewTokenManager(testJWTSecret)
	serviceToken, err := tokenManager.GenerateToken("auth-frontend", models.RoleService, time.Hour)
	if err != nil {
		return nil, err
	}
	adminToken, err := tokenManager.GenerateToken("ops", models.RoleAdmin, time.Hour)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(router,
		handlers.NewLockoutHandler(svc, &pkghttp.IPConfig{}, logger),
		handlers.NewHealthHandler(map[string]handlers.HealthChecker{"database": db.DB}),
		tokenManager,
	)

	return &TestServer{
		Server:       httptest.NewServer(router),
		Service:      svc,
		serviceToken: serviceToken,
		adminToken:   adminToken,
	}, nil
}

// Close waits for background writes and stops the server
func (ts *TestServer) Close() {
	ts.Service.Wait()
	ts.Server.Close()
}

// AsService sends a request with the auth front-end's token
func (ts *TestServer) AsService(method, path string, body interface{}) (*http.Response, error) {
	return ts.do(method, path, body, ts.serviceToken)
}

// AsAdmin sends a request with an operator token
func (ts *TestServer) AsAdmin(method, path string, body interface{}) (*http.Response, error) {
	return ts.do(method, path, body, ts.adminToken)
}

func (ts *TestServer) do(method, path string, body interface{}, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return ts.Server.Client().Do(req)
}

// DecodeJSON decodes and closes a response body
func DecodeJSON(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
