package routes

import (
	"net/http"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/models"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	lockoutHandler *handlers.LockoutHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *auth.TokenManager,
) {
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Route not found")
	})

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(middleware.DefaultHealthRateLimit())).
		Get("/health", healthHandler.Health)

	router.Route("/v1", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		// Auth front-end (service tokens); operators may call these too
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleService, models.RoleAdmin))
			r.Post("/login-attempts", lockoutHandler.RecordAttempt)
			r.Post("/login-attempts/guard", lockoutHandler.GuardLogin)
			r.Get("/lockouts/{identifier}", lockoutHandler.GetLockoutStatus)
		})

		// Operator-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Get("/login-attempts", lockoutHandler.GetAttemptHistory)
			r.Delete("/login-attempts", lockoutHandler.CleanupOldAttempts)
			r.Get("/lockouts/stats", lockoutHandler.GetLockoutStats)
			r.Delete("/lockouts/{identifier}", lockoutHandler.UnlockAccount)
			r.With(middleware.RateLimitBySubject(middleware.DefaultReportingRateLimit())).
				Get("/security/brute-force", lockoutHandler.DetectBruteForce)
		})
	})
}
