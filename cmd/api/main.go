package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/background"
	"github.com/BradenHooton/gatekeeper/internal/config"
	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	middlewareCustom "github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/BradenHooton/gatekeeper/internal/routes"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("audit_store", cfg.Audit.Driver))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	attempts, auditHealth, closeAudit, err := openAuditStore(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to open audit store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeAudit()

	rdb, err := database.NewRedisConnection(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer rdb.Close()

	counters := repositories.NewCounterStore(rdb)

	var notifier services.LockoutNotifier = services.NoopNotifier{}
	if cfg.Email.FromAddress != "" {
		sesNotifier, err := services.NewSESLockoutNotifier(context.Background(), cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	} else {
		logger.Info("EMAIL_FROM_ADDRESS not set, lockout emails disabled")
	}

	lockoutService := services.NewLockoutService(attempts, counters, services.LockoutConfig{
		MaxAttempts:         cfg.Lockout.MaxAttempts,
		LockoutDuration:     cfg.Lockout.LockoutDuration,
		TrackingWindow:      cfg.Lockout.TrackingWindow,
		BruteForceThreshold: cfg.Lockout.BruteForceThreshold,
		BruteForceWindow:    cfg.Lockout.BruteForceWindow,
		KeyPrefix:           cfg.Lockout.KeyPrefix,
		AsyncTimeout:        cfg.Lockout.AsyncTimeout,
		AsyncMaxInFlight:    cfg.Lockout.AsyncMaxInFlight,
	}, logger,
		services.WithNotifier(notifier),
		services.WithAuditLogger(pkglogger.NewAuditLogger(logger)),
	)

	policy := lockoutService.Config()
	logger.Info("lockout policy",
		slog.Int("max_attempts", policy.MaxAttempts),
		slog.Duration("lockout_duration", policy.LockoutDuration),
		slog.Duration("tracking_window", policy.TrackingWindow),
		slog.Int("brute_force_threshold", policy.BruteForceThreshold),
		slog.Duration("brute_force_window", policy.BruteForceWindow),
		slog.Int("async_max_in_flight", policy.AsyncMaxInFlight))

	cleanupManager := background.NewCleanupManager(lockoutService, logger, cfg.Audit.CleanupInterval, cfg.Audit.RetentionDays)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)

	lockoutHandler := handlers.NewLockoutHandler(lockoutService,
		&pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}, logger)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthChecker{
		"database": auditHealth,
		"redis":    rdb,
	})

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, lockoutHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Let in-flight audit writes land before the stores close
	lockoutService.Wait()

	logger.Info("server stopped gracefully")
}

// openAuditStore connects the configured durable backend and applies migrations
func openAuditStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.AttemptStore, handlers.HealthChecker, func(), error) {
	if cfg.Audit.Driver == config.DriverSQLite {
		db, err := database.NewSQLiteConnection(ctx, cfg.Audit.SQLitePath, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return repositories.NewSQLiteLoginAttemptRepository(db), db, db.Close, nil
	}

	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return repositories.NewLoginAttemptRepository(db), db, db.Close, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
