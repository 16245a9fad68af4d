package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Audit store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Lockout  LockoutConfig
	Audit    AuditConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret string
}

// LockoutConfig holds the thresholds that drive lockout and brute-force decisions
type LockoutConfig struct {
	MaxAttempts         int
	LockoutDuration     time.Duration
	TrackingWindow      time.Duration
	BruteForceThreshold int
	BruteForceWindow    time.Duration
	KeyPrefix           string
	AsyncTimeout        time.Duration
	AsyncMaxInFlight    int
}

type AuditConfig struct {
	Driver          string
	SQLitePath      string
	RetentionDays   int
	CleanupInterval time.Duration
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string
}

// DefaultLockoutConfig returns the documented defaults
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts:         5,
		LockoutDuration:     15 * time.Minute,
		TrackingWindow:      15 * time.Minute,
		BruteForceThreshold: 20,
		BruteForceWindow:    60 * time.Minute,
		KeyPrefix:           "lockout:",
		AsyncTimeout:        5 * time.Second,
		AsyncMaxInFlight:    1024,
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")
	defaults := DefaultLockoutConfig()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "gatekeeper"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 20),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			JWTSecret: jwtSecret,
		},
		Lockout: LockoutConfig{
			MaxAttempts:         getEnvAsInt("LOCKOUT_MAX_ATTEMPTS", defaults.MaxAttempts),
			LockoutDuration:     getEnvAsDuration("LOCKOUT_DURATION", defaults.LockoutDuration),
			TrackingWindow:      getEnvAsDuration("LOCKOUT_TRACKING_WINDOW", defaults.TrackingWindow),
			BruteForceThreshold: getEnvAsInt("BRUTE_FORCE_THRESHOLD", defaults.BruteForceThreshold),
			BruteForceWindow:    getEnvAsDuration("BRUTE_FORCE_WINDOW", defaults.BruteForceWindow),
			KeyPrefix:           getEnv("LOCKOUT_KEY_PREFIX", defaults.KeyPrefix),
			AsyncTimeout:        getEnvAsDuration("LOCKOUT_ASYNC_TIMEOUT", defaults.AsyncTimeout),
			AsyncMaxInFlight:    getEnvAsInt("LOCKOUT_ASYNC_MAX_IN_FLIGHT", defaults.AsyncMaxInFlight),
		},
		Audit: AuditConfig{
			Driver:          strings.ToLower(getEnv("AUDIT_STORE_DRIVER", DriverPostgres)),
			SQLitePath:      getEnv("AUDIT_SQLITE_PATH", "gatekeeper.db"),
			RetentionDays:   getEnvAsInt("AUDIT_RETENTION_DAYS", 90),
			CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
	}

	if cfg.Audit.Driver == DriverPostgres && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings that would make lockout decisions meaningless
func (c *Config) Validate() error {
	if err := c.Lockout.Validate(); err != nil {
		return err
	}

	switch c.Audit.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("AUDIT_STORE_DRIVER must be %q or %q (got %q)", DriverPostgres, DriverSQLite, c.Audit.Driver)
	}

	if c.Audit.RetentionDays < 1 {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must be at least 1")
	}

	return nil
}

func (c *LockoutConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be at least 1")
	}
	if c.LockoutDuration <= 0 {
		return fmt.Errorf("LOCKOUT_DURATION must be positive")
	}
	if c.TrackingWindow <= 0 {
		return fmt.Errorf("LOCKOUT_TRACKING_WINDOW must be positive")
	}
	if c.BruteForceThreshold < 1 {
		return fmt.Errorf("BRUTE_FORCE_THRESHOLD must be at least 1")
	}
	if c.BruteForceWindow < time.Minute {
		return fmt.Errorf("BRUTE_FORCE_WINDOW must be at least 1m")
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("LOCKOUT_KEY_PREFIX cannot be empty")
	}
	if c.AsyncMaxInFlight < 1 {
		return fmt.Errorf("LOCKOUT_ASYNC_MAX_IN_FLIGHT must be at least 1")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
