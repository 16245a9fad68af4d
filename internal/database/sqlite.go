package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteDB is the single-node audit store backend
type SQLiteDB struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewSQLiteConnection opens (or creates) a SQLite database and applies migrations.
// Use ":memory:" for an ephemeral database.
func NewSQLiteConnection(ctx context.Context, path string, logger *slog.Logger) (*SQLiteDB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}

	// SQLite serialises writers; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping sqlite database: %w", err)
	}

	if err := runMigrations(ctx, db, goose.DialectSQLite3, "sqlite", logger); err != nil {
		db.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info("sqlite audit store ready", slog.String("path", path))
	}

	return &SQLiteDB{DB: db, logger: logger}, nil
}

func (s *SQLiteDB) Close() {
	if s.logger != nil {
		s.logger.Info("closing sqlite database")
	}
	s.DB.Close()
}

func (s *SQLiteDB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite health check failed: %w", err)
	}
	return nil
}
