package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginAttemptRepository handles Postgres operations for the login attempt audit trail
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

func newPostgresAttemptQuery() *attemptQuery {
	return &attemptQuery{
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		timeArg:     func(t time.Time) interface{} { return t },
	}
}

// scanLoginAttemptRow populates a LoginAttempt from a Postgres row
func scanLoginAttemptRow(row rowScanner) (*models.LoginAttempt, error) {
	var (
		attempt models.LoginAttempt
		id      uuid.UUID
	)

	err := row.Scan(
		&id, &attempt.UserID, &attempt.Email, &attempt.Username,
		&attempt.IPAddress, &attempt.UserAgent, &attempt.Success,
		&attempt.FailureReason, &attempt.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	attempt.ID = id.String()
	return &attempt, nil
}

// Insert appends a login attempt and returns its ID
func (r *LoginAttemptRepository) Insert(ctx context.Context, attempt *models.LoginAttempt) (string, error) {
	id, err := attemptID(attempt)
	if err != nil {
		return "", err
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO login_attempts (id, user_id, email, username, ip_address, user_agent, success, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.pool.Exec(ctx, query,
		id,
		attempt.UserID,
		attempt.Email,
		attempt.Username,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		attempt.FailureReason,
		attempt.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert login attempt: %w", database.MapPostgresError(err))
	}

	attempt.ID = id.String()
	return attempt.ID, nil
}

// Query returns the attempts matching filter, newest first, plus the unpaged total
func (r *LoginAttemptRepository) Query(ctx context.Context, filter models.AttemptFilter, page models.Page) ([]*models.LoginAttempt, int64, error) {
	q := newPostgresAttemptQuery()
	if err := q.where(filter); err != nil {
		return nil, 0, err
	}

	countQuery := q.countSQL()
	countArgs := append([]interface{}{}, q.args...)

	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count login attempts: %w", database.MapPostgresError(err))
	}

	rows, err := r.pool.Query(ctx, q.selectSQL(page), q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query login attempts: %w", database.MapPostgresError(err))
	}

	attempts, err := scanLoginAttemptRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

// scanLoginAttemptRows iterates through rows and scans each into LoginAttempt models
func scanLoginAttemptRows(rows pgx.Rows) ([]*models.LoginAttempt, error) {
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)

	for rows.Next() {
		attempt, err := scanLoginAttemptRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login attempt rows: %w", database.MapPostgresError(err))
	}

	return attempts, nil
}

// DeleteOlderThan removes attempts created before cutoff
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old login attempts: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected(), nil
}

// Stats aggregates attempts created at or after since
func (r *LoginAttemptRepository) Stats(ctx context.Context, since time.Time) (*models.AttemptQueryStats, error) {
	var stats models.AttemptQueryStats

	err := r.pool.QueryRow(ctx, fmt.Sprintf(attemptStatsSQL, "$1"), since).Scan(
		&stats.Total, &stats.Failed, &stats.Successful, &stats.UniqueIPs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate login attempts: %w", database.MapPostgresError(err))
	}

	return &stats, nil
}

// attemptID parses a caller-supplied ID or generates a new one
func attemptID(attempt *models.LoginAttempt) (uuid.UUID, error) {
	if attempt.ID == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(attempt.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid attempt id", models.ErrBadRequest)
	}
	return id, nil
}
