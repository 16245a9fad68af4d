package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
)

// SQLiteLoginAttemptRepository stores the audit trail in SQLite for single-node deployments
type SQLiteLoginAttemptRepository struct {
	db *sql.DB
}

func NewSQLiteLoginAttemptRepository(db *database.SQLiteDB) *SQLiteLoginAttemptRepository {
	return &SQLiteLoginAttemptRepository{db: db.DB}
}

func newSQLiteAttemptQuery() *attemptQuery {
	return &attemptQuery{
		placeholder: func(int) string { return "?" },
		timeArg:     func(t time.Time) interface{} { return t.UnixMicro() },
	}
}

func scanSQLiteLoginAttemptRow(row rowScanner) (*models.LoginAttempt, error) {
	var (
		attempt   models.LoginAttempt
		createdAt int64
	)

	err := row.Scan(
		&attempt.ID, &attempt.UserID, &attempt.Email, &attempt.Username,
		&attempt.IPAddress, &attempt.UserAgent, &attempt.Success,
		&attempt.FailureReason, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	attempt.CreatedAt = time.UnixMicro(createdAt).UTC()
	return &attempt, nil
}

func (r *SQLiteLoginAttemptRepository) Insert(ctx context.Context, attempt *models.LoginAttempt) (string, error) {
	id, err := attemptID(attempt)
	if err != nil {
		return "", err
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO login_attempts (id, user_id, email, username, ip_address, user_agent, success, failure_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		id.String(),
		attempt.UserID,
		attempt.Email,
		attempt.Username,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		attempt.FailureReason,
		attempt.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert login attempt: %w", err)
	}

	attempt.ID = id.String()
	return attempt.ID, nil
}

func (r *SQLiteLoginAttemptRepository) Query(ctx context.Context, filter models.AttemptFilter, page models.Page) ([]*models.LoginAttempt, int64, error) {
	q := newSQLiteAttemptQuery()
	if err := q.where(filter); err != nil {
		return nil, 0, err
	}

	countQuery := q.countSQL()
	countArgs := append([]interface{}{}, q.args...)

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count login attempts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, q.selectSQL(page), q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query login attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)
	for rows.Next() {
		attempt, err := scanSQLiteLoginAttemptRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating login attempt rows: %w", err)
	}

	return attempts, total, nil
}

func (r *SQLiteLoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE created_at < ?`, cutoff.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old login attempts: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteLoginAttemptRepository) Stats(ctx context.Context, since time.Time) (*models.AttemptQueryStats, error) {
	var stats models.AttemptQueryStats

	err := r.db.QueryRowContext(ctx, fmt.Sprintf(attemptStatsSQL, "?"), since.UnixMicro()).Scan(
		&stats.Total, &stats.Failed, &stats.Successful, &stats.UniqueIPs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate login attempts: %w", err)
	}

	return &stats, nil
}
