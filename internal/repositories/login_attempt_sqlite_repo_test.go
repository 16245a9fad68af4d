package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T) *repositories.SQLiteLoginAttemptRepository {
	t.Helper()

	db, err := database.NewSQLiteConnection(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return repositories.NewSQLiteLoginAttemptRepository(db)
}

func strPtr(s string) *string { return &s }

func failedAttempt(email, ip string, at time.Time) *models.LoginAttempt {
	return &models.LoginAttempt{
		Email:         strPtr(email),
		IPAddress:     ip,
		Success:       false,
		FailureReason: strPtr(string(models.FailureInvalidCredentials)),
		CreatedAt:     at,
	}
}

func TestSQLiteLoginAttemptRepository_InsertGeneratesID(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	attempt := failedAttempt("alice@example.com", "10.0.0.1", time.Now())
	id, err := repo.Insert(ctx, attempt)

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, attempt.ID)

	rows, total, err := repo.Query(ctx, models.AttemptFilter{}, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ID)
	assert.Equal(t, "alice@example.com", *rows[0].Email)
	assert.Nil(t, rows[0].Username)
	assert.Nil(t, rows[0].UserID)
	assert.False(t, rows[0].Success)
	assert.Equal(t, "invalid_credentials", *rows[0].FailureReason)
}

func TestSQLiteLoginAttemptRepository_InsertRejectsMissingIdentifier(t *testing.T) {
	repo := newSQLiteRepo(t)

	_, err := repo.Insert(context.Background(), &models.LoginAttempt{
		IPAddress: "10.0.0.1",
		Success:   true,
	})

	assert.Error(t, err)
}

func TestSQLiteLoginAttemptRepository_QueryFiltersByIPAndWindow(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.Insert(ctx, failedAttempt("a@example.com", "1.2.3.4", now.Add(-90*time.Minute)))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, failedAttempt("b@example.com", "1.2.3.4", now.Add(-30*time.Minute)))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, failedAttempt("c@example.com", "5.6.7.8", now.Add(-10*time.Minute)))
	require.NoError(t, err)

	since := now.Add(-60 * time.Minute)
	rows, total, err := repo.Query(ctx, models.AttemptFilter{IPAddress: "1.2.3.4", Since: &since}, models.Page{})

	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "b@example.com", *rows[0].Email)
}

func TestSQLiteLoginAttemptRepository_QueryByIdentifierType(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.Insert(ctx, failedAttempt("bob@example.com", "10.0.0.1", now))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, &models.LoginAttempt{
		Username:      strPtr("bob@example.com"),
		IPAddress:     "10.0.0.2",
		FailureReason: strPtr(string(models.FailureInvalidCredentials)),
		CreatedAt:     now,
	})
	require.NoError(t, err)

	_, total, err := repo.Query(ctx, models.AttemptFilter{
		IdentifierType:  models.IdentifierEmail,
		IdentifierValue: "bob@example.com",
	}, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = repo.Query(ctx, models.AttemptFilter{
		IdentifierType:  models.IdentifierAny,
		IdentifierValue: "bob@example.com",
	}, models.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, _, err = repo.Query(ctx, models.AttemptFilter{
		IdentifierType:  "phone",
		IdentifierValue: "bob@example.com",
	}, models.Page{})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestSQLiteLoginAttemptRepository_QueryPagesNewestFirst(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		_, err := repo.Insert(ctx, failedAttempt("pager@example.com", "10.0.0.1", base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	rows, total, err := repo.Query(ctx, models.AttemptFilter{}, models.Page{Limit: 2, Offset: 1})

	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt))
	assert.WithinDuration(t, base.Add(3*time.Minute), rows[0].CreatedAt, time.Millisecond)
}

func TestSQLiteLoginAttemptRepository_SuccessAndFailedOnly(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.Insert(ctx, failedAttempt("mix@example.com", "10.0.0.1", now))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, &models.LoginAttempt{
		UserID:    strPtr("user-1"),
		Email:     strPtr("mix@example.com"),
		IPAddress: "10.0.0.1",
		Success:   true,
		CreatedAt: now,
	})
	require.NoError(t, err)

	rows, _, err := repo.Query(ctx, models.AttemptFilter{SuccessOnly: true}, models.Page{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Success)

	rows, _, err = repo.Query(ctx, models.AttemptFilter{FailedOnly: true}, models.Page{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Success)

	_, _, err = repo.Query(ctx, models.AttemptFilter{SuccessOnly: true, FailedOnly: true}, models.Page{})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestSQLiteLoginAttemptRepository_DeleteOlderThan(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.Insert(ctx, failedAttempt("old@example.com", "10.0.0.1", now.Add(-100*24*time.Hour)))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, failedAttempt("new@example.com", "10.0.0.1", now.Add(-time.Hour)))
	require.NoError(t, err)

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	rows, _, err := repo.Query(ctx, models.AttemptFilter{}, models.Page{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new@example.com", *rows[0].Email)
}

func TestSQLiteLoginAttemptRepository_Stats(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.Insert(ctx, failedAttempt("a@example.com", "10.0.0.1", now.Add(-time.Minute)))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, failedAttempt("a@example.com", "10.0.0.2", now.Add(-time.Minute)))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, &models.LoginAttempt{
		UserID:    strPtr("user-1"),
		Email:     strPtr("a@example.com"),
		IPAddress: "10.0.0.1",
		Success:   true,
		CreatedAt: now.Add(-time.Minute),
	})
	require.NoError(t, err)
	_, err = repo.Insert(ctx, failedAttempt("a@example.com", "10.0.0.9", now.Add(-48*time.Hour)))
	require.NoError(t, err)

	stats, err := repo.Stats(ctx, now.Add(-24*time.Hour))

	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(1), stats.Successful)
	assert.Equal(t, int64(2), stats.UniqueIPs)
}
