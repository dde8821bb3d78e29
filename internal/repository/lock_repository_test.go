package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/repository"
)

func TestLockAcquire(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.LockRepository{DB: db}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE automation_lock")).
		WithArgs("dispatcher-a", 300).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Acquire(context.Background(), "dispatcher-a", 5*time.Minute)

	require.NoError(t, err)
	assert.True(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockAcquireContended(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.LockRepository{DB: db}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE automation_lock")).
		WithArgs("dispatcher-b", 300).
		WillReturnResult(sqlmock.NewResult(0, 0))

	got, err := repo.Acquire(context.Background(), "dispatcher-b", 5*time.Minute)

	require.NoError(t, err)
	assert.False(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockReleaseNotHeld(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.LockRepository{DB: db}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE automation_lock")).
		WithArgs("dispatcher-a").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Release(context.Background(), "dispatcher-a")

	assert.True(t, apperrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockExtendLeaseLost(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.LockRepository{DB: db}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE automation_lock")).
		WithArgs("dispatcher-a").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Extend(context.Background(), "dispatcher-a")

	assert.True(t, apperrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
