package repository_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/correspondence-backend/internal/repository"
)

func TestFinalizeSentCountsAdvancedResponses(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.BulkResponseRepository{DB: db}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bulk_responses")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.FinalizeSent(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeSentNothingToAdvance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.BulkResponseRepository{DB: db}
	mock.ExpectExec(regexp.QuoteMeta("status = 'active'")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.FinalizeSent(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
