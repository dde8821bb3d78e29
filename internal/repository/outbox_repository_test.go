package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/repository"
)

func TestMarkSentMirrorsIntoLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.OutboxRepository{DB: db}
	entryID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_entries")).
		WithArgs(entryID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bulk_response_logs")).
		WithArgs("<abc123@example.parliament.uk>", entryID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repo.MarkSent(context.Background(), entryID, "<abc123@example.parliament.uk>")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSentRequiresProcessingState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.OutboxRepository{DB: db}
	entryID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_entries")).
		WithArgs(entryID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = repo.MarkSent(context.Background(), entryID, "msg-id")

	assert.True(t, apperrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedMirrorsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.OutboxRepository{DB: db}
	entryID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_entries")).
		WithArgs("smtp timeout", entryID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bulk_response_logs")).
		WithArgs("smtp timeout", entryID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repo.MarkFailed(context.Background(), entryID, "smtp timeout")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetrySweepSplitsRequeuedAndDead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.OutboxRepository{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE outbox_entries")).
		WithArgs(120).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).
			AddRow("pending").
			AddRow("pending").
			AddRow("dead"))

	requeued, dead, err := repo.RetrySweep(context.Background(), 2*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, 2, requeued)
	assert.Equal(t, 1, dead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimBatchScansEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := &repository.OutboxRepository{DB: db}
	entryID := uuid.New()
	now := time.Now()

	cols := []string{
		"id", "recipient_email", "subject", "body_html", "campaign_id", "case_id",
		"bulk_response_log_id", "status", "last_error", "attempt_count", "max_attempts",
		"next_attempt_at", "locked_at", "worker_id", "processed_at", "created_at", "updated_at",
	}
	mock.ExpectQuery(regexp.QuoteMeta("WITH claimed AS")).
		WithArgs("dispatcher-a", 25).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(entryID, "amara@example.com", "Re: save our library", "<p>Dear Amara,</p>",
				nil, nil, nil, "processing", "", 0, 3, nil, now, "dispatcher-a", nil, now, now))

	entries, err := repo.ClaimBatch(context.Background(), "dispatcher-a", 25)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entryID, entries[0].ID)
	assert.Equal(t, "amara@example.com", entries[0].RecipientEmail)
	assert.Equal(t, "dispatcher-a", entries[0].WorkerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
