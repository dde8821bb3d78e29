package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/model"
)

type OutboxRepositoryInterface interface {
	ClaimBatch(ctx context.Context, workerID string, limit int) ([]*model.OutboxEntry, error)
	MarkSent(ctx context.Context, id uuid.UUID, messageID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, sendErr string) error
	RetrySweep(ctx context.Context, backoffBase time.Duration) (requeued, dead int, err error)
	RequeueStaleProcessing(ctx context.Context, staleAfter time.Duration) (int, error)
	CountByStatus(ctx context.Context, campaignID uuid.UUID) (map[string]int, error)
}

type OutboxRepository struct {
	DB *sql.DB
}

const outboxColumns = `
    id, recipient_email, subject, body_html, campaign_id, case_id, bulk_response_log_id,
    status, COALESCE(last_error, ''), attempt_count, max_attempts, next_attempt_at,
    locked_at, COALESCE(worker_id, ''), processed_at, created_at, updated_at`

func scanOutboxEntry(row interface{ Scan(...interface{}) error }) (*model.OutboxEntry, error) {
	var e model.OutboxEntry
	err := row.Scan(
		&e.ID, &e.RecipientEmail, &e.Subject, &e.BodyHTML, &e.CampaignID, &e.CaseID, &e.BulkResponseLogID,
		&e.Status, &e.LastError, &e.AttemptCount, &e.MaxAttempts, &e.NextAttemptAt,
		&e.LockedAt, &e.WorkerID, &e.ProcessedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ClaimBatch claims up to limit due pending entries in one atomic statement.
// SKIP LOCKED keeps two dispatcher instances from blocking on or
// double-claiming the same rows.
func (r *OutboxRepository) ClaimBatch(ctx context.Context, workerID string, limit int) ([]*model.OutboxEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
        WITH claimed AS (
            UPDATE outbox_entries
            SET status = 'processing', worker_id = $1, locked_at = NOW(), updated_at = NOW()
            WHERE id IN (
                SELECT id FROM outbox_entries
                WHERE status = 'pending'
                  AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
                ORDER BY created_at ASC
                LIMIT $2
                FOR UPDATE SKIP LOCKED
            )
            RETURNING `+outboxColumns+`
        )
        SELECT `+outboxColumns+` FROM claimed
    `, workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	defer rows.Close()

	entries := []*model.OutboxEntry{}
	for rows.Next() {
		e, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkSent writes the terminal sent state and mirrors it into the linked
// bulk response log row in the same transaction, so the per-recipient ledger
// and the queue never diverge.
func (r *OutboxRepository) MarkSent(ctx context.Context, id uuid.UUID, messageID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark sent: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE outbox_entries
        SET status = 'sent', last_error = '', processed_at = NOW(), updated_at = NOW()
        WHERE id = $1 AND status = 'processing'
    `, id)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewConflict("outbox_entry", "not in processing state")
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE bulk_response_logs
        SET status = 'sent', message_id = $1, error_log = '', sent_at = NOW()
        WHERE outbox_entry_id = $2
    `, messageID, id)
	if err != nil {
		return fmt.Errorf("mirror sent into log: %w", err)
	}

	return tx.Commit()
}

// MarkFailed records a failed attempt and mirrors the error into the linked
// bulk response log row.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, sendErr string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark failed: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE outbox_entries
        SET status = 'failed', last_error = $1, attempt_count = attempt_count + 1,
            processed_at = NOW(), updated_at = NOW()
        WHERE id = $2 AND status = 'processing'
    `, sendErr, id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewConflict("outbox_entry", "not in processing state")
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE bulk_response_logs
        SET status = 'failed', error_log = $1
        WHERE outbox_entry_id = $2
    `, sendErr, id)
	if err != nil {
		return fmt.Errorf("mirror failure into log: %w", err)
	}

	return tx.Commit()
}

// RetrySweep resets failed entries with attempts remaining back to pending
// with an exponential next_attempt_at, and parks exhausted ones as dead.
func (r *OutboxRepository) RetrySweep(ctx context.Context, backoffBase time.Duration) (int, int, error) {
	rows, err := r.DB.QueryContext(ctx, `
        UPDATE outbox_entries
        SET status = CASE WHEN attempt_count >= max_attempts THEN 'dead' ELSE 'pending' END,
            next_attempt_at = CASE
                WHEN attempt_count >= max_attempts THEN NULL
                ELSE NOW() + ($1 * interval '1 second') * POWER(2, GREATEST(attempt_count - 1, 0))
            END,
            worker_id = '', locked_at = NULL, updated_at = NOW()
        WHERE status = 'failed'
        RETURNING status
    `, int(backoffBase.Seconds()))
	if err != nil {
		return 0, 0, fmt.Errorf("retry sweep: %w", err)
	}
	defer rows.Close()

	var requeued, dead int
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return 0, 0, fmt.Errorf("scan sweep status: %w", err)
		}
		if status == string(model.OutboxDead) {
			dead++
		} else {
			requeued++
		}
	}
	return requeued, dead, rows.Err()
}

// RequeueStaleProcessing returns entries stuck in processing past the claim
// TTL to pending. Crash recovery: a dispatcher that died mid-batch must not
// strand its claims forever.
func (r *OutboxRepository) RequeueStaleProcessing(ctx context.Context, staleAfter time.Duration) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE outbox_entries
        SET status = 'pending', worker_id = '', locked_at = NULL, updated_at = NOW()
        WHERE status = 'processing' AND locked_at < NOW() - ($1 * interval '1 second')
    `, int(staleAfter.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("requeue stale processing: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *OutboxRepository) CountByStatus(ctx context.Context, campaignID uuid.UUID) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT status, COUNT(*) FROM outbox_entries WHERE campaign_id = $1 GROUP BY status
    `, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count outbox by status: %w", err)
	}
	defer rows.Close()

	stats := map[string]int{"pending": 0, "processing": 0, "sent": 0, "failed": 0, "dead": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan outbox count: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ OutboxRepositoryInterface = (*OutboxRepository)(nil)
