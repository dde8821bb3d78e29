// internal/service/dispatch_service.go
package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/metrics"
	"github.com/civicdesk/correspondence-backend/internal/model"
	"github.com/civicdesk/correspondence-backend/internal/queue"
)

// DispatchService plans bulk-response fan-out: it resolves the authoritative
// recipient set for a campaign and materializes outbox entries plus
// per-recipient log rows, idempotently, inside one transaction.
type DispatchService struct {
	DB          *sql.DB
	Queue       queue.Publisher
	Logger      *zap.Logger
	OfficeName  string
	MaxAttempts int
}

type planRecipient struct {
	constituent model.Constituent
	email       string
}

// PlanDispatch queues one outbox entry per unlogged campaign constituent.
//
// The whole plan runs in a single transaction with the bulk response row
// locked FOR UPDATE, so concurrent planning calls for the same bulk response
// serialize while different bulk responses plan in parallel. Recipients come
// from the contacts table (the primary email, not the raw sender address),
// deduplicated by constituent id, and filtered against the existing log rows,
// so re-invocation after a partial failure only queues the remainder.
// A bulk response already marked sent is an idempotent no-op returning 0.
func (s *DispatchService) PlanDispatch(ctx context.Context, bulkResponseID uuid.UUID) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin dispatch plan: %w", err)
	}
	defer tx.Rollback()

	var (
		campaignID      uuid.UUID
		subjectTemplate string
		bodyTemplate    string
		status          model.BulkResponseStatus
	)
	err = tx.QueryRowContext(ctx, `
        SELECT campaign_id, subject_template, body_template, status
        FROM bulk_responses WHERE id = $1
        FOR UPDATE
    `, bulkResponseID).Scan(&campaignID, &subjectTemplate, &bodyTemplate, &status)
	if err == sql.ErrNoRows {
		return 0, apperrors.NewNotFound("bulk_response", bulkResponseID.String())
	}
	if err != nil {
		return 0, fmt.Errorf("load bulk response: %w", err)
	}

	if status == model.BulkResponseSent {
		return 0, nil
	}

	var campaignSubject string
	err = tx.QueryRowContext(ctx, `SELECT name FROM campaigns WHERE id = $1`, campaignID).Scan(&campaignSubject)
	if err != nil {
		return 0, fmt.Errorf("load campaign: %w", err)
	}

	recipients, err := s.resolveRecipients(ctx, tx, campaignID, bulkResponseID)
	if err != nil {
		return 0, err
	}

	queuedIDs := make([]uuid.UUID, 0, len(recipients))
	for _, r := range recipients {
		data := PersonalizationData(&r.constituent, s.OfficeName, campaignSubject)
		subject := RenderTemplate(subjectTemplate, data)
		body := RenderTemplate(bodyTemplate, data)

		entryID := uuid.New()
		logID := uuid.New()

		_, err = tx.ExecContext(ctx, `
            INSERT INTO outbox_entries
                (id, recipient_email, subject, body_html, campaign_id, bulk_response_log_id,
                 status, attempt_count, max_attempts, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, 'pending', 0, $7, NOW(), NOW())
        `, entryID, r.email, subject, body, campaignID, logID, s.MaxAttempts)
		if err != nil {
			return 0, fmt.Errorf("insert outbox entry for constituent %s: %w", r.constituent.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
            INSERT INTO bulk_response_logs
                (id, bulk_response_id, constituent_id, status, outbox_entry_id, created_at)
            VALUES ($1, $2, $3, 'pending', $4, NOW())
        `, logID, bulkResponseID, r.constituent.ID, entryID)
		if err != nil {
			return 0, fmt.Errorf("insert log row for constituent %s: %w", r.constituent.ID, err)
		}

		queuedIDs = append(queuedIDs, entryID)
	}

	if status == model.BulkResponseDraft {
		if _, err := tx.ExecContext(ctx, `
            UPDATE bulk_responses SET status = 'active', updated_at = NOW() WHERE id = $1
        `, bulkResponseID); err != nil {
			return 0, fmt.Errorf("activate bulk response: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit dispatch plan: %w", err)
	}

	// Entries are transport-owned once committed; the queue publish is only
	// a wake-up, so a publish failure is logged and left to the worker's
	// pending sweep.
	for _, id := range queuedIDs {
		if err := s.Queue.PublishOutboxEntry(id); err != nil {
			s.Logger.Warn("outbox wake-up publish failed",
				zap.String("outbox_entry_id", id.String()),
				zap.Error(err),
			)
		}
	}

	metrics.OutboxQueued.Add(float64(len(queuedIDs)))
	s.Logger.Info("dispatch planned",
		zap.String("bulk_response_id", bulkResponseID.String()),
		zap.Int("queued", len(queuedIDs)),
	)
	return len(queuedIDs), nil
}

// resolveRecipients returns one row per constituent linked to the campaign
// through at least one message, carrying their primary email contact, minus
// constituents already present in the bulk response log.
func (s *DispatchService) resolveRecipients(ctx context.Context, tx *sql.Tx, campaignID, bulkResponseID uuid.UUID) ([]planRecipient, error) {
	rows, err := tx.QueryContext(ctx, `
        SELECT DISTINCT ON (c.id) c.id, c.first_name, c.last_name, cc.value
        FROM constituents c
        JOIN constituent_contacts cc
            ON cc.constituent_id = c.id AND cc.contact_type = 'email' AND cc.is_primary
        WHERE EXISTS (
            SELECT 1 FROM messages m
            WHERE m.constituent_id = c.id AND m.campaign_id = $1
        )
        AND NOT EXISTS (
            SELECT 1 FROM bulk_response_logs l
            WHERE l.bulk_response_id = $2 AND l.constituent_id = c.id
        )
        ORDER BY c.id
    `, campaignID, bulkResponseID)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	defer rows.Close()

	recipients := []planRecipient{}
	for rows.Next() {
		var r planRecipient
		if err := rows.Scan(&r.constituent.ID, &r.constituent.FirstName, &r.constituent.LastName, &r.email); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}
