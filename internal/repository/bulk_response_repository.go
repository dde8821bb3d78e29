package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/correspondence-backend/internal/model"
)

type BulkResponseRepositoryInterface interface {
	Create(ctx context.Context, b *model.BulkResponse) error
	FinalizeSent(ctx context.Context) (int, error)
	ListLogs(ctx context.Context, bulkResponseID uuid.UUID) ([]*model.BulkResponseLog, error)
}

type BulkResponseRepository struct {
	DB *sql.DB
}

func (r *BulkResponseRepository) Create(ctx context.Context, b *model.BulkResponse) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = model.BulkResponseDraft
	}
	b.CreatedAt = time.Now().UTC()

	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO bulk_responses (id, campaign_id, subject_template, body_template, status, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, b.ID, b.CampaignID, b.SubjectTemplate, b.BodyTemplate, b.Status, b.CreatedBy, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("create bulk response: %w", err)
	}
	return nil
}

// FinalizeSent moves active bulk responses whose every planned send has
// reached a terminal outbox state to sent. The status only moves forward:
// draft responses are untouched and sent ones never revert.
func (r *BulkResponseRepository) FinalizeSent(ctx context.Context) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE bulk_responses b
        SET status = 'sent', updated_at = NOW()
        WHERE b.status = 'active'
          AND EXISTS (
              SELECT 1 FROM bulk_response_logs l WHERE l.bulk_response_id = b.id
          )
          AND NOT EXISTS (
              SELECT 1
              FROM bulk_response_logs l
              JOIN outbox_entries o ON o.id = l.outbox_entry_id
              WHERE l.bulk_response_id = b.id
                AND o.status NOT IN ('sent', 'dead')
          )
    `)
	if err != nil {
		return 0, fmt.Errorf("finalize bulk responses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("finalize bulk responses: %w", err)
	}
	return int(n), nil
}

func (r *BulkResponseRepository) ListLogs(ctx context.Context, bulkResponseID uuid.UUID) ([]*model.BulkResponseLog, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, bulk_response_id, constituent_id, status, outbox_entry_id,
               COALESCE(message_id, ''), COALESCE(error_log, ''), sent_at, created_at
        FROM bulk_response_logs
        WHERE bulk_response_id = $1
        ORDER BY created_at ASC
    `, bulkResponseID)
	if err != nil {
		return nil, fmt.Errorf("list bulk response logs: %w", err)
	}
	defer rows.Close()

	logs := []*model.BulkResponseLog{}
	for rows.Next() {
		l := &model.BulkResponseLog{}
		if err := rows.Scan(&l.ID, &l.BulkResponseID, &l.ConstituentID, &l.Status, &l.OutboxEntryID,
			&l.MessageID, &l.ErrorLog, &l.SentAt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bulk response log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

var _ BulkResponseRepositoryInterface = (*BulkResponseRepository)(nil)
