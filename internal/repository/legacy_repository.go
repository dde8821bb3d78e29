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

// LegacyEmailRepositoryInterface reads and transitions the pre-migration
// inbound_emails table. Same transitions as the message table, different
// record shape.
type LegacyEmailRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.LegacyInboundEmail, error)
	Confirm(ctx context.Context, id int64, caseID *uuid.UUID, by uuid.UUID, at time.Time) error
	Dismiss(ctx context.Context, id int64, at time.Time) error
}

type LegacyEmailRepository struct {
	DB *sql.DB
}

func (r *LegacyEmailRepository) GetByID(ctx context.Context, id int64) (*model.LegacyInboundEmail, error) {
	var e model.LegacyInboundEmail
	err := r.DB.QueryRowContext(ctx, `
        SELECT id, from_email, subject, status, case_id, campaign_id,
               is_campaign_email, is_policy_email, received_at, confirmed_at, confirmed_by
        FROM inbound_emails WHERE id = $1
    `, id).Scan(&e.ID, &e.FromEmail, &e.Subject, &e.Status, &e.CaseID, &e.CampaignID,
		&e.IsCampaignEmail, &e.IsPolicyEmail, &e.ReceivedAt, &e.ConfirmedAt, &e.ConfirmedBy)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("inbound_email", fmt.Sprint(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get legacy email: %w", err)
	}
	return &e, nil
}

func (r *LegacyEmailRepository) Confirm(ctx context.Context, id int64, caseID *uuid.UUID, by uuid.UUID, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE inbound_emails
        SET status = 'confirmed', case_id = COALESCE($1, case_id), confirmed_at = $2, confirmed_by = $3
        WHERE id = $4 AND status IN ('pending', 'triaged')
    `, caseID, at, by, id)
	if err != nil {
		return fmt.Errorf("confirm legacy email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewConflict("inbound_email", "not in a confirmable state")
	}
	return nil
}

func (r *LegacyEmailRepository) Dismiss(ctx context.Context, id int64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE inbound_emails
        SET status = 'dismissed', confirmed_at = $1
        WHERE id = $2 AND status IN ('pending', 'triaged')
    `, at, id)
	if err != nil {
		return fmt.Errorf("dismiss legacy email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewConflict("inbound_email", "not in a dismissable state")
	}
	return nil
}

var _ LegacyEmailRepositoryInterface = (*LegacyEmailRepository)(nil)
