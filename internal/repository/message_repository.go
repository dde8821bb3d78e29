package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/model"
)

type MessageRepositoryInterface interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Message, error)
	AttachCampaign(ctx context.Context, id, campaignID uuid.UUID, fingerprint string) error
	AttachCampaignByFingerprint(ctx context.Context, campaignID uuid.UUID, fingerprint string) (int, error)
	MarkTriaged(ctx context.Context, id uuid.UUID, meta *model.TriageMetadata, at time.Time) error
	Confirm(ctx context.Context, id uuid.UUID, caseID *uuid.UUID, by uuid.UUID, at time.Time) error
	Dismiss(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	ApplyTags(ctx context.Context, id uuid.UUID, tagIDs []uuid.UUID) error
	ListQueue(ctx context.Context, f QueueFilter) ([]*model.Message, int, error)
}

// QueueFilter narrows the triage queue listing.
type QueueFilter struct {
	Status     model.TriageStatus
	CampaignID *uuid.UUID
	Bucket     model.Bucket
	Offset     int
	Limit      int
}

type MessageRepository struct {
	DB *sql.DB
}

const messageColumns = `
    id, direction, channel, subject, COALESCE(body_preview, ''), COALESCE(storage_path, ''),
    fingerprint_hash, sender_email, constituent_id, triage_status, case_id, campaign_id,
    is_campaign_email, is_policy_email, resolution_bucket, COALESCE(detected_address, ''),
    COALESCE(dismissal_reason, ''), triage_metadata, received_at, triaged_at, confirmed_at, confirmed_by`

func scanMessage(row interface{ Scan(...interface{}) error }) (*model.Message, error) {
	var (
		m        model.Message
		metaJSON []byte
	)
	err := row.Scan(
		&m.ID, &m.Direction, &m.Channel, &m.Subject, &m.BodyPreview, &m.StoragePath,
		&m.FingerprintHash, &m.SenderEmail, &m.ConstituentID, &m.TriageStatus, &m.CaseID, &m.CampaignID,
		&m.IsCampaignEmail, &m.IsPolicyEmail, &m.Bucket, &m.DetectedAddress,
		&m.DismissalReason, &metaJSON, &m.ReceivedAt, &m.TriagedAt, &m.ConfirmedAt, &m.ConfirmedBy,
	)
	if err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		meta := &model.TriageMetadata{}
		if err := json.Unmarshal(metaJSON, meta); err != nil {
			return nil, fmt.Errorf("decode triage metadata: %w", err)
		}
		m.TriageMetadata = meta
	}
	return &m, nil
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.TriageStatus == "" {
		m.TriageStatus = model.TriagePending
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now().UTC()
	}

	var metaJSON []byte
	if m.TriageMetadata != nil {
		var err error
		metaJSON, err = json.Marshal(m.TriageMetadata)
		if err != nil {
			return fmt.Errorf("encode triage metadata: %w", err)
		}
	}

	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO messages
            (id, direction, channel, subject, body_preview, storage_path, fingerprint_hash,
             sender_email, constituent_id, triage_status, is_campaign_email, is_policy_email,
             resolution_bucket, detected_address, triage_metadata, received_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `, m.ID, m.Direction, m.Channel, m.Subject, m.BodyPreview, m.StoragePath, m.FingerprintHash,
		m.SenderEmail, m.ConstituentID, m.TriageStatus, m.IsCampaignEmail, m.IsPolicyEmail,
		m.Bucket, m.DetectedAddress, metaJSON, m.ReceivedAt)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("message", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// AttachCampaign records the campaign linkage on the message. campaign_id,
// is_campaign_email and fingerprint_hash move together in one statement so
// the flag can never diverge from the id.
func (r *MessageRepository) AttachCampaign(ctx context.Context, id, campaignID uuid.UUID, fingerprint string) error {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE messages
        SET campaign_id = $1, is_campaign_email = TRUE, fingerprint_hash = $2
        WHERE id = $3
    `, campaignID, fingerprint, id)
	if err != nil {
		return fmt.Errorf("attach campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("message", id.String())
	}
	return nil
}

// AttachCampaignByFingerprint links every still-unattached message carrying
// this fingerprint to the campaign and resets the campaign's message_count to
// match, in one statement. Run when a campaign is first created: copies of
// the letter that arrived before the campaign existed are swept in
// retroactively, so grouping does not depend on arrival order. Both CTE
// sub-statements see the pre-statement snapshot, so for a freshly created
// campaign the linked-count term is zero and the count lands on exactly the
// swept set.
func (r *MessageRepository) AttachCampaignByFingerprint(ctx context.Context, campaignID uuid.UUID, fingerprint string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
        WITH attached AS (
            UPDATE messages
            SET campaign_id = $1, is_campaign_email = TRUE
            WHERE fingerprint_hash = $2 AND campaign_id IS NULL
            RETURNING id
        ),
        counted AS (
            UPDATE campaigns
            SET message_count = (SELECT COUNT(*) FROM messages WHERE campaign_id = $1)
                              + (SELECT COUNT(*) FROM attached)
            WHERE id = $1
        )
        SELECT COUNT(*) FROM attached
    `, campaignID, fingerprint).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("attach campaign by fingerprint: %w", err)
	}
	return n, nil
}

func (r *MessageRepository) MarkTriaged(ctx context.Context, id uuid.UUID, meta *model.TriageMetadata, at time.Time) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode triage metadata: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, `
        UPDATE messages
        SET triage_status = 'triaged', triage_metadata = $1, triaged_at = $2
        WHERE id = $3
    `, metaJSON, at, id)
	if err != nil {
		return fmt.Errorf("mark triaged: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("message", id.String())
	}
	return nil
}

func (r *MessageRepository) Confirm(ctx context.Context, id uuid.UUID, caseID *uuid.UUID, by uuid.UUID, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE messages
        SET triage_status = 'confirmed',
            case_id = COALESCE($1, case_id),
            confirmed_at = $2,
            confirmed_by = $3
        WHERE id = $4 AND triage_status IN ('pending', 'triaged')
    `, caseID, at, by, id)
	if err != nil {
		return fmt.Errorf("confirm message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewConflict("message", "not in a confirmable state")
	}
	return nil
}

func (r *MessageRepository) Dismiss(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE messages
        SET triage_status = 'dismissed', dismissal_reason = $1, triaged_at = COALESCE(triaged_at, $2)
        WHERE id = $3 AND triage_status IN ('pending', 'triaged')
    `, reason, at, id)
	if err != nil {
		return fmt.Errorf("dismiss message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewConflict("message", "not in a dismissable state")
	}
	return nil
}

func (r *MessageRepository) ApplyTags(ctx context.Context, id uuid.UUID, tagIDs []uuid.UUID) error {
	if len(tagIDs) == 0 {
		return nil
	}
	ids := make([]string, len(tagIDs))
	for i, t := range tagIDs {
		ids[i] = t.String()
	}
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO message_tags (message_id, tag_id)
        SELECT $1, unnest($2::uuid[])
        ON CONFLICT DO NOTHING
    `, id, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("apply tags: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListQueue(ctx context.Context, f QueueFilter) ([]*model.Message, int, error) {
	where := ` WHERE direction = 'inbound'`
	args := []interface{}{}
	argPos := 1

	if f.Status != "" {
		where += fmt.Sprintf(" AND triage_status = $%d", argPos)
		args = append(args, f.Status)
		argPos++
	}
	if f.CampaignID != nil {
		where += fmt.Sprintf(" AND campaign_id = $%d", argPos)
		args = append(args, *f.CampaignID)
		argPos++
	}
	if f.Bucket != "" {
		where += fmt.Sprintf(" AND resolution_bucket = $%d", argPos)
		args = append(args, f.Bucket)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count queue: %w", err)
	}

	q := `SELECT ` + messageColumns + ` FROM messages` + where +
		fmt.Sprintf(" ORDER BY received_at ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	msgs := []*model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, total, rows.Err()
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
