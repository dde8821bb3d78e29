package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Upsert(ctx context.Context, fingerprint, name, bodyPreview string) (uuid.UUID, bool, error)
	IncrementIfExists(ctx context.Context, fingerprint string) (uuid.UUID, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error)
	BucketCounts(ctx context.Context, id uuid.UUID) (*model.CampaignBucketCounts, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus) error
	ReconcileMessageCount(ctx context.Context, id uuid.UUID) (int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

// Upsert is the atomic create-or-increment step of campaign matching. A new
// fingerprint inserts a campaign with message_count=1; an existing one
// increments message_count in the same statement, so concurrent arrivals with
// the same fingerprint can never create two campaigns or lose an increment.
// The second return value reports whether the campaign was newly created.
func (r *CampaignRepository) Upsert(ctx context.Context, fingerprint, name, bodyPreview string) (uuid.UUID, bool, error) {
	var (
		id      uuid.UUID
		created bool
	)
	err := r.DB.QueryRowContext(ctx, `
        INSERT INTO campaigns (id, fingerprint_hash, name, body_preview, message_count, status, first_seen_at)
        VALUES ($1, $2, $3, $4, 1, 'active', NOW())
        ON CONFLICT (fingerprint_hash) DO UPDATE
            SET message_count = campaigns.message_count + 1
        RETURNING id, (xmax = 0) AS inserted
    `, uuid.New(), fingerprint, name, bodyPreview).Scan(&id, &created)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("upsert campaign: %w", err)
	}
	return id, created, nil
}

// IncrementIfExists atomically increments message_count for the campaign
// carrying this fingerprint, if one exists. Returns false when no campaign
// matches; it never creates one. The increment-or-nothing form keeps the
// existing-campaign attach path race-free without an upsert.
func (r *CampaignRepository) IncrementIfExists(ctx context.Context, fingerprint string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.DB.QueryRowContext(ctx, `
        UPDATE campaigns
        SET message_count = message_count + 1
        WHERE fingerprint_hash = $1
        RETURNING id
    `, fingerprint).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("increment campaign: %w", err)
	}
	return id, true, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	var c model.Campaign
	err := r.DB.QueryRowContext(ctx, `
        SELECT id, fingerprint_hash, name, COALESCE(body_preview, ''), message_count, status, first_seen_at
        FROM campaigns WHERE id = $1
    `, id).Scan(&c.ID, &c.FingerprintHash, &c.Name, &c.BodyPreview, &c.MessageCount, &c.Status, &c.FirstSeenAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("campaign", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	countQ := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	countArgs := []interface{}{}
	if status != "" {
		countQ += ` AND status = $1`
		countArgs = append(countArgs, status)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `
        SELECT id, fingerprint_hash, name, COALESCE(body_preview, ''), message_count, status, first_seen_at
        FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1
	if status != "" {
		q += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, status)
		argPos++
	}
	q += fmt.Sprintf(" ORDER BY message_count DESC, first_seen_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.FingerprintHash, &c.Name, &c.BodyPreview, &c.MessageCount, &c.Status, &c.FirstSeenAt); err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

// BucketCounts breaks down a campaign's messages by sender-resolution bucket.
func (r *CampaignRepository) BucketCounts(ctx context.Context, id uuid.UUID) (*model.CampaignBucketCounts, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT resolution_bucket, COUNT(*)
        FROM messages
        WHERE campaign_id = $1
        GROUP BY resolution_bucket
    `, id)
	if err != nil {
		return nil, fmt.Errorf("bucket counts: %w", err)
	}
	defer rows.Close()

	counts := &model.CampaignBucketCounts{}
	for rows.Next() {
		var bucket string
		var n int
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, fmt.Errorf("scan bucket count: %w", err)
		}
		switch model.Bucket(bucket) {
		case model.BucketKnown:
			counts.Known = n
		case model.BucketHasAddress:
			counts.HasAddress = n
		case model.BucketNoAddress:
			counts.NoAddress = n
		}
	}
	return counts, rows.Err()
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE campaigns SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("campaign", id.String())
	}
	return nil
}

// ReconcileMessageCount resets message_count to the live count of messages
// carrying this campaign id. The counter is eventually consistent with the
// message table; this is the read-side reconciliation path.
func (r *CampaignRepository) ReconcileMessageCount(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
        UPDATE campaigns
        SET message_count = (SELECT COUNT(*) FROM messages WHERE campaign_id = $1)
        WHERE id = $1
        RETURNING message_count
    `, id).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, apperrors.NewNotFound("campaign", id.String())
	}
	if err != nil {
		return 0, fmt.Errorf("reconcile message count: %w", err)
	}
	return n, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
