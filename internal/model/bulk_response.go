package model

import (
	"time"

	"github.com/google/uuid"
)

type BulkResponseStatus string

// Bulk response status only advances: draft -> active -> sent.
const (
	BulkResponseDraft  BulkResponseStatus = "draft"
	BulkResponseActive BulkResponseStatus = "active"
	BulkResponseSent   BulkResponseStatus = "sent"
)

// BulkResponse is a drafted, campaign-scoped reply template intended for
// fan-out to every constituent in the campaign.
type BulkResponse struct {
	ID              uuid.UUID          `db:"id" json:"id"`
	CampaignID      uuid.UUID          `db:"campaign_id" json:"campaign_id"`
	SubjectTemplate string             `db:"subject_template" json:"subject_template"`
	BodyTemplate    string             `db:"body_template" json:"body_template"`
	Status          BulkResponseStatus `db:"status" json:"status"`
	CreatedBy       uuid.UUID          `db:"created_by" json:"created_by"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time         `db:"updated_at" json:"updated_at,omitempty"`
}

type BulkResponseLogStatus string

const (
	LogPending BulkResponseLogStatus = "pending"
	LogSent    BulkResponseLogStatus = "sent"
	LogFailed  BulkResponseLogStatus = "failed"
)

// BulkResponseLog is the per-recipient send ledger: at most one row per
// (bulk_response_id, constituent_id) pair, enforced by a unique constraint.
type BulkResponseLog struct {
	ID             uuid.UUID             `db:"id" json:"id"`
	BulkResponseID uuid.UUID             `db:"bulk_response_id" json:"bulk_response_id"`
	ConstituentID  uuid.UUID             `db:"constituent_id" json:"constituent_id"`
	Status         BulkResponseLogStatus `db:"status" json:"status"`
	OutboxEntryID  *uuid.UUID            `db:"outbox_entry_id" json:"outbox_entry_id,omitempty"`
	MessageID      string                `db:"message_id" json:"message_id,omitempty"`
	ErrorLog       string                `db:"error_log" json:"error_log,omitempty"`
	SentAt         *time.Time            `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
}
