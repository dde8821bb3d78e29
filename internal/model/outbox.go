package model

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxSent       OutboxStatus = "sent"
	OutboxFailed     OutboxStatus = "failed"
	OutboxDead       OutboxStatus = "dead"
)

// OutboxEntry is one concrete, rendered, sendable email awaiting transport.
// Once sent it never re-transitions; failed entries re-enter pending via the
// retry sweep until attempts are exhausted, then park as dead.
type OutboxEntry struct {
	ID                uuid.UUID    `db:"id" json:"id"`
	RecipientEmail    string       `db:"recipient_email" json:"recipient_email"`
	Subject           string       `db:"subject" json:"subject"`
	BodyHTML          string       `db:"body_html" json:"body_html"`
	CampaignID        *uuid.UUID   `db:"campaign_id" json:"campaign_id,omitempty"`
	CaseID            *uuid.UUID   `db:"case_id" json:"case_id,omitempty"`
	BulkResponseLogID *uuid.UUID   `db:"bulk_response_log_id" json:"bulk_response_log_id,omitempty"`
	Status            OutboxStatus `db:"status" json:"status"`
	LastError         string       `db:"last_error" json:"last_error,omitempty"`
	AttemptCount      int          `db:"attempt_count" json:"attempt_count"`
	MaxAttempts       int          `db:"max_attempts" json:"max_attempts"`
	NextAttemptAt     *time.Time   `db:"next_attempt_at" json:"next_attempt_at,omitempty"`
	LockedAt          *time.Time   `db:"locked_at" json:"locked_at,omitempty"`
	WorkerID          string       `db:"worker_id" json:"worker_id,omitempty"`
	ProcessedAt       *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
}
