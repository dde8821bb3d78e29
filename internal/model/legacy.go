package model

import (
	"time"

	"github.com/google/uuid"
)

// LegacyInboundEmail is the pre-migration message shape: serial integer id,
// flat columns, no metadata payload. The legacy triage endpoints adapt these
// records onto the same state machine the Message shape uses.
type LegacyInboundEmail struct {
	ID              int64        `db:"id" json:"id"`
	FromEmail       string       `db:"from_email" json:"from_email"`
	Subject         string       `db:"subject" json:"subject"`
	Status          TriageStatus `db:"status" json:"status"`
	CaseID          *uuid.UUID   `db:"case_id" json:"case_id,omitempty"`
	CampaignID      *uuid.UUID   `db:"campaign_id" json:"campaign_id,omitempty"`
	IsCampaignEmail bool         `db:"is_campaign_email" json:"is_campaign_email"`
	IsPolicyEmail   bool         `db:"is_policy_email" json:"is_policy_email"`
	ReceivedAt      time.Time    `db:"received_at" json:"received_at"`
	ConfirmedAt     *time.Time   `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ConfirmedBy     *uuid.UUID   `db:"confirmed_by" json:"confirmed_by,omitempty"`
}
