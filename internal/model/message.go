package model

import (
	"time"

	"github.com/google/uuid"
)

// TriageStatus is the lifecycle state of an inbound message.
type TriageStatus string

const (
	TriagePending   TriageStatus = "pending"
	TriageTriaged   TriageStatus = "triaged"
	TriageConfirmed TriageStatus = "confirmed"
	TriageDismissed TriageStatus = "dismissed"
)

// Terminal reports whether the status admits no further transitions.
func (s TriageStatus) Terminal() bool {
	return s == TriageConfirmed || s == TriageDismissed
}

// Bucket is the advisory sender-matching classification used for queue
// prioritization. It never drives writes.
type Bucket string

const (
	BucketKnown      Bucket = "known"
	BucketHasAddress Bucket = "has_address"
	BucketNoAddress  Bucket = "no_address"
)

type Message struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	Direction       string          `db:"direction" json:"direction"` // inbound, outbound
	Channel         string          `db:"channel" json:"channel"`
	Subject         string          `db:"subject" json:"subject"`
	BodyPreview     string          `db:"body_preview" json:"body_preview"`
	StoragePath     string          `db:"storage_path" json:"storage_path,omitempty"`
	FingerprintHash *string         `db:"fingerprint_hash" json:"fingerprint_hash,omitempty"`
	SenderEmail     string          `db:"sender_email" json:"sender_email"`
	ConstituentID   *uuid.UUID      `db:"constituent_id" json:"constituent_id,omitempty"`
	TriageStatus    TriageStatus    `db:"triage_status" json:"triage_status"`
	CaseID          *uuid.UUID      `db:"case_id" json:"case_id,omitempty"`
	CampaignID      *uuid.UUID      `db:"campaign_id" json:"campaign_id,omitempty"`
	IsCampaignEmail bool            `db:"is_campaign_email" json:"is_campaign_email"`
	IsPolicyEmail   bool            `db:"is_policy_email" json:"is_policy_email"`
	Bucket          Bucket          `db:"resolution_bucket" json:"resolution_bucket"`
	DetectedAddress string          `db:"detected_address" json:"detected_address,omitempty"`
	DismissalReason string          `db:"dismissal_reason" json:"dismissal_reason,omitempty"`
	TriageMetadata  *TriageMetadata `db:"triage_metadata" json:"triage_metadata,omitempty"`
	ReceivedAt      time.Time       `db:"received_at" json:"received_at"`
	TriagedAt       *time.Time      `db:"triaged_at" json:"triaged_at,omitempty"`
	ConfirmedAt     *time.Time      `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ConfirmedBy     *uuid.UUID      `db:"confirmed_by" json:"confirmed_by,omitempty"`
}
