package model

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignActive CampaignStatus = "active"
	CampaignClosed CampaignStatus = "closed"
)

// Campaign is a cluster of messages sharing a content fingerprint.
// MessageCount is maintained by the matcher's atomic upsert and retroactive
// sweep, and reconciled against the message table on the detail read.
type Campaign struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	FingerprintHash *string        `db:"fingerprint_hash" json:"fingerprint_hash,omitempty"`
	Name            string         `db:"name" json:"name"`
	BodyPreview     string         `db:"body_preview" json:"body_preview,omitempty"`
	MessageCount    int            `db:"message_count" json:"message_count"`
	Status          CampaignStatus `db:"status" json:"status"`
	FirstSeenAt     time.Time      `db:"first_seen_at" json:"first_seen_at"`
}

// CampaignBucketCounts is the per-bucket breakdown of a campaign's senders,
// used to prioritize the triage queue.
type CampaignBucketCounts struct {
	Known      int `json:"known"`
	HasAddress int `json:"has_address"`
	NoAddress  int `json:"no_address"`
}
