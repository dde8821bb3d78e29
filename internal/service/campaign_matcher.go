// internal/service/campaign_matcher.go
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/civicdesk/correspondence-backend/internal/fingerprint"
	"github.com/civicdesk/correspondence-backend/internal/metrics"
	"github.com/civicdesk/correspondence-backend/internal/model"
	"github.com/civicdesk/correspondence-backend/internal/repository"
)

// CampaignMatcher maps a message's fingerprint to a campaign. A message
// always joins an existing campaign carrying its fingerprint; a new campaign
// is created lazily only when the message is flagged as a campaign candidate
// (ingest heuristic or AI triage suggestion). Creation sweeps in every
// earlier copy of the letter by persisted fingerprint, so identical messages
// land on one campaign with a full count no matter which copy triggered it.
type CampaignMatcher struct {
	Messages  repository.MessageRepositoryInterface
	Campaigns repository.CampaignRepositoryInterface
}

// Attach links the message to its fingerprint campaign and persists the
// linkage (campaign_id, is_campaign_email and fingerprint_hash move
// together). Returns the campaign id and whether an attachment happened.
// Concurrent arrivals with the same fingerprint land on a single campaign:
// the create path, the increment path and the retroactive sweep are each
// single atomic statements, and a create race loser falls through to the
// conflict arm of the upsert.
func (m *CampaignMatcher) Attach(ctx context.Context, msg *model.Message, createIfMissing bool) (uuid.UUID, bool, error) {
	if msg.CampaignID != nil {
		return *msg.CampaignID, false, nil
	}

	fp := fingerprint.Fingerprint(msg.Subject, msg.BodyPreview)
	if msg.FingerprintHash != nil {
		fp = *msg.FingerprintHash
	}

	campaignID, found, err := m.Campaigns.IncrementIfExists(ctx, fp)
	if err != nil {
		return uuid.Nil, false, err
	}
	if found {
		return m.attachOne(ctx, msg, campaignID, fp)
	}

	if !createIfMissing {
		return uuid.Nil, false, nil
	}

	campaignID, created, err := m.Campaigns.Upsert(ctx, fp, fingerprint.NormalizeSubject(msg.Subject), msg.BodyPreview)
	if err != nil {
		return uuid.Nil, false, err
	}
	if !created {
		// Lost the create race; the upsert's conflict arm already counted
		// this message.
		return m.attachOne(ctx, msg, campaignID, fp)
	}

	// Fresh campaign: sweep in every copy that arrived before it existed,
	// this message included, by the fingerprint persisted at ingest.
	n, err := m.Messages.AttachCampaignByFingerprint(ctx, campaignID, fp)
	if err != nil {
		return uuid.Nil, false, err
	}
	if msg.FingerprintHash == nil {
		// Row predates fingerprint persistence, so the sweep missed it.
		// The count drifts by one here until the next reconcile-on-read.
		if err := m.Messages.AttachCampaign(ctx, msg.ID, campaignID, fp); err != nil {
			return uuid.Nil, false, err
		}
		n++
	}
	msg.CampaignID = &campaignID
	msg.IsCampaignEmail = true
	msg.FingerprintHash = &fp

	metrics.CampaignsMatched.Add(float64(n))
	return campaignID, true, nil
}

func (m *CampaignMatcher) attachOne(ctx context.Context, msg *model.Message, campaignID uuid.UUID, fp string) (uuid.UUID, bool, error) {
	if err := m.Messages.AttachCampaign(ctx, msg.ID, campaignID, fp); err != nil {
		return uuid.Nil, false, err
	}
	msg.CampaignID = &campaignID
	msg.IsCampaignEmail = true
	msg.FingerprintHash = &fp

	metrics.CampaignsMatched.Inc()
	return campaignID, true, nil
}
