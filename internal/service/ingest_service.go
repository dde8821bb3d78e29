// internal/service/ingest_service.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/fingerprint"
	"github.com/civicdesk/correspondence-backend/internal/metrics"
	"github.com/civicdesk/correspondence-backend/internal/model"
	"github.com/civicdesk/correspondence-backend/internal/repository"
)

// IngestService runs the inbound edge of the pipeline: advisory sender
// resolution, campaign matching, and queueing for triage.
type IngestService struct {
	Messages repository.MessageRepositoryInterface
	Matcher  *CampaignMatcher
	Resolver *ResolverService
	Logger   *zap.Logger
}

type IngestRequest struct {
	Channel     string `json:"channel"`
	Subject     string `json:"subject"`
	BodyPreview string `json:"body_preview"`
	StoragePath string `json:"storage_path"`
	SenderEmail string `json:"sender_email"`

	// IsCampaignCandidate marks the message as part of a coordinated
	// campaign (set by the mail connector's duplicate heuristic). A campaign
	// is created for its fingerprint if none exists yet; unflagged messages
	// still join an existing campaign when their fingerprint matches one.
	IsCampaignCandidate bool `json:"is_campaign_candidate"`
}

// Ingest creates the message in pending triage state, resolves the advisory
// sender bucket, and attaches the message to its fingerprint campaign.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*model.Message, error) {
	if req.SenderEmail == "" {
		return nil, apperrors.NewValidation("message", "", "sender_email is required")
	}
	channel := req.Channel
	if channel == "" {
		channel = "email"
	}

	resolution, err := s.Resolver.Resolve(ctx, req.SenderEmail, req.BodyPreview)
	if err != nil {
		return nil, err
	}

	// The fingerprint is persisted on every message, attached or not, so a
	// campaign created later can sweep in earlier copies of the same letter.
	fp := fingerprint.Fingerprint(req.Subject, req.BodyPreview)

	msg := &model.Message{
		Direction:       "inbound",
		Channel:         channel,
		Subject:         req.Subject,
		BodyPreview:     req.BodyPreview,
		StoragePath:     req.StoragePath,
		FingerprintHash: &fp,
		SenderEmail:     req.SenderEmail,
		ConstituentID:   resolution.ConstituentID,
		TriageStatus:    model.TriagePending,
		Bucket:          resolution.Bucket,
		DetectedAddress: resolution.DetectedAddress,
		ReceivedAt:      time.Now().UTC(),
	}
	if err := s.Messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	campaignID, attached, err := s.Matcher.Attach(ctx, msg, req.IsCampaignCandidate)
	if err != nil {
		return nil, err
	}

	metrics.MessagesIngested.Inc()
	fields := []zap.Field{
		zap.String("message_id", msg.ID.String()),
		zap.String("bucket", string(resolution.Bucket)),
	}
	if attached {
		fields = append(fields, zap.String("campaign_id", campaignID.String()))
	}
	s.Logger.Info("message ingested", fields...)
	return msg, nil
}
