// internal/service/triage_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/audit"
	"github.com/civicdesk/correspondence-backend/internal/metrics"
	"github.com/civicdesk/correspondence-backend/internal/model"
	"github.com/civicdesk/correspondence-backend/internal/repository"
)

// TriageService owns the message triage lifecycle:
// pending -> triaged -> confirmed, pending/triaged -> dismissed.
// confirmed and dismissed are terminal; re-triage is an administrative reset
// outside this service.
type TriageService struct {
	Messages repository.MessageRepositoryInterface
	Legacy   repository.LegacyEmailRepositoryInterface
	Matcher  *CampaignMatcher
	Audit    audit.Recorder
	Logger   *zap.Logger
}

// TriageOutcome is one row of the per-item ledger every bulk transition
// returns. Partial success: one message failing its guard never aborts the
// rest of the batch.
type TriageOutcome struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"` // confirmed, dismissed, skipped, failed
	Error     string `json:"error,omitempty"`
}

type ConfirmParams struct {
	ActorID    uuid.UUID   `json:"actor_id"`
	CaseID     *uuid.UUID  `json:"case_id,omitempty"`
	AssigneeID *uuid.UUID  `json:"assignee_id,omitempty"`
	TagIDs     []uuid.UUID `json:"tag_ids,omitempty"`
}

// MarkAsTriaged records an AI pre-classification. Idempotent: re-applying
// overwrites prior metadata. A terminal message is a no-op success so that
// retried classifier callbacks never see spurious failures. A suggestion
// flagging the message as campaign mail attaches it to its fingerprint
// campaign, creating one if needed.
func (s *TriageService) MarkAsTriaged(ctx context.Context, messageID uuid.UUID, meta *model.TriageMetadata) error {
	msg, err := s.Messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.TriageStatus.Terminal() {
		return nil
	}

	if meta != nil && meta.IsCampaign {
		if _, _, err := s.Matcher.Attach(ctx, msg, true); err != nil {
			return err
		}
	}

	return s.Messages.MarkTriaged(ctx, messageID, meta, time.Now().UTC())
}

// ConfirmTriage moves messages to confirmed in bulk. Guard per message:
// exactly one of {case id supplied, existing campaign linkage, policy flag}.
func (s *TriageService) ConfirmTriage(ctx context.Context, messageIDs []uuid.UUID, p ConfirmParams) []TriageOutcome {
	outcomes := make([]TriageOutcome, 0, len(messageIDs))
	for _, id := range messageIDs {
		outcomes = append(outcomes, s.confirmOne(ctx, id, p))
	}
	return outcomes
}

func (s *TriageService) confirmOne(ctx context.Context, id uuid.UUID, p ConfirmParams) TriageOutcome {
	msg, err := s.Messages.GetByID(ctx, id)
	if err != nil {
		return TriageOutcome{MessageID: id.String(), Status: "failed", Error: err.Error()}
	}

	// Retry-safe: terminal messages are a no-op success, not an error.
	if msg.TriageStatus.Terminal() {
		return TriageOutcome{MessageID: id.String(), Status: "skipped"}
	}

	if err := confirmGuard(p.CaseID, msg.CampaignID, msg.IsCampaignEmail, msg.IsPolicyEmail, msg.ID.String()); err != nil {
		return TriageOutcome{MessageID: id.String(), Status: "failed", Error: err.Error()}
	}

	now := time.Now().UTC()
	if err := s.Messages.Confirm(ctx, id, p.CaseID, p.ActorID, now); err != nil {
		return TriageOutcome{MessageID: id.String(), Status: "failed", Error: err.Error()}
	}
	if err := s.Messages.ApplyTags(ctx, id, p.TagIDs); err != nil {
		return TriageOutcome{MessageID: id.String(), Status: "failed", Error: err.Error()}
	}

	s.recordAudit(ctx, "triage.confirm", p.ActorID, "message", id.String(), auditMeta(p))
	metrics.TriageConfirmed.Inc()
	return TriageOutcome{MessageID: id.String(), Status: "confirmed"}
}

// DismissTriage moves messages to dismissed in bulk, with the same
// partial-success ledger semantics as ConfirmTriage.
func (s *TriageService) DismissTriage(ctx context.Context, messageIDs []uuid.UUID, actorID uuid.UUID, reason string) []TriageOutcome {
	outcomes := make([]TriageOutcome, 0, len(messageIDs))
	for _, id := range messageIDs {
		msg, err := s.Messages.GetByID(ctx, id)
		if err != nil {
			outcomes = append(outcomes, TriageOutcome{MessageID: id.String(), Status: "failed", Error: err.Error()})
			continue
		}
		if msg.TriageStatus.Terminal() {
			outcomes = append(outcomes, TriageOutcome{MessageID: id.String(), Status: "skipped"})
			continue
		}
		if err := s.Messages.Dismiss(ctx, id, reason, time.Now().UTC()); err != nil {
			outcomes = append(outcomes, TriageOutcome{MessageID: id.String(), Status: "failed", Error: err.Error()})
			continue
		}
		s.recordAudit(ctx, "triage.dismiss", actorID, "message", id.String(), map[string]interface{}{"reason": reason})
		metrics.TriageDismissed.Inc()
		outcomes = append(outcomes, TriageOutcome{MessageID: id.String(), Status: "dismissed"})
	}
	return outcomes
}

// ConfirmLegacyTriage applies the same guards and transitions to the
// pre-migration inbound_emails shape. An adapter, not a second state machine.
func (s *TriageService) ConfirmLegacyTriage(ctx context.Context, ids []int64, p ConfirmParams) []TriageOutcome {
	outcomes := make([]TriageOutcome, 0, len(ids))
	for _, id := range ids {
		idStr := fmt.Sprint(id)
		e, err := s.Legacy.GetByID(ctx, id)
		if err != nil {
			outcomes = append(outcomes, TriageOutcome{MessageID: idStr, Status: "failed", Error: err.Error()})
			continue
		}
		if e.Status.Terminal() {
			outcomes = append(outcomes, TriageOutcome{MessageID: idStr, Status: "skipped"})
			continue
		}
		if err := confirmGuard(p.CaseID, e.CampaignID, e.IsCampaignEmail, e.IsPolicyEmail, idStr); err != nil {
			outcomes = append(outcomes, TriageOutcome{MessageID: idStr, Status: "failed", Error: err.Error()})
			continue
		}
		if err := s.Legacy.Confirm(ctx, id, p.CaseID, p.ActorID, time.Now().UTC()); err != nil {
			outcomes = append(outcomes, TriageOutcome{MessageID: idStr, Status: "failed", Error: err.Error()})
			continue
		}
		s.recordAudit(ctx, "triage.confirm", p.ActorID, "inbound_email", idStr, auditMeta(p))
		metrics.TriageConfirmed.Inc()
		outcomes = append(outcomes, TriageOutcome{MessageID: idStr, Status: "confirmed"})
	}
	return outcomes
}

// DismissLegacyTriage dismisses pre-migration records in bulk.
func (s *TriageService) DismissLegacyTriage(ctx context.Context, ids []int64, actorID uuid.UUID, reason string) []TriageOutcome {
	outcomes := make([]TriageOutcome, 0, len(ids))
	for _, id := range ids {
		idStr := fmt.Sprint(id)
		e, err := s.Legacy.GetByID(ctx, id)
		if err != nil {
			outcomes = append(outcomes, TriageOutcome{MessageID: idStr, Status: "failed", Error: err.Error()})
			continue
		}
		if e.Status.Terminal() {
			outcomes = append(outcomes, TriageOutcome{MessageID: idStr, Status: "skipped"})
			continue
		}
		if err := s.Legacy.Dismiss(ctx, id, time.Now().UTC()); err != nil {
			outcomes = append(outcomes, TriageOutcome{MessageID: idStr, Status: "failed", Error: err.Error()})
			continue
		}
		s.recordAudit(ctx, "triage.dismiss", actorID, "inbound_email", idStr, map[string]interface{}{"reason": reason})
		metrics.TriageDismissed.Inc()
		outcomes = append(outcomes, TriageOutcome{MessageID: idStr, Status: "dismissed"})
	}
	return outcomes
}

// confirmGuard enforces the terminal-linkage invariant: a confirmed message
// carries exactly one of a case, a campaign, or the policy flag. A message
// flagged as campaign mail without a campaign id is an invalid state and is
// rejected rather than tolerated.
func confirmGuard(caseID, campaignID *uuid.UUID, isCampaignFlag, isPolicy bool, entityID string) error {
	if isCampaignFlag && campaignID == nil {
		return apperrors.NewValidation("message", entityID, "campaign flag set without campaign linkage")
	}

	n := 0
	if caseID != nil {
		n++
	}
	if campaignID != nil {
		n++
	}
	if isPolicy {
		n++
	}
	switch {
	case n == 0:
		return apperrors.NewValidation("message", entityID, "confirmation requires a case, campaign or policy linkage")
	case n > 1:
		return apperrors.NewValidation("message", entityID, "confirmation permits only one of case, campaign or policy linkage")
	}
	return nil
}

// recordAudit is fire-and-forget: a failed audit write is surfaced as a
// degraded-mode signal, never as a triage failure.
func (s *TriageService) recordAudit(ctx context.Context, action string, actorID uuid.UUID, entityType, entityID string, meta map[string]interface{}) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.RecordAuditEvent(ctx, action, actorID, entityType, entityID, meta); err != nil {
		metrics.AuditFailures.Inc()
		s.Logger.Warn("audit event not recorded",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func auditMeta(p ConfirmParams) map[string]interface{} {
	meta := map[string]interface{}{}
	if p.CaseID != nil {
		meta["case_id"] = p.CaseID.String()
	}
	if p.AssigneeID != nil {
		meta["assignee_id"] = p.AssigneeID.String()
	}
	if len(p.TagIDs) > 0 {
		tags := make([]string, len(p.TagIDs))
		for i, t := range p.TagIDs {
			tags[i] = t.String()
		}
		meta["tag_ids"] = tags
	}
	return meta
}
