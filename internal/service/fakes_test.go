package service_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/model"
	"github.com/civicdesk/correspondence-backend/internal/repository"
)

// In-memory repositories backing the service tests.

type fakeMessageRepo struct {
	messages map[uuid.UUID]*model.Message
	tags     map[uuid.UUID][]uuid.UUID

	// Mirrors the production sweep statement, which maintains the campaign
	// message_count in the same statement that attaches messages.
	campaigns *fakeCampaignRepo
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages: map[uuid.UUID]*model.Message{},
		tags:     map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeMessageRepo) Create(ctx context.Context, m *model.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.TriageStatus == "" {
		m.TriageStatus = model.TriagePending
	}
	f.messages[m.ID] = m
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, apperrors.NewNotFound("message", id.String())
	}
	return m, nil
}

func (f *fakeMessageRepo) AttachCampaign(ctx context.Context, id, campaignID uuid.UUID, fingerprint string) error {
	m, ok := f.messages[id]
	if !ok {
		return apperrors.NewNotFound("message", id.String())
	}
	m.CampaignID = &campaignID
	m.IsCampaignEmail = true
	m.FingerprintHash = &fingerprint
	return nil
}

func (f *fakeMessageRepo) AttachCampaignByFingerprint(ctx context.Context, campaignID uuid.UUID, fp string) (int, error) {
	linked := 0
	for _, m := range f.messages {
		if m.CampaignID != nil && *m.CampaignID == campaignID {
			linked++
		}
	}

	n := 0
	for _, m := range f.messages {
		if m.CampaignID == nil && m.FingerprintHash != nil && *m.FingerprintHash == fp {
			id := campaignID
			m.CampaignID = &id
			m.IsCampaignEmail = true
			n++
		}
	}

	if f.campaigns != nil {
		if c, err := f.campaigns.GetByID(ctx, campaignID); err == nil {
			c.MessageCount = linked + n
		}
	}
	return n, nil
}

func (f *fakeMessageRepo) MarkTriaged(ctx context.Context, id uuid.UUID, meta *model.TriageMetadata, at time.Time) error {
	m, ok := f.messages[id]
	if !ok {
		return apperrors.NewNotFound("message", id.String())
	}
	m.TriageStatus = model.TriageTriaged
	m.TriageMetadata = meta
	m.TriagedAt = &at
	return nil
}

func (f *fakeMessageRepo) Confirm(ctx context.Context, id uuid.UUID, caseID *uuid.UUID, by uuid.UUID, at time.Time) error {
	m, ok := f.messages[id]
	if !ok {
		return apperrors.NewNotFound("message", id.String())
	}
	if m.TriageStatus.Terminal() {
		return apperrors.NewConflict("message", "not in a confirmable state")
	}
	if caseID != nil {
		m.CaseID = caseID
	}
	m.TriageStatus = model.TriageConfirmed
	m.ConfirmedAt = &at
	m.ConfirmedBy = &by
	return nil
}

func (f *fakeMessageRepo) Dismiss(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	m, ok := f.messages[id]
	if !ok {
		return apperrors.NewNotFound("message", id.String())
	}
	if m.TriageStatus.Terminal() {
		return apperrors.NewConflict("message", "not in a dismissable state")
	}
	m.TriageStatus = model.TriageDismissed
	m.DismissalReason = reason
	return nil
}

func (f *fakeMessageRepo) ApplyTags(ctx context.Context, id uuid.UUID, tagIDs []uuid.UUID) error {
	f.tags[id] = append(f.tags[id], tagIDs...)
	return nil
}

func (f *fakeMessageRepo) ListQueue(ctx context.Context, qf repository.QueueFilter) ([]*model.Message, int, error) {
	out := []*model.Message{}
	for _, m := range f.messages {
		if qf.Status != "" && m.TriageStatus != qf.Status {
			continue
		}
		out = append(out, m)
	}
	return out, len(out), nil
}

var _ repository.MessageRepositoryInterface = (*fakeMessageRepo)(nil)

type fakeCampaignRepo struct {
	byFingerprint map[string]*model.Campaign
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{byFingerprint: map[string]*model.Campaign{}}
}

func (f *fakeCampaignRepo) Upsert(ctx context.Context, fingerprint, name, bodyPreview string) (uuid.UUID, bool, error) {
	if c, ok := f.byFingerprint[fingerprint]; ok {
		c.MessageCount++
		return c.ID, false, nil
	}
	fp := fingerprint
	c := &model.Campaign{
		ID:              uuid.New(),
		FingerprintHash: &fp,
		Name:            name,
		BodyPreview:     bodyPreview,
		MessageCount:    1,
		Status:          model.CampaignActive,
		FirstSeenAt:     time.Now().UTC(),
	}
	f.byFingerprint[fingerprint] = c
	return c.ID, true, nil
}

func (f *fakeCampaignRepo) IncrementIfExists(ctx context.Context, fingerprint string) (uuid.UUID, bool, error) {
	c, ok := f.byFingerprint[fingerprint]
	if !ok {
		return uuid.Nil, false, nil
	}
	c.MessageCount++
	return c.ID, true, nil
}

func (f *fakeCampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	for _, c := range f.byFingerprint {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, apperrors.NewNotFound("campaign", id.String())
}

func (f *fakeCampaignRepo) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	out := []*model.Campaign{}
	for _, c := range f.byFingerprint {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (f *fakeCampaignRepo) BucketCounts(ctx context.Context, id uuid.UUID) (*model.CampaignBucketCounts, error) {
	return &model.CampaignBucketCounts{}, nil
}

func (f *fakeCampaignRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus) error {
	c, err := f.GetByID(ctx, id)
	if err != nil {
		return err
	}
	c.Status = status
	return nil
}

func (f *fakeCampaignRepo) ReconcileMessageCount(ctx context.Context, id uuid.UUID) (int, error) {
	c, err := f.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return c.MessageCount, nil
}

var _ repository.CampaignRepositoryInterface = (*fakeCampaignRepo)(nil)

type fakeConstituentRepo struct {
	byEmail map[string]*model.Constituent
}

func newFakeConstituentRepo() *fakeConstituentRepo {
	return &fakeConstituentRepo{byEmail: map[string]*model.Constituent{}}
}

func (f *fakeConstituentRepo) FindByEmail(ctx context.Context, email string) (*model.Constituent, error) {
	return f.byEmail[email], nil
}

var _ repository.ConstituentRepositoryInterface = (*fakeConstituentRepo)(nil)

type fakeLegacyRepo struct {
	emails map[int64]*model.LegacyInboundEmail
}

func newFakeLegacyRepo() *fakeLegacyRepo {
	return &fakeLegacyRepo{emails: map[int64]*model.LegacyInboundEmail{}}
}

func (f *fakeLegacyRepo) GetByID(ctx context.Context, id int64) (*model.LegacyInboundEmail, error) {
	e, ok := f.emails[id]
	if !ok {
		return nil, apperrors.NewNotFound("inbound_email", "")
	}
	return e, nil
}

func (f *fakeLegacyRepo) Confirm(ctx context.Context, id int64, caseID *uuid.UUID, by uuid.UUID, at time.Time) error {
	e, ok := f.emails[id]
	if !ok {
		return apperrors.NewNotFound("inbound_email", "")
	}
	if e.Status.Terminal() {
		return apperrors.NewConflict("inbound_email", "not in a confirmable state")
	}
	e.Status = model.TriageConfirmed
	e.ConfirmedAt = &at
	e.ConfirmedBy = &by
	return nil
}

func (f *fakeLegacyRepo) Dismiss(ctx context.Context, id int64, at time.Time) error {
	e, ok := f.emails[id]
	if !ok {
		return apperrors.NewNotFound("inbound_email", "")
	}
	if e.Status.Terminal() {
		return apperrors.NewConflict("inbound_email", "not in a dismissable state")
	}
	e.Status = model.TriageDismissed
	return nil
}

var _ repository.LegacyEmailRepositoryInterface = (*fakeLegacyRepo)(nil)

type auditEvent struct {
	action     string
	entityType string
	entityID   string
}

type fakeAudit struct {
	events []auditEvent
	fail   bool
}

func (f *fakeAudit) RecordAuditEvent(ctx context.Context, action string, actorID uuid.UUID, entityType, entityID string, metadata map[string]interface{}) error {
	if f.fail {
		return errors.New("audit store unavailable")
	}
	f.events = append(f.events, auditEvent{action: action, entityType: entityType, entityID: entityID})
	return nil
}
