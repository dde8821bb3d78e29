// internal/controller/triage_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/civicdesk/correspondence-backend/internal/model"
	"github.com/civicdesk/correspondence-backend/internal/repository"
	"github.com/civicdesk/correspondence-backend/internal/service"
)

type TriageController struct {
	TriageService *service.TriageService
	MessageRepo   repository.MessageRepositoryInterface
}

// ListQueue serves the triage queue: inbound messages filtered by status,
// campaign and bucket, ordered by received time.
func (c *TriageController) ListQueue(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	q := r.URL.Query()

	filter := repository.QueueFilter{
		Status: model.TriageStatus(q.Get("status")),
		Bucket: model.Bucket(q.Get("bucket")),
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}
	if raw := q.Get("campaign_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign_id"})
			return
		}
		filter.CampaignID = &id
	}

	msgs, total, err := c.MessageRepo.ListQueue(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       msgs,
		"pagination": paginationMeta(page, pageSize, total),
	})
}

func (c *TriageController) MarkAsTriaged(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MessageID  uuid.UUID             `json:"message_id"`
		Suggestion *model.TriageMetadata `json:"suggestion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	if err := c.TriageService.MarkAsTriaged(r.Context(), body.MessageID, body.Suggestion); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "triaged"})
}

func (c *TriageController) ConfirmTriage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MessageIDs []uuid.UUID `json:"message_ids"`
		ActorID    uuid.UUID   `json:"actor_id"`
		CaseID     *uuid.UUID  `json:"case_id,omitempty"`
		AssigneeID *uuid.UUID  `json:"assignee_id,omitempty"`
		TagIDs     []uuid.UUID `json:"tag_ids,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	outcomes := c.TriageService.ConfirmTriage(r.Context(), body.MessageIDs, service.ConfirmParams{
		ActorID:    body.ActorID,
		CaseID:     body.CaseID,
		AssigneeID: body.AssigneeID,
		TagIDs:     body.TagIDs,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": outcomes})
}

func (c *TriageController) DismissTriage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MessageIDs []uuid.UUID `json:"message_ids"`
		ActorID    uuid.UUID   `json:"actor_id"`
		Reason     string      `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	outcomes := c.TriageService.DismissTriage(r.Context(), body.MessageIDs, body.ActorID, body.Reason)
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": outcomes})
}

// Legacy endpoints operate on the pre-migration inbound_emails table with
// integer ids; same transitions, different record shape.

func (c *TriageController) ConfirmLegacyTriage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EmailIDs []int64     `json:"email_ids"`
		ActorID  uuid.UUID   `json:"actor_id"`
		CaseID   *uuid.UUID  `json:"case_id,omitempty"`
		TagIDs   []uuid.UUID `json:"tag_ids,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	outcomes := c.TriageService.ConfirmLegacyTriage(r.Context(), body.EmailIDs, service.ConfirmParams{
		ActorID: body.ActorID,
		CaseID:  body.CaseID,
		TagIDs:  body.TagIDs,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": outcomes})
}

func (c *TriageController) DismissLegacyTriage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EmailIDs []int64   `json:"email_ids"`
		ActorID  uuid.UUID `json:"actor_id"`
		Reason   string    `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	outcomes := c.TriageService.DismissLegacyTriage(r.Context(), body.EmailIDs, body.ActorID, body.Reason)
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": outcomes})
}
