// internal/controller/dispatch_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/civicdesk/correspondence-backend/internal/model"
	"github.com/civicdesk/correspondence-backend/internal/repository"
	"github.com/civicdesk/correspondence-backend/internal/service"
)

type DispatchController struct {
	DispatchService  *service.DispatchService
	BulkResponseRepo repository.BulkResponseRepositoryInterface
	LockRepo         repository.LockRepositoryInterface
}

func (c *DispatchController) CreateBulkResponse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CampaignID      uuid.UUID `json:"campaign_id"`
		SubjectTemplate string    `json:"subject_template"`
		BodyTemplate    string    `json:"body_template"`
		CreatedBy       uuid.UUID `json:"created_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if body.SubjectTemplate == "" || body.BodyTemplate == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subject_template and body_template are required"})
		return
	}

	b := &model.BulkResponse{
		CampaignID:      body.CampaignID,
		SubjectTemplate: body.SubjectTemplate,
		BodyTemplate:    body.BodyTemplate,
		CreatedBy:       body.CreatedBy,
		Status:          model.BulkResponseDraft,
	}
	if err := c.BulkResponseRepo.Create(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// PlanDispatch queues outbox entries for every unlogged campaign
// constituent. Safe to call repeatedly: duplicates are never queued.
func (c *DispatchController) PlanDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bulk response id"})
		return
	}

	queued, err := c.DispatchService.PlanDispatch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"queued_count": queued})
}

// ListLogs returns the per-recipient send ledger for a bulk response.
func (c *DispatchController) ListLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bulk response id"})
		return
	}

	logs, err := c.BulkResponseRepo.ListLogs(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": logs})
}

// LockStatus reports the current automation lease holder, for operators
// checking whether a dispatcher is draining.
func (c *DispatchController) LockStatus(w http.ResponseWriter, r *http.Request) {
	lock, err := c.LockRepo.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lock)
}
