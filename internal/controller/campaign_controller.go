// internal/controller/campaign_controller.go
package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/civicdesk/correspondence-backend/internal/model"
	"github.com/civicdesk/correspondence-backend/internal/repository"
)

type CampaignController struct {
	CampaignRepo repository.CampaignRepositoryInterface
	OutboxRepo   repository.OutboxRepositoryInterface
}

type campaignListing struct {
	*model.Campaign
	Buckets *model.CampaignBucketCounts `json:"buckets"`
}

// ListCampaigns returns campaigns with message counts and per-bucket sender
// breakdowns, largest campaigns first.
func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	status := r.URL.Query().Get("status")

	campaigns, total, err := c.CampaignRepo.ListCampaigns(r.Context(), (page-1)*pageSize, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}

	listings := make([]campaignListing, 0, len(campaigns))
	for _, campaign := range campaigns {
		buckets, err := c.CampaignRepo.BucketCounts(r.Context(), campaign.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		listings = append(listings, campaignListing{Campaign: campaign, Buckets: buckets})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       listings,
		"pagination": paginationMeta(page, pageSize, total),
	})
}

// GetCampaign returns one campaign with its bucket breakdown and outbox
// dispatch stats.
func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}

	// The counter column drifts when messages are attached outside the
	// matcher; reconcile against the message table before serving the detail.
	if _, err := c.CampaignRepo.ReconcileMessageCount(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	campaign, err := c.CampaignRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	buckets, err := c.CampaignRepo.BucketCounts(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := c.OutboxRepo.CountByStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign":       campaign,
		"buckets":        buckets,
		"dispatch_stats": stats,
	})
}

// CloseCampaign marks a campaign closed. Closed campaigns stay matchable for
// late arrivals; the status is an office-facing triage signal, not a matcher
// gate.
func (c *CampaignController) CloseCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}

	if err := c.CampaignRepo.UpdateStatus(r.Context(), id, model.CampaignClosed); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": model.CampaignClosed,
	})
}
