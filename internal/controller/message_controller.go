// internal/controller/message_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/civicdesk/correspondence-backend/internal/service"
)

type MessageController struct {
	IngestService *service.IngestService
}

func (c *MessageController) Ingest(w http.ResponseWriter, r *http.Request) {
	var req service.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	msg, err := c.IngestService.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
