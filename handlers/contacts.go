package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"ticketchat/logger"
	"ticketchat/middleware"
	"ticketchat/models"
)

type presenceRequest struct {
	Presence models.Presence `json:"presence"`
}

// SetPresence records a contact's presence and publishes a contact update:
// PUT /contacts/{contactId}/presence
func (h *Handler) SetPresence(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "companyId is required")
		return
	}

	var req presenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch req.Presence.Normalize() {
	case models.PresenceAvailable, models.PresenceComposing, models.PresenceRecording:
	default:
		writeError(w, http.StatusBadRequest, "Unknown presence")
		return
	}

	contact, err := h.store.SetPresence(r.Context(), mux.Vars(r)["contactId"], req.Presence)
	if err != nil {
		h.log.Error(r.Context(), "set presence failed", logger.F("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to update contact")
		return
	}

	h.publish(r.Context(), models.ContactChannel(tenantID), models.ContactEvent{
		Action:  models.ActionUpdate,
		Contact: contact,
	})
	writeJSON(w, http.StatusOK, contact)
}
