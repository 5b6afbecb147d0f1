package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ticketchat/middleware"
)

// NewRouter mounts every endpoint of the reference server
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Tenant)

	r.HandleFunc("/messages/{ticketId}", h.ListMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/{ticketId}", h.CreateMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{messageId}", h.UpdateMessage).Methods(http.MethodPut)
	r.HandleFunc("/contacts/{contactId}/presence", h.SetPresence).Methods(http.MethodPut)
	r.HandleFunc("/ws", h.hub.HandleWebSocket).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	return r
}
