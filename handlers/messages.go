package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ticketchat/database"
	"ticketchat/logger"
	"ticketchat/middleware"
	"ticketchat/models"
)

// Handler serves the messages and contacts endpoints
type Handler struct {
	store    *database.Store
	hub      *Hub
	pageSize int
	log      logger.Logger
}

// NewHandler creates the HTTP handlers; pageSize bounds each history page
func NewHandler(store *database.Store, hub *Hub, pageSize int, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Handler{store: store, hub: hub, pageSize: pageSize, log: log}
}

type createMessageRequest struct {
	ID          string           `json:"id"`
	FromMe      bool             `json:"fromMe"`
	Body        string           `json:"body"`
	MediaType   models.MediaType `json:"mediaType"`
	MediaURL    string           `json:"mediaUrl"`
	IsForwarded bool             `json:"isForwarded"`
	QuotedMsgID string           `json:"quotedMsgId"`
	Contact     *models.Contact  `json:"contact"`
	Queue       *models.Queue    `json:"queue"`
}

// ListMessages returns one history page: GET /messages/{ticketId}?pageNumber=N
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ticketID := mux.Vars(r)["ticketId"]

	page := 1
	if p := r.URL.Query().Get("pageNumber"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "Invalid pageNumber")
			return
		}
		page = parsed
	}

	out, err := h.store.ListMessages(r.Context(), ticketID, page, h.pageSize)
	if err != nil {
		h.log.Error(r.Context(), "list messages failed", logger.F("ticket_id", ticketID), logger.F("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to get messages")
		return
	}
	pagesServed.Inc()
	writeJSON(w, http.StatusOK, out)
}

// CreateMessage stores a message and publishes a create event: POST /messages/{ticketId}
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "companyId is required")
		return
	}

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Body == "" && req.MediaURL == "" {
		writeError(w, http.StatusBadRequest, "Message body or media is required")
		return
	}
	if req.MediaType == "" {
		req.MediaType = models.MediaChat
	}

	msg := &models.Message{
		ID:          req.ID,
		TicketID:    mux.Vars(r)["ticketId"],
		FromMe:      req.FromMe,
		Body:        req.Body,
		MediaType:   req.MediaType,
		MediaURL:    req.MediaURL,
		IsForwarded: req.IsForwarded,
		Contact:     req.Contact,
		Queue:       req.Queue,
	}
	if req.QuotedMsgID != "" {
		msg.QuotedMsg = &models.Message{ID: req.QuotedMsgID}
	}

	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		h.log.Error(r.Context(), "create message failed", logger.F("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}
	created, err := h.store.GetMessage(r.Context(), msg.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	h.publish(r.Context(), models.MessageChannel(tenantID), models.MessageEvent{
		Action:  models.ActionCreate,
		Message: created,
	})
	writeJSON(w, http.StatusCreated, created)
}

// UpdateMessage edits, acknowledges or deletes a message and publishes an update event:
// PUT /messages/{messageId}
func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "companyId is required")
		return
	}

	var patch database.MessagePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.store.UpdateMessage(r.Context(), mux.Vars(r)["messageId"], patch)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}
	if err != nil {
		h.log.Error(r.Context(), "update message failed", logger.F("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to update message")
		return
	}

	h.publish(r.Context(), models.MessageChannel(tenantID), models.MessageEvent{
		Action:  models.ActionUpdate,
		Message: updated,
	})
	writeJSON(w, http.StatusOK, updated)
}

// publish fans an event out; the write already succeeded, so a failure is only logged
func (h *Handler) publish(ctx context.Context, channel string, payload interface{}) {
	if err := h.hub.Publish(ctx, channel, payload); err != nil {
		h.log.Warn(ctx, "publish failed", logger.F("channel", channel), logger.F("error", err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
