package api

import (
	"net/http"

	"chatgate/internal/models"

	"github.com/gorilla/mux"
)

// CreateConversation starts a conversation between the caller and the listed users
// POST /api/conversations/
func (h *Handlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req models.CreateConversationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	conv, err := h.chat.CreateConversation(r.Context(), user, &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, conv)
}

// ListConversations lists the caller's conversations
// GET /api/conversations/?ordering=-created_at&page=1&page_size=20
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	page, err := parsePage(r)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error(), models.ErrorCodeInvalidRequest)
		return
	}
	req := &models.ListConversationsRequest{
		Page:     page,
		Ordering: r.URL.Query().Get("ordering"),
	}

	resp, err := h.chat.ListConversations(r.Context(), user, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// GetConversation returns one conversation the caller takes part in
// GET /api/conversations/{id}/
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	conv, err := h.chat.GetConversation(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, conv)
}
