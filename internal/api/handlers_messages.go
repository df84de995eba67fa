package api

import (
	"net/http"

	"chatgate/internal/models"

	"github.com/gorilla/mux"
)

// SendMessage posts a message as the caller
// POST /api/messages/
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), user, &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, msg)
}

// ListMessages lists messages from the caller's conversations
// GET /api/messages/?conversation=&sender=&participant=&start_date=&end_date=&page=&page_size=
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	req, err := parseListMessages(r)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, err.Error(), models.ErrorCodeInvalidRequest)
		return
	}

	resp, err := h.chat.ListMessages(r.Context(), user, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

func parseListMessages(r *http.Request) (*models.ListMessagesRequest, error) {
	page, err := parsePage(r)
	if err != nil {
		return nil, err
	}
	query := r.URL.Query()
	req := &models.ListMessagesRequest{
		Page: page,
		Filter: models.MessageFilter{
			ConversationID: query.Get("conversation"),
			SenderID:       query.Get("sender"),
			ParticipantID:  query.Get("participant"),
		},
	}
	if raw := query.Get("start_date"); raw != "" {
		if req.Filter.StartDate, err = models.ParseDate(raw); err != nil {
			return nil, err
		}
	}
	if raw := query.Get("end_date"); raw != "" {
		if req.Filter.EndDate, err = models.ParseDate(raw); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// GetMessage returns one message
// GET /api/messages/{id}/
func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	msg, err := h.chat.GetMessage(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, msg)
}

// UpdateMessage replaces the body of the caller's message
// PUT|PATCH /api/messages/{id}/
func (h *Handlers) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req models.UpdateMessageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.chat.UpdateMessage(r.Context(), user, mux.Vars(r)["id"], &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, msg)
}

// DeleteMessage removes the caller's message
// DELETE /api/messages/{id}/
func (h *Handlers) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.chat.DeleteMessage(r.Context(), user, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, &models.DeleteResponse{
		ID:      id,
		Message: "Message deleted successfully",
	})
}
