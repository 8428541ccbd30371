package handlers

import (
	"net/http"

	"agrimarket/internal/services"
)

// SendMessageHandler обрабатывает POST /api/chats
func (h *Handler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var in services.SendMessageInput
	if err := decodeJSON(w, r, maxJSONBody, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	msg, err := h.Chats.SendMessage(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "chat": msg})
}

// ListConversationHandler обрабатывает GET /api/chats?senderUserName=&receiverUserName=
func (h *Handler) ListConversationHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	msgs, err := h.Chats.ListConversation(r.Context(), q.Get("senderUserName"), q.Get("receiverUserName"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "chats": msgs})
}

// ListInboxHandler обрабатывает GET /api/chats/inbox?username=
func (h *Handler) ListInboxHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Chats.ListInbox(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "conversations": entries})
}
