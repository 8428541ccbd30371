package handlers

import (
	"net/http"

	"agrimarket/internal/services"
)

// SubmitBidHandler обрабатывает POST /api/bids. Вложения - base64 в поле attachments.
func (h *Handler) SubmitBidHandler(w http.ResponseWriter, r *http.Request) {
	var in services.SubmitBidInput
	if err := decodeJSON(w, r, maxBidBody, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	bid, err := h.Bids.SubmitBid(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "bid": bid})
}

// ListBidsHandler обрабатывает GET /api/bids?orderID=&sort=amount|date&dir=asc|desc
func (h *Handler) ListBidsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bids, err := h.Bids.ListBids(r.Context(), q.Get("orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := services.SortBids(bids, q.Get("sort"), q.Get("dir")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "bids": bids})
}
