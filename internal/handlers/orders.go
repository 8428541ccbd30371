package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"agrimarket/internal/services"
	"agrimarket/models"
)

// CreateOrderHandler обрабатывает POST /api/orders
func (h *Handler) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var in services.CreateOrderInput
	if err := decodeJSON(w, r, maxJSONBody, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	order, err := h.Orders.CreateOrder(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "order": order})
}

// ListOrdersHandler обрабатывает GET /api/orders?userName=&status=&region=
func (h *Handler) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.Orders.ListOrders(r.Context(), services.ListOrdersInput{
		UserName: q.Get("userName"),
		Status:   q.Get("status"),
		Region:   q.Get("region"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "orders": orders})
}

// UpdateOrderStatusHandler обрабатывает PUT /api/orders/{orderID}/status.
// status: OPEN|CLOSED|EXPIRED или true/false от старых клиентов.
func (h *Handler) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var body struct {
		Status *models.StatusValue `json:"status"`
	}
	if err := decodeJSON(w, r, maxJSONBody, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if body.Status == nil {
		h.writeError(w, r, &services.ValidationError{Field: "status", Reason: "is required"})
		return
	}

	order, err := h.Orders.UpdateOrderStatus(r.Context(), orderID, string(*body.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "order": order})
}

// AcceptBidHandler обрабатывает PUT /api/orders/{orderID}/accept с телом {"bidID": "..."}
func (h *Handler) AcceptBidHandler(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var body struct {
		BidID string `json:"bidID"`
	}
	if err := decodeJSON(w, r, maxJSONBody, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.Orders.AcceptBid(r.Context(), orderID, body.BidID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "order": order})
}
