package handlers

import (
	"net/http"

	"agrimarket/internal/services"
)

func (h *Handler) RegisterBuyerHandler(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterBuyerInput
	if err := decodeJSON(w, r, maxJSONBody, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.Accounts.RegisterBuyer(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "user": user})
}

func (h *Handler) RegisterSellerHandler(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterSellerInput
	if err := decodeJSON(w, r, maxJSONBody, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.Accounts.RegisterSeller(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "user": user})
}

// LoginHandler обрабатывает POST /api/login, отдаёт сессионный токен
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var in services.LoginInput
	if err := decodeJSON(w, r, maxJSONBody, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Accounts.Login(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"success":   true,
		"token":     res.Token,
		"userName":  res.UserName,
		"role":      res.Role,
		"expiresAt": res.ExpiresAt,
	})
}
