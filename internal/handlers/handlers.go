package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"agrimarket/internal/attachments"
	"agrimarket/internal/services"
	"agrimarket/models"
)

// Лимиты тела запроса. Вложения предложения приходят в base64, поэтому
// лимит считается от закодированного размера плюс запас на остальной JSON.
var (
	maxJSONBody       int64 = 1 << 20
	maxAttachmentBody int64 = services.MaxAttachmentBytes
	maxBidBody        int64 = int64(base64.StdEncoding.EncodedLen(services.MaxAttachmentBytes))*services.MaxBidAttachments + maxJSONBody
)

// Handler собирает сервисы, которые обслуживают HTTP API
type Handler struct {
	Orders   OrderService
	Bids     BidService
	Chats    ChatService
	Accounts AccountService
	Files    attachments.Store
	Health   Pinger

	AttachmentTimeout time.Duration
	Log               *slog.Logger
}

// NewHandler создает новый Handler
func NewHandler(orders OrderService, bids BidService, chats ChatService, accounts AccountService,
	files attachments.Store, health Pinger, log *slog.Logger) *Handler {
	return &Handler{
		Orders:            orders,
		Bids:              bids,
		Chats:             chats,
		Accounts:          accounts,
		Files:             files,
		Health:            health,
		AttachmentTimeout: 30 * time.Second,
		Log:               log.With("component", "http"),
	}
}

type envelope map[string]any

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HealthzHandler проверяет доступность базы
func (h *Handler) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Log.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, envelope{"success": false, "message": "database unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

// CatalogHandler отдаёт справочники для клиентских форм
func (h *Handler) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	type quality struct {
		Code  models.Quality `json:"code"`
		Label string         `json:"label"`
	}
	qualities := make([]quality, 0, 3)
	for _, q := range models.AllQualities() {
		qualities = append(qualities, quality{Code: q, Label: q.Label()})
	}
	writeJSON(w, http.StatusOK, envelope{
		"success":       true,
		"qualities":     qualities,
		"regions":       models.Regions,
		"quantityTiers": models.QuantityTiers,
		"statuses":      models.OrderStatuses,
	})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError - единственное место, где ошибки сервисов превращаются в HTTP-коды.
// Текст ошибок хранилища клиенту не уходит, только в лог.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	writeJSON(w, status, envelope{"success": false, "message": msg})
}

func classify(err error) (int, string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, services.ErrAuth):
		return http.StatusUnauthorized, "authentication failed"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "acting user does not match the session"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrUnknownOutcome):
		return http.StatusGatewayTimeout, "request timed out, the change may or may not have been saved"
	case errors.Is(err, services.ErrUpload):
		return http.StatusInternalServerError, "failed to upload attachments"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// decodeJSON читает тело с ограничением размера.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &services.ValidationError{Reason: "request body is too large"}
		}
		return &services.ValidationError{Reason: "failed to read request body"}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &services.ValidationError{Reason: "invalid JSON format"}
	}
	return nil
}
