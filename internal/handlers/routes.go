package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"agrimarket/internal/metrics"
)

// RouterOptions - всё, что роутеру нужно помимо обработчиков.
type RouterOptions struct {
	Metrics        *metrics.Metrics
	Tokens         TokenValidator
	AuthRequired   bool
	RequestTimeout time.Duration
	// MediaDir раздаётся по /media/, если вложения хранятся локально
	MediaDir string
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.accessLog(opts.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HealthzHandler)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}
	if opts.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(opts.MediaDir))))
	}

	auth := h.session(opts.Tokens, opts.AuthRequired)
	optionalAuth := h.session(opts.Tokens, false)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		r.Get("/catalog", h.CatalogHandler)

		// JSON-запросы с таймаутом
		r.Group(func(r chi.Router) {
			r.Use(deadline(opts.RequestTimeout))

			// пользователи
			r.Post("/buyers", h.RegisterBuyerHandler)
			r.Post("/sellers", h.RegisterSellerHandler)
			r.Post("/login", h.LoginHandler)

			// заказы
			r.With(optionalAuth).Get("/orders", h.ListOrdersHandler)
			r.With(auth).Post("/orders", h.CreateOrderHandler)
			r.With(auth).Put("/orders/{orderID}/status", h.UpdateOrderStatusHandler)
			r.With(auth).Put("/orders/{orderID}/accept", h.AcceptBidHandler)

			// чаты
			r.With(auth).Post("/chats", h.SendMessageHandler)
			r.With(optionalAuth).Get("/chats", h.ListConversationHandler)
			r.With(optionalAuth).Get("/chats/inbox", h.ListInboxHandler)

			r.With(optionalAuth).Get("/bids", h.ListBidsHandler)
		})

		// загрузки ограничены ATTACHMENT_TIMEOUT на каждый файл, а не общим таймаутом
		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/bids", h.SubmitBidHandler)
			r.Post("/attachments", h.UploadAttachmentHandler)
		})
	})

	return r
}
