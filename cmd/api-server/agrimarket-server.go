package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrimarket/db"
	"agrimarket/db/migrations"
	"agrimarket/internal/attachments"
	"agrimarket/internal/cache"
	"agrimarket/internal/config"
	"agrimarket/internal/handlers"
	"agrimarket/internal/identity"
	"agrimarket/internal/logging"
	"agrimarket/internal/metrics"
	"agrimarket/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting agrimarket api", "db_driver", cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.Registry(cfg.MetricsNamespace)

	dbConn, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("cannot connect to DB: %w", err)
	}
	defer dbConn.Close()

	if err := migrations.Run(ctx, dbConn.DB, cfg.Database.Driver, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated")

	store := db.NewStorage(dbConn)

	files, mediaDir, err := newAttachmentStore(cfg, logger)
	if err != nil {
		return err
	}
	files = attachments.Instrument(files, m.AttachmentUploads)

	var inbox services.InboxCache
	if cfg.Redis.Addr != "" {
		c := cache.NewInbox(cache.NewClient(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			UseTLS:   cfg.Redis.UseTLS,
		}), cfg.Redis.InboxCacheTTL, m.InboxCache)
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("failed closing redis", "error", err)
			}
		}()
		if err := c.Ping(ctx); err != nil {
			logger.Warn("redis ping failed", "error", err)
		}
		inbox = c
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// токены будут жить до перезапуска
		secret = rand.Text()
		logger.Warn("JWT_SECRET is empty, using a random secret")
	}
	ids := identity.NewGateway(store, secret, cfg.Auth.TokenTTL)

	orders := services.NewOrderService(store, cfg.RFQTTL, m.OrdersExpired, logger)
	bids := services.NewBidService(store, files, cfg.RFQTTL, cfg.AttachmentTimeout, logger)
	chats := services.NewChatService(store, inbox, logger)
	accounts := services.NewAccountService(store, ids, logger)

	h := handlers.NewHandler(orders, bids, chats, accounts, files, store, logger)
	h.AttachmentTimeout = cfg.AttachmentTimeout

	router := handlers.NewRouter(h, handlers.RouterOptions{
		Metrics:        m,
		Tokens:         ids,
		AuthRequired:   cfg.Auth.Required,
		RequestTimeout: cfg.RequestTimeout,
		MediaDir:       mediaDir,
	})

	go orders.RunExpirySweep(ctx, cfg.ExpirySweepInterval)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	return nil
}

// newAttachmentStore выбирает Cloudinary, если заданы ключи, иначе локальный каталог.
func newAttachmentStore(cfg *config.Config, logger *slog.Logger) (attachments.Store, string, error) {
	if cfg.Cloudinary.Enabled() {
		s, err := attachments.NewCloudinaryStore(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			return nil, "", fmt.Errorf("init attachment store: %w", err)
		}
		logger.Info("attachments stored in cloudinary", "cloud", cfg.Cloudinary.CloudName)
		return s, "", nil
	}
	s, err := attachments.NewLocalStore(cfg.Media.Dir, cfg.Media.PublicBaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("init attachment store: %w", err)
	}
	logger.Info("attachments stored locally", "dir", cfg.Media.Dir)
	return s, s.Dir(), nil
}
