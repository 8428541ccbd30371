package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"agrimarket/db"
	"agrimarket/internal/identity"
	"agrimarket/models"
)

const loadingDateLayout = "2006-01-02"

// CreateOrderInput - тело POST /api/orders.
type CreateOrderInput struct {
	Quantity         int             `json:"quantity" validate:"gt=0,lte=10000"`
	Quality          *models.Quality `json:"quality" validate:"required"`
	Region           string          `json:"region" validate:"required"`
	LoadingDate      string          `json:"loadingDate" validate:"required"`
	DeliveryLocation string          `json:"deliveryLocation" validate:"required"`
	UserName         string          `json:"userName" validate:"required"`
}

// ListOrdersInput - фильтры списка, status в сыром виде из запроса.
type ListOrdersInput struct {
	UserName string
	Status   string
	Region   string
}

// OrderView - заказ в том виде, в каком его видит клиент: с подписью сорта и сроком действия.
type OrderView struct {
	models.Order
	QualityLabel string    `json:"qualityLabel"`
	ExpiresAt    time.Time `json:"expiresAt"`
	IsExpired    bool      `json:"isExpired"`
}

type OrderService struct {
	store   OrderStore
	ttl     time.Duration
	now     Clock
	expired prometheus.Counter
	log     *slog.Logger
}

// NewOrderService. ttl <= 0 означает срок по умолчанию, expired может быть nil.
func NewOrderService(store OrderStore, ttl time.Duration, expired prometheus.Counter, log *slog.Logger) *OrderService {
	if ttl <= 0 {
		ttl = models.DefaultRFQTTL
	}
	return &OrderService{
		store:   store,
		ttl:     ttl,
		now:     systemClock,
		expired: expired,
		log:     log.With("component", "orders"),
	}
}

// WithClock подменяет часы сервиса.
func (s *OrderService) WithClock(c Clock) *OrderService {
	s.now = c
	return s
}

func (s *OrderService) TTL() time.Duration { return s.ttl }

func (s *OrderService) view(o models.Order, now time.Time) OrderView {
	return OrderView{
		Order:        o,
		QualityLabel: o.Quality.Label(),
		ExpiresAt:    o.ExpiresAt(s.ttl),
		IsExpired:    o.IsExpired(now, s.ttl),
	}
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderView, error) {
	trim(&in.Region, &in.LoadingDate, &in.DeliveryLocation, &in.UserName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if !in.Quality.Valid() {
		return nil, invalid("quality", "is not a known quality code")
	}
	region, ok := models.NormalizeRegion(in.Region)
	if !ok {
		return nil, invalid("region", "is not a known region")
	}
	if _, err := time.Parse(loadingDateLayout, in.LoadingDate); err != nil {
		return nil, invalid("loadingDate", "must be a date in YYYY-MM-DD format")
	}
	if err := checkActor(ctx, in.UserName); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, storeErr("generate order id", err, false)
	}
	now := s.now()
	o := models.Order{
		ID:               id.String(),
		Quantity:         in.Quantity,
		Quality:          *in.Quality,
		Region:           region,
		LoadingDate:      in.LoadingDate,
		DeliveryLocation: in.DeliveryLocation,
		UserName:         in.UserName,
		Status:           models.StatusOpen,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateOrder(ctx, &o); err != nil {
		return nil, storeErr("create order", err, true)
	}
	v := s.view(o, now)
	return &v, nil
}

func (s *OrderService) ListOrders(ctx context.Context, in ListOrdersInput) ([]OrderView, error) {
	trim(&in.UserName, &in.Region)
	f := db.OrderFilter{UserName: in.UserName}

	statuses, ok := models.ParseStatusFilter(in.Status)
	if !ok {
		return nil, invalid("status", "must be OPEN, CLOSED, EXPIRED, true or false")
	}
	f.Statuses = statuses

	if in.Region != "" {
		region, ok := models.NormalizeRegion(in.Region)
		if !ok {
			return nil, invalid("region", "is not a known region")
		}
		f.Region = region
	}

	orders, err := s.store.ListOrders(ctx, f)
	if err != nil {
		return nil, storeErr("list orders", err, false)
	}
	now := s.now()
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, s.view(o, now))
	}
	return views, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*OrderView, error) {
	if id == "" {
		return nil, invalid("orderID", "is required")
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, storeErr("get order", err, false)
	}
	v := s.view(*o, s.now())
	return &v, nil
}

// UpdateOrderStatus меняет только статус; status принимает и старые true/false.
// Менять статус может только владелец заказа.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id, status string) (*OrderView, error) {
	if id == "" {
		return nil, invalid("orderID", "is required")
	}
	st, ok := models.ParseStatus(status)
	if !ok {
		return nil, invalid("status", "must be OPEN, CLOSED, EXPIRED, true or false")
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, storeErr("get order", err, false)
	}
	if err := checkActor(ctx, o.UserName); err != nil {
		return nil, err
	}
	if st == models.StatusOpen && o.AcceptedBidID != nil {
		return nil, conflict("order with an accepted bid cannot be reopened")
	}
	if err := s.store.UpdateOrderStatus(ctx, id, st, s.now()); err != nil {
		return nil, storeErr("update order status", err, true)
	}
	return s.GetOrder(ctx, id)
}

// AcceptBid закрывает заказ предложением. Повторное принятие даёт ErrConflict.
func (s *OrderService) AcceptBid(ctx context.Context, orderID, bidID string) (*OrderView, error) {
	if orderID == "" {
		return nil, invalid("orderID", "is required")
	}
	if bidID == "" {
		return nil, invalid("bidID", "is required")
	}
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr("get order", err, false)
	}
	if err := checkActor(ctx, o.UserName); err != nil {
		return nil, err
	}
	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, storeErr("get bid", err, false)
	}
	if bid.OrderID != o.ID {
		return nil, storeErr("get bid", db.ErrNotFound, false)
	}

	now := s.now()
	if o.AcceptedBidID != nil {
		return nil, conflict("order already has an accepted bid")
	}
	if o.Status != models.StatusOpen || o.IsExpired(now, s.ttl) {
		return nil, conflict("order is not open")
	}

	ok, err := s.store.AcceptBid(ctx, orderID, bidID, now.Add(-s.ttl), now)
	if err != nil {
		return nil, storeErr("accept bid", err, true)
	}
	if !ok {
		// кто-то успел раньше между чтением и обновлением
		return nil, conflict("order is no longer open")
	}
	return s.GetOrder(ctx, orderID)
}

// ExpireOrders переводит просроченные RFQ в EXPIRED и возвращает их число.
func (s *OrderService) ExpireOrders(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.store.ExpireOrders(ctx, now.Add(-s.ttl), now)
	if err != nil {
		return 0, storeErr("expire orders", err, true)
	}
	if n > 0 && s.expired != nil {
		s.expired.Add(float64(n))
	}
	return n, nil
}

// RunExpirySweep крутит ExpireOrders до отмены ctx. interval <= 0 выключает очистку.
func (s *OrderService) RunExpirySweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.log.Info("expiry sweep disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ExpireOrders(ctx)
			if err != nil {
				s.log.Error("expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info("orders expired", "count", n)
			}
		}
	}
}

// checkActor сверяет пользователя из запроса с сессией, если она есть.
func checkActor(ctx context.Context, userName string) error {
	sess, ok := identity.SessionFromContext(ctx)
	if !ok {
		return nil
	}
	if sess.UserName != userName {
		return ErrForbidden
	}
	return nil
}
