package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"agrimarket/internal/attachments"
	"agrimarket/models"
)

const (
	MaxBidAttachments  = 5
	MaxAttachmentBytes = 5 << 20
)

// SubmitBidInput - тело POST /api/bids. attachments приходят base64-строками.
type SubmitBidInput struct {
	OrderID     string           `json:"orderID" validate:"required"`
	UserName    string           `json:"userName" validate:"required"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Attachments [][]byte         `json:"attachments" validate:"max=5,dive,min=1,max=5242880"`
	License     string           `json:"license" validate:"required"`
}

type BidService struct {
	store             BidStore
	files             attachments.Store
	ttl               time.Duration
	attachmentTimeout time.Duration
	now               Clock
	log               *slog.Logger
}

func NewBidService(store BidStore, files attachments.Store, ttl, attachmentTimeout time.Duration, log *slog.Logger) *BidService {
	if ttl <= 0 {
		ttl = models.DefaultRFQTTL
	}
	if attachmentTimeout <= 0 {
		attachmentTimeout = 30 * time.Second
	}
	return &BidService{
		store:             store,
		files:             files,
		ttl:               ttl,
		attachmentTimeout: attachmentTimeout,
		now:               systemClock,
		log:               log.With("component", "bids"),
	}
}

func (s *BidService) WithClock(c Clock) *BidService {
	s.now = c
	return s
}

// SubmitBid сначала загружает все вложения, потом пишет предложение.
// Любой сбой убирает уже загруженные файлы, предложение не сохраняется.
func (s *BidService) SubmitBid(ctx context.Context, in SubmitBidInput) (*models.Bid, error) {
	trim(&in.OrderID, &in.UserName, &in.License)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, invalid("amount", "must be greater than 0")
	}
	if err := checkActor(ctx, in.UserName); err != nil {
		return nil, err
	}

	order, err := s.store.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, storeErr("get order", err, false)
	}
	now := s.now()
	if order.Status != models.StatusOpen || order.IsExpired(now, s.ttl) {
		return nil, conflict("order is not accepting bids")
	}

	uploaded, err := s.uploadAll(ctx, in.Attachments)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		s.cleanup(ctx, uploaded)
		return nil, storeErr("generate bid id", err, false)
	}
	bid := models.Bid{
		ID:        id.String(),
		OrderID:   in.OrderID,
		UserName:  in.UserName,
		Amount:    amount,
		Pic:       models.Pictures{Images: urls(uploaded)},
		License:   in.License,
		CreatedAt: now,
	}
	if err := s.store.CreateBid(ctx, &bid); err != nil {
		s.cleanup(ctx, uploaded)
		return nil, storeErr("create bid", err, true)
	}
	return &bid, nil
}

// uploadAll загружает вложения параллельно, порядок URL совпадает с порядком входа.
func (s *BidService) uploadAll(ctx context.Context, files [][]byte) ([]attachments.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	results := make([]attachments.Attachment, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, data := range files {
		g.Go(func() error {
			uctx, cancel := context.WithTimeout(gctx, s.attachmentTimeout)
			defer cancel()
			a, err := s.files.Upload(uctx, attachments.FolderProductImages, data, http.DetectContentType(data))
			if err != nil {
				return fmt.Errorf("attachment %d: %w", i+1, err)
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.cleanup(ctx, results)
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	return results, nil
}

// cleanup удаляет загруженные файлы, ошибки только логируются.
func (s *BidService) cleanup(ctx context.Context, uploaded []attachments.Attachment) {
	ctx = context.WithoutCancel(ctx)
	for _, a := range uploaded {
		if a.Key == "" {
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, s.attachmentTimeout)
		if err := s.files.Delete(dctx, a); err != nil {
			s.log.Warn("attachment cleanup failed", "key", a.Key, "error", err)
		}
		cancel()
	}
}

func urls(uploaded []attachments.Attachment) []string {
	out := make([]string, 0, len(uploaded))
	for _, a := range uploaded {
		out = append(out, a.URL)
	}
	return out
}

// ListBids - предложения по заказу от новых к старым с данными продавца.
func (s *BidService) ListBids(ctx context.Context, orderID string) ([]models.Bid, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, invalid("orderID", "is required")
	}
	bids, err := s.store.ListBidsForOrder(ctx, orderID)
	if err != nil {
		return nil, storeErr("list bids", err, false)
	}
	return bids, nil
}

// SortBids пересортировывает список по amount или date. Пустой key оставляет порядок как есть.
func SortBids(bids []models.Bid, key, dir string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	dir = strings.ToLower(strings.TrimSpace(dir))
	if key == "" {
		return nil
	}
	var desc bool
	switch dir {
	case "", "desc":
		desc = true
	case "asc":
	default:
		return invalid("dir", "must be asc or desc")
	}

	var less func(a, b models.Bid) bool
	switch key {
	case "amount":
		less = func(a, b models.Bid) bool { return a.Amount.LessThan(b.Amount) }
	case "date":
		less = func(a, b models.Bid) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		return invalid("sort", "must be amount or date")
	}
	sort.SliceStable(bids, func(i, j int) bool {
		if desc {
			return less(bids[j], bids[i])
		}
		return less(bids[i], bids[j])
	})
	return nil
}
