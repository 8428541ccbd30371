package services

import (
	"context"
	"time"

	"agrimarket/db"
	"agrimarket/models"
)

// OrderStore - то, что сервису заказов нужно от Persistence Gateway.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, f db.OrderFilter) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, now time.Time) error
	AcceptBid(ctx context.Context, orderID, bidID string, notBefore, now time.Time) (bool, error)
	ExpireOrders(ctx context.Context, createdBefore, now time.Time) (int64, error)
	GetBid(ctx context.Context, id string) (*models.Bid, error)
}

type BidStore interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	CreateBid(ctx context.Context, b *models.Bid) error
	ListBidsForOrder(ctx context.Context, orderID string) ([]models.Bid, error)
}

type ChatStore interface {
	CreateChat(ctx context.Context, m *models.ChatMessage) error
	ListConversation(ctx context.Context, a, b string) ([]models.ChatMessage, error)
	ListUserChats(ctx context.Context, userName string) ([]models.ChatMessage, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, userName string) (*models.User, error)
	GetUserByAccount(ctx context.Context, accountID string) (*models.User, error)
}

// Clock подменяется в тестах.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
