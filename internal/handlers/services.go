package handlers

import (
	"context"

	"agrimarket/internal/identity"
	"agrimarket/internal/services"
	"agrimarket/models"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in services.CreateOrderInput) (*services.OrderView, error)
	ListOrders(ctx context.Context, in services.ListOrdersInput) ([]services.OrderView, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (*services.OrderView, error)
	AcceptBid(ctx context.Context, orderID, bidID string) (*services.OrderView, error)
}

type BidService interface {
	SubmitBid(ctx context.Context, in services.SubmitBidInput) (*models.Bid, error)
	ListBids(ctx context.Context, orderID string) ([]models.Bid, error)
}

type ChatService interface {
	SendMessage(ctx context.Context, in services.SendMessageInput) (*models.ChatMessage, error)
	ListConversation(ctx context.Context, a, b string) ([]models.ChatMessage, error)
	ListInbox(ctx context.Context, userName string) ([]models.InboxEntry, error)
}

type AccountService interface {
	RegisterBuyer(ctx context.Context, in services.RegisterBuyerInput) (*models.User, error)
	RegisterSeller(ctx context.Context, in services.RegisterSellerInput) (*models.User, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
}

type TokenValidator interface {
	ValidateToken(token string) (*identity.Session, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}
